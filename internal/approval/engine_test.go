package approval

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"wardgate/internal/approval/mocks"
	"wardgate/internal/catalog"
	"wardgate/internal/grants"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
)

type EngineSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	mockLifecycle *mocks.MockGrantLifecycle
	mockAuthority *mocks.MockApproverAuthority
	store         *InMemoryStore
	engine        *Engine
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockLifecycle = mocks.NewMockGrantLifecycle(s.ctrl)
	s.mockAuthority = mocks.NewMockApproverAuthority(s.ctrl)
	s.store = NewInMemoryStore()

	cat := catalog.New()
	s.Require().NoError(cat.Register("view_patients", "View Patients", "patients", catalog.SensitivityLow))
	s.Require().NoError(cat.Register("edit_billing", "Edit Billing", "billing", catalog.SensitivityHigh))
	s.Require().NoError(cat.Register("perform_surgery", "Perform Surgery", "surgery", catalog.SensitivityCritical))
	s.Require().NoError(cat.Register("manage_permissions", "Manage Permissions", "administration", catalog.SensitivityCritical))

	// Strictly increasing clock so pending-queue ordering is deterministic.
	var mu sync.Mutex
	tick := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := NewEngine(s.store, s.mockLifecycle, s.mockAuthority, cat,
		WithLogger(logger),
		WithClock(clock),
	)
	s.Require().NoError(err)
	s.engine = engine
}

func (s *EngineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) newGrant(permission catalog.Code) *grants.Grant {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &grants.Grant{
		ID:          id.NewGrantID(),
		UserID:      id.NewUserID(),
		Permission:  permission,
		Reason:      "test",
		RequestedAt: now,
		ExpiresAt:   now.Add(time.Hour),
		Status:      grants.StatusRequested,
	}
}

func (s *EngineSuite) enqueue(permission catalog.Code) (*grants.Grant, id.ApprovalID) {
	grant := s.newGrant(permission)
	approvalID, err := s.engine.Enqueue(context.Background(), grant)
	s.Require().NoError(err)
	return grant, approvalID
}

// An activation that collides with an existing ACTIVE grant for the same
// (user, permission) pair surfaces the duplicate code to the caller; the
// request stays APPROVED with the grant awaiting the pair to free up.
func (s *EngineSuite) TestApproveSurfacesDuplicateActivation() {
	grant, approvalID := s.enqueue("view_patients")
	approver := id.NewUserID()

	s.mockAuthority.EXPECT().HoldsPermission(gomock.Any(), approver, catalog.Code("manage_permissions")).Return(true, nil)
	s.mockLifecycle.EXPECT().MarkApproved(gomock.Any(), grant.ID, approver).Return(grant, nil)
	s.mockLifecycle.EXPECT().Activate(gomock.Any(), grant.ID).
		Return(nil, dErrors.New(dErrors.CodeDuplicateActiveGrant, "an active grant for this permission already exists"))

	_, err := s.engine.RecordDecision(context.Background(), approvalID, approver, DecisionApprove, "fine")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateActiveGrant))

	resolved, err := s.engine.Get(context.Background(), approvalID)
	s.Require().NoError(err)
	s.Equal(StateApproved, resolved.State)
}

func (s *EngineSuite) TestRoutingBySensitivity() {
	_, lowID := s.enqueue("view_patients")
	low, err := s.engine.Get(context.Background(), lowID)
	s.Require().NoError(err)
	s.Len(low.RequiredApprovers, 1)

	_, highID := s.enqueue("edit_billing")
	high, err := s.engine.Get(context.Background(), highID)
	s.Require().NoError(err)
	s.Len(high.RequiredApprovers, 2)

	_, critID := s.enqueue("perform_surgery")
	crit, err := s.engine.Get(context.Background(), critID)
	s.Require().NoError(err)
	s.Len(crit.RequiredApprovers, 2)
}

func (s *EngineSuite) TestSingleStepApproveActivates() {
	grant, approvalID := s.enqueue("view_patients")
	approver := id.NewUserID()

	s.mockAuthority.EXPECT().HoldsPermission(gomock.Any(), approver, catalog.Code("manage_permissions")).Return(true, nil)
	s.mockLifecycle.EXPECT().MarkApproved(gomock.Any(), grant.ID, approver).Return(grant, nil)
	s.mockLifecycle.EXPECT().Activate(gomock.Any(), grant.ID).Return(grant, nil)

	resolved, err := s.engine.RecordDecision(context.Background(), approvalID, approver, DecisionApprove, "fine")
	s.Require().NoError(err)
	s.Equal(StateApproved, resolved.State)
	s.NotNil(resolved.ResolvedAt)
}

func (s *EngineSuite) TestRejectShortCircuits() {
	grant, approvalID := s.enqueue("edit_billing")
	approver := id.NewUserID()

	s.mockAuthority.EXPECT().HoldsPermission(gomock.Any(), approver, catalog.Code("manage_permissions")).Return(true, nil)
	s.mockLifecycle.EXPECT().MarkRejected(gomock.Any(), grant.ID, "not justified").Return(grant, nil)

	resolved, err := s.engine.RecordDecision(context.Background(), approvalID, approver, DecisionReject, "not justified")
	s.Require().NoError(err)
	s.Equal(StateRejected, resolved.State)
	s.Len(resolved.Decisions, 1, "no further steps evaluated after rejection")
}

func (s *EngineSuite) TestTwoStepApproveNeedsBoth() {
	grant, approvalID := s.enqueue("edit_billing")
	first, second := id.NewUserID(), id.NewUserID()

	s.mockAuthority.EXPECT().HoldsPermission(gomock.Any(), first, catalog.Code("manage_permissions")).Return(true, nil)
	pending, err := s.engine.RecordDecision(context.Background(), approvalID, first, DecisionApprove, "")
	s.Require().NoError(err)
	s.Equal(StatePending, pending.State, "one of two approvals is not enough")

	s.mockAuthority.EXPECT().HoldsPermission(gomock.Any(), second, catalog.Code("manage_permissions")).Return(true, nil)
	s.mockLifecycle.EXPECT().MarkApproved(gomock.Any(), grant.ID, second).Return(grant, nil)
	s.mockLifecycle.EXPECT().Activate(gomock.Any(), grant.ID).Return(grant, nil)
	resolved, err := s.engine.RecordDecision(context.Background(), approvalID, second, DecisionApprove, "")
	s.Require().NoError(err)
	s.Equal(StateApproved, resolved.State)
}

func (s *EngineSuite) TestUnauthorizedApprover() {
	_, approvalID := s.enqueue("view_patients")
	intruder := id.NewUserID()

	s.mockAuthority.EXPECT().HoldsPermission(gomock.Any(), intruder, catalog.Code("manage_permissions")).Return(false, nil)

	_, err := s.engine.RecordDecision(context.Background(), approvalID, intruder, DecisionApprove, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorizedApprover))
}

func (s *EngineSuite) TestApproversMustBeIndependent() {
	_, approvalID := s.enqueue("edit_billing")
	approver := id.NewUserID()

	s.mockAuthority.EXPECT().HoldsPermission(gomock.Any(), approver, catalog.Code("manage_permissions")).Return(true, nil).Times(2)

	_, err := s.engine.RecordDecision(context.Background(), approvalID, approver, DecisionApprove, "")
	s.Require().NoError(err)

	_, err = s.engine.RecordDecision(context.Background(), approvalID, approver, DecisionApprove, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorizedApprover))
}

func (s *EngineSuite) TestRequesterCannotSelfApprove() {
	grant, approvalID := s.enqueue("view_patients")

	s.mockAuthority.EXPECT().HoldsPermission(gomock.Any(), grant.UserID, catalog.Code("manage_permissions")).Return(true, nil)

	_, err := s.engine.RecordDecision(context.Background(), approvalID, grant.UserID, DecisionApprove, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorizedApprover))
}

func (s *EngineSuite) TestAlreadyResolved() {
	grant, approvalID := s.enqueue("view_patients")
	approver := id.NewUserID()

	s.mockAuthority.EXPECT().HoldsPermission(gomock.Any(), approver, catalog.Code("manage_permissions")).Return(true, nil)
	s.mockLifecycle.EXPECT().MarkApproved(gomock.Any(), grant.ID, approver).Return(grant, nil)
	s.mockLifecycle.EXPECT().Activate(gomock.Any(), grant.ID).Return(grant, nil)
	_, err := s.engine.RecordDecision(context.Background(), approvalID, approver, DecisionApprove, "")
	s.Require().NoError(err)

	late := id.NewUserID()
	_, err = s.engine.RecordDecision(context.Background(), approvalID, late, DecisionApprove, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyResolved))
}

func (s *EngineSuite) TestUnknownRequest() {
	_, err := s.engine.RecordDecision(context.Background(), id.NewApprovalID(), id.NewUserID(), DecisionApprove, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EngineSuite) TestInvalidDecision() {
	_, approvalID := s.enqueue("view_patients")
	_, err := s.engine.RecordDecision(context.Background(), approvalID, id.NewUserID(), Decision("MAYBE"), "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// Two concurrent decisions completing the same final step result in exactly
// one activation; the loser sees AlreadyResolved.
func (s *EngineSuite) TestNoDoubleActivation() {
	grant, approvalID := s.enqueue("edit_billing")
	first := id.NewUserID()

	s.mockAuthority.EXPECT().HoldsPermission(gomock.Any(), gomock.Any(), catalog.Code("manage_permissions")).Return(true, nil).AnyTimes()
	_, err := s.engine.RecordDecision(context.Background(), approvalID, first, DecisionApprove, "")
	s.Require().NoError(err)

	s.mockLifecycle.EXPECT().MarkApproved(gomock.Any(), grant.ID, gomock.Any()).Return(grant, nil).Times(1)
	s.mockLifecycle.EXPECT().Activate(gomock.Any(), grant.ID).Return(grant, nil).Times(1)

	racerA, racerB := id.NewUserID(), id.NewUserID()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = s.engine.RecordDecision(context.Background(), approvalID, racerA, DecisionApprove, "")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = s.engine.RecordDecision(context.Background(), approvalID, racerB, DecisionApprove, "")
	}()
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeAlreadyResolved))
			lost++
		}
	}
	s.Equal(1, won)
	s.Equal(1, lost)
}

func (s *EngineSuite) TestListPendingOrdersOldestFirst() {
	_, firstID := s.enqueue("view_patients")
	_, secondID := s.enqueue("edit_billing")

	pending, err := s.engine.ListPending(context.Background())
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(firstID, pending[0].ID)
	s.Equal(secondID, pending[1].ID)
}
