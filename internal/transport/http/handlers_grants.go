package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wardgate/internal/approval"
	"wardgate/internal/catalog"
	"wardgate/internal/grants"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
)

type grantResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	Permission      string     `json:"permission"`
	Reason          string     `json:"reason"`
	RequestedAt     time.Time  `json:"requestedAt"`
	ExpiresAt       time.Time  `json:"expiresAt"`
	Status          string     `json:"status"`
	ApprovedBy      *string    `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	RevokedBy       *string    `json:"revokedBy,omitempty"`
}

func toGrantResponse(g *grants.Grant) grantResponse {
	resp := grantResponse{
		ID:              g.ID.String(),
		UserID:          g.UserID.String(),
		Permission:      string(g.Permission),
		Reason:          g.Reason,
		RequestedAt:     g.RequestedAt,
		ExpiresAt:       g.ExpiresAt,
		Status:          string(g.Status),
		ApprovedAt:      g.ApprovedAt,
		RejectionReason: g.RejectionReason,
	}
	if g.ApprovedBy != nil {
		s := g.ApprovedBy.String()
		resp.ApprovedBy = &s
	}
	if g.RevokedBy != nil {
		s := g.RevokedBy.String()
		resp.RevokedBy = &s
	}
	return resp
}

type requestGrantRequest struct {
	Permission string    `json:"permission"`
	Reason     string    `json:"reason"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func (h *Handler) handleRequestGrant(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	req, ok := decode[requestGrantRequest](w, r)
	if !ok {
		return
	}
	grant, err := h.grants.RequestGrant(r.Context(), principal.UserID, catalog.Code(req.Permission), req.Reason, req.ExpiresAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGrantResponse(grant))
}

func (h *Handler) handleListGrants(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	list, err := h.grants.ListGrants(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]grantResponse, 0, len(list))
	for _, g := range list {
		out = append(out, toGrantResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": out})
}

type approvalResponse struct {
	ID                string             `json:"id"`
	GrantID           string             `json:"grantId"`
	RequesterID       string             `json:"requesterId"`
	Permission        string             `json:"permission"`
	RequiredApprovers []string           `json:"requiredApprovers"`
	Decisions         []decisionResponse `json:"decisions"`
	State             string             `json:"state"`
	CreatedAt         time.Time          `json:"createdAt"`
	ResolvedAt        *time.Time         `json:"resolvedAt,omitempty"`
}

type decisionResponse struct {
	ApproverID string    `json:"approverId"`
	Decision   string    `json:"decision"`
	Timestamp  time.Time `json:"timestamp"`
	Notes      string    `json:"notes,omitempty"`
}

func toApprovalResponse(req *approval.Request) approvalResponse {
	resp := approvalResponse{
		ID:          req.ID.String(),
		GrantID:     req.GrantID.String(),
		RequesterID: req.RequesterID.String(),
		Permission:  string(req.Permission),
		State:       string(req.State),
		CreatedAt:   req.CreatedAt,
		ResolvedAt:  req.ResolvedAt,
	}
	for _, code := range req.RequiredApprovers {
		resp.RequiredApprovers = append(resp.RequiredApprovers, string(code))
	}
	for _, d := range req.Decisions {
		resp.Decisions = append(resp.Decisions, decisionResponse{
			ApproverID: d.ApproverID.String(),
			Decision:   string(d.Decision),
			Timestamp:  d.Timestamp,
			Notes:      d.Notes,
		})
	}
	return resp
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.approvals.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]approvalResponse, 0, len(pending))
	for _, req := range pending {
		out = append(out, toApprovalResponse(req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": out})
}

type decisionRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, approval.DecisionApprove)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, approval.DecisionReject)
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request, decision approval.Decision) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	requestID, err := id.ParseApprovalID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid approval request id"))
		return
	}
	req, ok := decode[decisionRequest](w, r)
	if !ok {
		return
	}
	resolved, err := h.approvals.RecordDecision(r.Context(), requestID, principal.UserID, decision, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalResponse(resolved))
}

type grantDetailResponse struct {
	Grant    grantResponse     `json:"grant"`
	Approval *approvalResponse `json:"approval,omitempty"`
}

// handleGetGrant returns one grant with its approval trail. Callers may only
// look at their own grants unless they carry the admin override.
func (h *Handler) handleGetGrant(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	grantID, err := id.ParseGrantID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid grant id"))
		return
	}
	grant, err := h.grants.GetGrant(r.Context(), grantID)
	if err != nil {
		writeError(w, err)
		return
	}
	if grant.UserID != principal.UserID && !principal.IsAdmin {
		writeError(w, dErrors.New(dErrors.CodeForbidden, "not your grant"))
		return
	}
	resp := grantDetailResponse{Grant: toGrantResponse(grant)}
	if approvalReq, err := h.approvals.GetByGrant(r.Context(), grantID); err == nil {
		ar := toApprovalResponse(approvalReq)
		resp.Approval = &ar
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	grantID, err := id.ParseGrantID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid grant id"))
		return
	}
	grant, err := h.grants.Revoke(r.Context(), grantID, principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantResponse(grant))
}
