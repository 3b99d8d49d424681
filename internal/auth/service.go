package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wardgate/internal/platform/metrics"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
	"wardgate/pkg/secrets"
	"wardgate/pkg/sentinel"
)

// Service owns user accounts and login. It also answers the resolver's
// admin-override question.
type Service struct {
	store   Store
	tokens  *TokenService
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables login metrics.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = mx
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the auth service.
func NewService(store Store, tokens *TokenService, opts ...Option) (*Service, error) {
	if store == nil || tokens == nil {
		return nil, errors.New("store and token service are required")
	}
	s := &Service{
		store:  store,
		tokens: tokens,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateUser registers a user with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, username, displayName, password string, isAdmin bool) (*User, error) {
	if username == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "password is required")
	}
	hash, err := secrets.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           id.NewUserID(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
		CreatedAt:    s.now(),
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}
	s.logger.InfoContext(ctx, "user created",
		"user_id", user.ID.String(),
		"username", user.Username,
		"is_admin", user.IsAdmin,
	)
	return user, nil
}

// Login verifies credentials and issues a bearer token. The failure message
// never says whether the username or the password was wrong.
func (s *Service) Login(ctx context.Context, username, password, userAgent string) (string, *User, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil, s.loginFailed(ctx, username)
		}
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		return "", nil, s.loginFailed(ctx, username)
	}

	fingerprint := ComputeFingerprint(userAgent)
	token, err := s.tokens.Generate(user, fingerprint, s.now())
	if err != nil {
		return "", nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementLoginSuccesses()
	}
	s.logger.InfoContext(ctx, "login succeeded",
		"user_id", user.ID.String(),
		"device", DeviceName(userAgent),
	)
	return token, user, nil
}

func (s *Service) loginFailed(ctx context.Context, username string) error {
	if s.metrics != nil {
		s.metrics.IncrementLoginFailures()
	}
	s.logger.WarnContext(ctx, "login failed", "username", username)
	return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
}

// GetUser returns the user by ID.
func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*User, error) {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// IsAdmin reports the user's admin override. A missing user is not an
// error: authorization fails closed, so unknown users are simply not admins.
func (s *Service) IsAdmin(ctx context.Context, userID id.UserID) (bool, error) {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user.IsAdmin, nil
}
