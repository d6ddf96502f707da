package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/auth"
	"github.com/support-relay/relay/internal/domain"
	"github.com/support-relay/relay/internal/persistence"
	"github.com/support-relay/relay/internal/repository"
	apperrors "github.com/support-relay/relay/pkg/util"
)

// AuthService registers moderators and verifies their tokens.
type AuthService struct {
	tokens     *auth.TokenManager
	codes      *auth.CodeVerifier
	sessions   auth.SessionStore
	moderators *repository.ModeratorDirectory
	scheduler  persistence.Scheduler
	logger     *zap.Logger
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	Tokens     *auth.TokenManager
	Codes      *auth.CodeVerifier
	Sessions   auth.SessionStore
	Moderators *repository.ModeratorDirectory
	Scheduler  persistence.Scheduler
	Logger     *zap.Logger
}

// Registration is the result of a successful registration.
type Registration struct {
	Token     string
	Moderator domain.Moderator
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	sessions := deps.Sessions
	if sessions == nil {
		sessions = auth.StatelessSessions{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		tokens:     deps.Tokens,
		codes:      deps.Codes,
		sessions:   sessions,
		moderators: deps.Moderators,
		scheduler:  deps.Scheduler,
		logger:     logger,
	}
}

// RegisterModerator creates a moderator identity when the shared code matches.
func (s *AuthService) RegisterModerator(ctx context.Context, code, displayName string) (*Registration, error) {
	if code == "" {
		return nil, apperrors.NewValidationError("code required", nil)
	}
	if !s.codes.Verify(code) {
		return nil, apperrors.NewForbidden("wrong code")
	}

	id := uuid.NewString()
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = domain.DefaultDisplayName(id)
	}
	mod := domain.Moderator{ID: id, DisplayName: name}

	// the identity is stored only once a usable session exists
	token, claims, err := s.tokens.GenerateToken(mod)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.sessions.Register(ctx, claims.ID, mod.ID, s.tokens.TTL()); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.moderators.Register(mod)
	s.scheduler.ScheduleFlush(persistence.ClassModerators)

	s.logger.Info("moderator registered", zap.String("moderator_id", mod.ID))
	return &Registration{Token: token, Moderator: mod, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify resolves a token to the moderator identity it was issued for.
func (s *AuthService) Verify(ctx context.Context, token string) (*auth.Principal, error) {
	if token == "" {
		return nil, apperrors.NewUnauthorized("missing token")
	}
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewInvalidToken(err)
	}
	active, err := s.sessions.Active(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !active {
		return nil, apperrors.NewInvalidToken(nil)
	}
	return &auth.Principal{Moderator: claims.Moderator(), SessionID: claims.ID}, nil
}

// Logout revokes the principal's session.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if principal == nil {
		return apperrors.NewUnauthorized("not authenticated")
	}
	if err := s.sessions.Revoke(ctx, principal.SessionID); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.logger.Info("moderator logged out", zap.String("moderator_id", principal.Moderator.ID))
	return nil
}
