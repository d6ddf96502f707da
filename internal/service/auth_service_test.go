package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/auth"
	"github.com/support-relay/relay/internal/persistence"
	apperrors "github.com/support-relay/relay/pkg/util"
)

func newAuthService(t *testing.T, fx *fixture, sessions auth.SessionStore) *AuthService {
	t.Helper()
	return NewAuthService(AuthDependencies{
		Tokens:     auth.NewTokenManager("test-secret", time.Hour),
		Codes:      auth.NewCodeVerifier("letmein", ""),
		Sessions:   sessions,
		Moderators: fx.moderators,
		Scheduler:  fx.flusher,
		Logger:     zap.NewNop(),
	})
}

func TestRegisterModeratorCodes(t *testing.T) {
	fx := newFixture(t)
	svc := newAuthService(t, fx, nil)
	ctx := context.Background()

	_, err := svc.RegisterModerator(ctx, "", "Alice")
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.RegisterModerator(ctx, "wrong", "Alice")
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(fx.moderators.All()) != 0 {
		t.Fatalf("failed registration stored an identity")
	}
}

func TestRegisterModeratorIssuesVerifiableToken(t *testing.T) {
	fx := newFixture(t)
	svc := newAuthService(t, fx, nil)
	ctx := context.Background()

	reg, err := svc.RegisterModerator(ctx, "letmein", "  Alice  ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Moderator.DisplayName != "Alice" {
		t.Fatalf("display name not trimmed: %q", reg.Moderator.DisplayName)
	}
	if _, ok := fx.moderators.GetByID(reg.Moderator.ID); !ok {
		t.Fatalf("identity not stored in directory")
	}
	if !fx.flusher.Pending(persistence.ClassModerators) {
		t.Fatalf("moderator flush not scheduled")
	}

	principal, err := svc.Verify(ctx, reg.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if principal.Moderator != reg.Moderator {
		t.Fatalf("identity mismatch %+v", principal.Moderator)
	}

	_, err = svc.Verify(ctx, reg.Token+"x")
	if !apperrors.HasCode(err, apperrors.CodeInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	_, err = svc.Verify(ctx, "")
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRegisterModeratorDefaultName(t *testing.T) {
	fx := newFixture(t)
	svc := newAuthService(t, fx, nil)

	reg, err := svc.RegisterModerator(context.Background(), "letmein", "   ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	want := "Moderator-" + reg.Moderator.ID[len(reg.Moderator.ID)-4:]
	if reg.Moderator.DisplayName != want {
		t.Fatalf("display name %q want %q", reg.Moderator.DisplayName, want)
	}
	if !strings.HasPrefix(reg.Moderator.DisplayName, "Moderator-") {
		t.Fatalf("unexpected default name")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fx := newFixture(t)
	svc := newAuthService(t, fx, auth.NewRedisSessionStore(client))
	ctx := context.Background()

	reg, err := svc.RegisterModerator(ctx, "letmein", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	principal, err := svc.Verify(ctx, reg.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.Logout(ctx, principal); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, err = svc.Verify(ctx, reg.Token)
	if !apperrors.HasCode(err, apperrors.CodeInvalidToken) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
}

func TestRegisterModeratorSessionFailureStoresNothing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fx := newFixture(t)
	svc := newAuthService(t, fx, auth.NewRedisSessionStore(client))
	mr.Close()

	_, err := svc.RegisterModerator(context.Background(), "letmein", "Alice")
	if !apperrors.HasCode(err, apperrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if len(fx.moderators.All()) != 0 {
		t.Fatalf("identity stored without a session")
	}
	if fx.flusher.Pending(persistence.ClassModerators) {
		t.Fatalf("moderator flush scheduled for a failed registration")
	}
}
