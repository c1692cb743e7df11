package httpapi

import (
	"context"
	"testing"
	"time"

	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuth(t *testing.T) (*AuthManager, *memory.Store) {
	t.Helper()
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-test-pass")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-test-pass")
	repo := memory.NewSeeded()
	return NewAuthManager(testSecret, time.Hour, repo), repo
}

func TestLoginAndParseToken(t *testing.T) {
	auth, _ := newTestAuth(t)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{
		Username: "admin", Password: "admin-test-pass",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("expected admin role, got %q", resp.Role)
	}
	if _, err := time.Parse(time.RFC3339, resp.ExpiresAt); err != nil {
		t.Fatalf("expected RFC3339 expiry, got %q", resp.ExpiresAt)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestLoginNormalizesUsername(t *testing.T) {
	auth, _ := newTestAuth(t)

	if _, err := auth.Login(context.Background(), domain.LoginRequest{
		Username: "  ADMIN  ", Password: "admin-test-pass",
	}); err != nil {
		t.Fatalf("expected case-insensitive login, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "admin", Password: "wrong"}); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "ghost", Password: "whatever"}); err == nil {
		t.Fatalf("expected unknown user to fail")
	}
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	auth, _ := newTestAuth(t)
	other := NewAuthManager("another-secret-another-secret-99", time.Hour, nil)

	token, err := other.sign("admin", "admin", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected foreign signature to be rejected")
	}
	if _, err := auth.ParseToken("not.a.token"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}

func TestLoginUpgradesLegacyPlaintextPassword(t *testing.T) {
	auth, repo := newTestAuth(t)
	ctx := context.Background()

	if err := repo.CreateUser(ctx, domain.UserAccount{
		Username: "legacy", Password: "oldplain", Role: "cashier", Active: true,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "legacy", Password: "oldplain"}); err != nil {
		t.Fatalf("legacy login failed: %v", err)
	}

	user, err := repo.GetUser(ctx, "legacy")
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if !isPasswordHash(user.Password) {
		t.Fatalf("expected stored credential to be upgraded to a hash")
	}
}
