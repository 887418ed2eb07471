package services

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/brickly26/iMessage/pkg/errors"
	"github.com/brickly26/iMessage/pkg/logger"
)

func newAuthFixture() (*AuthService, *stubUserRepo) {
	repo := newStubUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour, logger.NewNop(), 0)
	return svc, repo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	u, token, err := svc.Register(ctx, "Alice@Example.com ", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized lowercase", u.Email)
	}
	if token == "" {
		t.Fatal("Register returned no token")
	}

	parsed, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if parsed != u.ID {
		t.Errorf("token user = %v, want %v", parsed, u.ID)
	}

	u2, token2, err := svc.Login(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u2.ID != u.ID {
		t.Errorf("login user = %v, want %v", u2.ID, u.ID)
	}
	if _, err := svc.ParseAccessToken(token2); err != nil {
		t.Errorf("login token invalid: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "not-an-email", "password123"); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("bad email: err = %v, want ErrInvalidArgument", err)
	}
	if _, _, err := svc.Register(ctx, "bob@example.com", "short"); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("short password: err = %v, want ErrInvalidArgument", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "bob@example.com", "password123"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, _, err := svc.Register(ctx, "bob@example.com", "otherpassword")
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "bob@example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "bob@example.com", "wrongpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture()

	if _, err := svc.ParseAccessToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}

	// A token signed with a different secret must not verify.
	other := NewAuthService(newStubUserRepo(), "other-secret", time.Hour, logger.NewNop(), 0)
	_, token, err := other.Register(context.Background(), "eve@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign token: err = %v, want ErrInvalidToken", err)
	}
}
