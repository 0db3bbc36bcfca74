package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/repository"
	"github.com/aryan0dhankhar/academyportal/internal/security/auth"
)

func newTestService(t *testing.T) (*AuthService, *repository.MemoryUserRepository, *domain.User) {
	t.Helper()
	repo := repository.NewMemoryUserRepository()
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	user := &domain.User{
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Role:         "aluno_futebol",
		TenantID:     "tenant-1",
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	svc := NewAuthService(repo, auth.NewTokenManager("secret", ""), time.Hour, nil)
	return svc, repo, user
}

func TestLoginAndMe(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "alice@example.com", "Password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !res.Success || res.Token == "" || res.User == nil {
		t.Fatalf("unexpected login result: %+v", res)
	}
	if res.User.Role != "ALUNO" {
		t.Fatalf("expected normalized role ALUNO, got %q", res.User.Role)
	}

	identity, err := svc.Me(ctx, res.Token)
	if err != nil {
		t.Fatalf("me failed: %v", err)
	}
	if identity.ID != user.ID || identity.TenantID != "tenant-1" || !identity.IsActive {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "alice@example.com", "nope")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	_, err = svc.Login(context.Background(), "bob@example.com", "Password123")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLoginRequiresFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Login(context.Background(), " ", "x"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMeRejectsGarbageToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Me(context.Background(), "not-a-token"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestMeRejectsTokenFromOtherSecret(t *testing.T) {
	svc, _, user := newTestService(t)
	other := auth.NewTokenManager("other-secret", "")
	token, err := other.GenerateToken(user.TenantID, user.ID, user.Email, "ALUNO", time.Hour)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := svc.Me(context.Background(), token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestMeRejectsDisabledAccount(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "alice@example.com", "Password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := repo.SetActive(res.User.ID, false); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if _, err := svc.Me(ctx, res.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for disabled account, got %v", err)
	}
}
