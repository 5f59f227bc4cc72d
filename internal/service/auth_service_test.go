package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/invigil/proctor-backend/internal/config"
	"github.com/invigil/proctor-backend/internal/model"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}

	studentHash, _ := bcrypt.GenerateFromPassword([]byte("student-pass"), bcrypt.MinCost)
	adminHash, _ := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	users := newMemUserDirectory(
		&model.User{ID: 1, Name: "Dewi", Email: "dewi@example.com", Role: model.RoleStudent, PasswordHash: string(studentHash)},
		&model.User{ID: 2, Name: "Pak Agus", Email: "agus@example.com", Role: model.RoleAdmin, PasswordHash: string(adminHash)},
	)

	_, rdb := newTestRedis(t)
	return NewAuthService(cfg, rdb, users)
}

func TestLoginIssuesTypedToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t)

	token, user, err := svc.Login(ctx, "dewi@example.com", "student-pass")
	if err != nil {
		t.Fatalf("student login: %v", err)
	}
	if user.ID != 1 {
		t.Errorf("user id = %d, want 1", user.ID)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.TokenType != TokenTypeStudent {
		t.Errorf("token type = %s, want student", claims.TokenType)
	}
	if claims.UserID != 1 {
		t.Errorf("claims user id = %d, want 1", claims.UserID)
	}

	adminToken, _, err := svc.Login(ctx, "agus@example.com", "admin-pass")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	adminClaims, err := svc.ValidateToken(adminToken)
	if err != nil {
		t.Fatalf("validate admin: %v", err)
	}
	if adminClaims.TokenType != TokenTypeAdmin {
		t.Errorf("admin token type = %s", adminClaims.TokenType)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t)

	if _, _, err := svc.Login(ctx, "dewi@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	// Unknown accounts look identical to a wrong password.
	if _, _, err := svc.Login(ctx, "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

func TestStudentSingleSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t)

	if _, _, err := svc.Login(ctx, "dewi@example.com", "student-pass"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, _, err := svc.Login(ctx, "dewi@example.com", "student-pass"); !errors.Is(err, ErrSessionAlreadyActive) {
		t.Fatalf("second login err = %v, want ErrSessionAlreadyActive", err)
	}

	t.Run("LogoutReleasesSession", func(t *testing.T) {
		if err := svc.Logout(ctx, 1); err != nil {
			t.Fatalf("logout: %v", err)
		}
		if _, _, err := svc.Login(ctx, "dewi@example.com", "student-pass"); err != nil {
			t.Fatalf("relogin after logout: %v", err)
		}
	})

	t.Run("AdminsUnrestricted", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if _, _, err := svc.Login(ctx, "agus@example.com", "admin-pass"); err != nil {
				t.Fatalf("admin login %d: %v", i, err)
			}
		}
	})
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestAuthService(t)

	if _, err := svc.ValidateToken("not-a-jwt"); err == nil {
		t.Error("garbage token validated")
	}
	if _, err := svc.ValidateToken(""); err == nil {
		t.Error("empty token validated")
	}
}
