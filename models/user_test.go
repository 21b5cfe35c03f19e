package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/utils"
)

func newTestCredentials(t *testing.T) (*models.Credentials, *utils.JwtIssuer) {
	t.Helper()
	issuer := utils.NewJwtIssuer("test-secret", time.Hour)
	return models.NewCredentials(models.NewMemoryStore().Users(), issuer, nil, nil), issuer
}

func TestCredentials_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	creds, _ := newTestCredentials(t)

	info, err := creds.Register(ctx, models.NewUser{
		Email:    "  Rep@Example.com ",
		Password: "password123",
		Name:     "John Sales Rep",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if info.Token == "" || info.User == nil {
		t.Fatalf("expected token and user, got %+v", info)
	}
	if info.User.Email != "rep@example.com" || info.User.Role != models.UserRoleRep || info.User.Password != "" {
		t.Fatalf("unexpected registered user: %+v", info.User)
	}

	principal, err := creds.VerifyToken(info.Token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if principal.ID != info.User.ID || principal.Role != models.UserRoleRep || principal.Name != "John Sales Rep" {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	login, err := creds.Login(ctx, "REP@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != info.User.ID || login.User.Password != "" {
		t.Fatalf("unexpected login user: %+v", login.User)
	}
}

func TestCredentials_RegisterConflictAndValidation(t *testing.T) {
	ctx := context.Background()
	creds, _ := newTestCredentials(t)

	input := models.NewUser{Email: "manager@example.com", Password: "password123", Name: "Jane", Role: models.UserRoleManager}
	info, err := creds.Register(ctx, input)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if info.User.Role != models.UserRoleManager {
		t.Fatalf("expected manager role, got %s", info.User.Role)
	}

	if _, err := creds.Register(ctx, input); !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	_, err = creds.Register(ctx, models.NewUser{Email: "bad", Password: "123", Name: " ", Role: "owner"})
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"email", "password", "name", "role"} {
		if _, ok := ve.Fields[field]; !ok {
			t.Fatalf("expected %s to be reported, got %v", field, ve.Fields)
		}
	}
}

func TestCredentials_RegisterRejectsAdminRole(t *testing.T) {
	ctx := context.Background()
	creds, _ := newTestCredentials(t)

	_, err := creds.Register(ctx, models.NewUser{Email: "boss@example.com", Password: "password123", Name: "Boss", Role: models.UserRoleAdmin})
	var ve *utils.ValidationError
	if !errors.As(err, &ve) || ve.Fields["role"] == "" {
		t.Fatalf("expected role to be rejected, got %v", err)
	}
	if _, err := creds.Login(ctx, "boss@example.com", "password123"); !errors.Is(err, utils.ErrInvalidCredentials) {
		t.Fatalf("rejected registration must not create the user, got %v", err)
	}
}

func TestCredentials_LoginFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	creds, _ := newTestCredentials(t)
	if _, err := creds.Register(ctx, models.NewUser{Email: "rep@example.com", Password: "password123", Name: "Rep"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, wrongPassword := creds.Login(ctx, "rep@example.com", "wrong-password")
	_, unknownEmail := creds.Login(ctx, "ghost@example.com", "password123")
	_, empty := creds.Login(ctx, "", "")
	for name, err := range map[string]error{"wrong password": wrongPassword, "unknown email": unknownEmail, "empty": empty} {
		if !errors.Is(err, utils.ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("login failures must be indistinguishable: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestCredentials_VerifyTokenRejects(t *testing.T) {
	creds, issuer := newTestCredentials(t)

	if _, err := creds.VerifyToken(""); !errors.Is(err, utils.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := creds.VerifyToken("garbage"); !errors.Is(err, utils.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	unknownRole, err := issuer.JwtGenerate("user-1", "x@example.com", "X", "superuser")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if _, err := creds.VerifyToken(unknownRole); !errors.Is(err, utils.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown role, got %v", err)
	}
}

func TestCredentials_ChangePassword(t *testing.T) {
	ctx := context.Background()
	creds, _ := newTestCredentials(t)
	info, err := creds.Register(ctx, models.NewUser{Email: "rep@example.com", Password: "password123", Name: "Rep"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	principal := info.User.Principal()

	err = creds.ChangePassword(ctx, principal, models.ChangePasswordInput{OldPassword: "wrong", NewPassword: "new-password"})
	if !errors.Is(err, utils.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong old password, got %v", err)
	}

	err = creds.ChangePassword(ctx, principal, models.ChangePasswordInput{OldPassword: "password123", NewPassword: "123"})
	if !utils.IsValidationError(err) {
		t.Fatalf("expected ValidationError for short password, got %v", err)
	}

	if err := creds.ChangePassword(ctx, principal, models.ChangePasswordInput{OldPassword: "password123", NewPassword: "new-password"}); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := creds.Login(ctx, "rep@example.com", "password123"); !errors.Is(err, utils.ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := creds.Login(ctx, "rep@example.com", "new-password"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}
