package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pipeline_backend/config"
	"github.com/mmdatafocus/pipeline_backend/utils"
	"github.com/sirupsen/logrus"
)

// bcrypt ignores input past 72 bytes and x/crypto rejects it outright.
const maxPasswordLength = 72

type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Role      UserRole  `gorm:"size:20;not null;default:'rep'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

type NewUser struct {
	Email    string   `json:"email" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Role     UserRole `json:"role"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type LoginInfo struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

/*
caches:
	User:$email
*/

// cachedUser keeps the hash, which User hides from JSON.
type cachedUser struct {
	User
	PasswordHash string `json:"passwordHash"`
}

func UserCacheKey(email string) string {
	return "User:" + email
}

// Credentials issues and verifies session tokens against a UserRepository.
type Credentials struct {
	users  UserRepository
	issuer *utils.JwtIssuer
	cache  *config.Cache
	logger *logrus.Logger
	now    func() time.Time
}

// NewCredentials wires the credential operations. cache may be nil.
func NewCredentials(users UserRepository, issuer *utils.JwtIssuer, cache *config.Cache, logger *logrus.Logger) *Credentials {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Credentials{
		users:  users,
		issuer: issuer,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

func (c *Credentials) WithClock(now func() time.Time) *Credentials {
	c.now = now
	return c
}

func (input *NewUser) Validate() error {
	v := &utils.ValidationError{}
	input.Email = utils.NormalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if input.Email == "" {
		v.Add("email", "required")
	} else if !utils.IsValidEmail(input.Email) {
		v.Add("email", "invalid")
	}
	validatePassword(v, "password", input.Password)
	if input.Name == "" {
		v.Add("name", "required")
	}
	switch {
	case input.Role == "":
		input.Role = UserRoleRep
	case !input.Role.IsValid():
		v.Add("role", "invalid")
	case input.Role == UserRoleAdmin:
		// admins come from cmd/seed-admin only
		v.Add("role", "not allowed")
	}
	return v.OrNil()
}

func validatePassword(v *utils.ValidationError, field, password string) {
	switch {
	case password == "":
		v.Add(field, "required")
	case len(password) < utils.MinPasswordLength:
		v.Add(field, fmt.Sprintf("must be at least %d characters", utils.MinPasswordLength))
	case len(password) > maxPasswordLength:
		v.Add(field, fmt.Sprintf("must be at most %d bytes", maxPasswordLength))
	}
}

func (c *Credentials) Register(ctx context.Context, input NewUser) (*LoginInfo, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if _, err := c.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, utils.ErrConflict
	} else if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := c.now()
	user := User{
		ID:        uuid.NewString(),
		Email:     input.Email,
		Password:  hashedPassword,
		Name:      input.Name,
		Role:      input.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// the pre-check races with concurrent registrations; the repository maps
	// the unique index violation to ErrConflict
	if err := c.users.Create(ctx, &user); err != nil {
		return nil, err
	}

	return c.issue(&user)
}

// Login answers ErrInvalidCredentials for an unknown email and for a wrong
// password alike.
func (c *Credentials) Login(ctx context.Context, email string, password string) (*LoginInfo, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, utils.ErrInvalidCredentials
	}

	user, err := c.lookupUser(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		if errors.Is(err, utils.ErrInvalidCredentials) {
			return nil, utils.ErrInvalidCredentials
		}
		return nil, err
	}

	return c.issue(user)
}

// VerifyToken resolves a bearer token to the principal it was issued for.
func (c *Credentials) VerifyToken(token string) (*Principal, error) {
	claims, err := c.issuer.JwtValidate(token)
	if err != nil {
		return nil, err
	}
	role := UserRole(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", utils.ErrInvalidToken, claims.Role)
	}
	return &Principal{
		ID:    claims.ID,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  role,
	}, nil
}

// ChangePassword replaces the caller's password. Tokens already issued stay
// valid until they expire.
func (c *Credentials) ChangePassword(ctx context.Context, principal Principal, input ChangePasswordInput) error {
	v := &utils.ValidationError{}
	validatePassword(v, "newPassword", input.NewPassword)
	if err := v.OrNil(); err != nil {
		return err
	}

	user, err := c.users.Get(ctx, principal.ID)
	if err != nil {
		return err
	}
	if err := utils.ComparePassword(user.Password, input.OldPassword); err != nil {
		return err
	}

	hashedPassword, err := utils.HashPassword(input.NewPassword)
	if err != nil {
		return err
	}
	if err := c.users.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		return err
	}
	if err := c.cache.RemoveKey(ctx, UserCacheKey(user.Email)); err != nil {
		config.LogError(c.logger, "Credentials", "ChangePassword", "evict cached user", user.Email, err)
	}
	return nil
}

func (c *Credentials) issue(user *User) (*LoginInfo, error) {
	token, err := c.issuer.JwtGenerate(user.ID, user.Email, user.Name, string(user.Role))
	if err != nil {
		return nil, err
	}
	result := *user
	result.Password = ""
	return &LoginInfo{Token: token, User: &result}, nil
}

// lookupUser reads through the redis cache when one is configured. Cache
// failures fall back to the repository.
func (c *Credentials) lookupUser(ctx context.Context, email string) (*User, error) {
	key := UserCacheKey(email)
	var cached cachedUser
	exists, err := c.cache.GetObject(ctx, key, &cached)
	if err != nil {
		config.LogError(c.logger, "Credentials", "lookupUser", "read cached user", email, err)
	}
	if exists && err == nil {
		user := cached.User
		user.Password = cached.PasswordHash
		return &user, nil
	}

	user, err := c.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	entry := cachedUser{User: *user, PasswordHash: user.Password}
	if err := c.cache.SetObject(ctx, key, &entry, c.issuer.Lifespan()); err != nil {
		config.LogError(c.logger, "Credentials", "lookupUser", "cache user", email, err)
	}
	return user, nil
}
