// seed-admin creates the admin account, or resets its password when it already
// exists. Roles are immutable, so an existing non-admin account with the same
// email is left as it is and reported.
//
// Usage (from backend directory):
//
//	ADMIN_EMAIL=... ADMIN_PASSWORD=... go run ./cmd/seed-admin
//
// ADMIN_EMAIL defaults to admin@example.com. ADMIN_PASSWORD is required.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pipeline_backend/config"
	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/utils"
)

const (
	defaultAdminEmail = "admin@example.com"
	adminName         = "Pipeline Admin"
)

func main() {
	settings := config.LoadSettings()
	logger := config.GetLogger()
	if settings.StoreDriver == config.StoreDriverMemory {
		fmt.Fprintln(os.Stderr, "STORE_DRIVER=memory keeps nothing between runs; point seed-admin at mysql or sqlite.")
		os.Exit(2)
	}

	email := utils.NormalizeEmail(os.Getenv("ADMIN_EMAIL"))
	if email == "" {
		email = defaultAdminEmail
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if strings.TrimSpace(password) == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD is required.")
		os.Exit(2)
	}
	if len(password) < utils.MinPasswordLength {
		fmt.Fprintf(os.Stderr, "ADMIN_PASSWORD must be at least %d characters.\n", utils.MinPasswordLength)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := config.OpenDatabase(ctx, settings, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	users := models.NewGormStore(db).Users()
	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.UserRoleAdmin {
			fmt.Fprintf(os.Stderr, "%s already exists with role %s; roles cannot be changed.\n", email, existing.Role)
			os.Exit(1)
		}
		if err := users.UpdatePassword(ctx, existing.ID, hashed); err != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin password: %v\n", err)
			os.Exit(1)
		}
		evictCachedUser(ctx, settings, email)
		fmt.Printf("Updated admin user: email=%q\n", email)
	case errors.Is(err, utils.ErrorRecordNotFound):
		now := time.Now()
		u := models.User{
			ID:        uuid.NewString(),
			Email:     email,
			Password:  hashed,
			Name:      adminName,
			Role:      models.UserRoleAdmin,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := users.Create(ctx, &u); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: email=%q\n", email)
	default:
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	}
}

func evictCachedUser(ctx context.Context, settings config.Settings, email string) {
	if settings.RedisAddress == "" {
		return
	}
	cache, err := config.ConnectRedisWithRetry(ctx, settings.RedisAddress, config.GetLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "password updated but cached login was not evicted: %v\n", err)
		return
	}
	defer cache.Close()
	_ = cache.RemoveKey(ctx, models.UserCacheKey(email))
}
