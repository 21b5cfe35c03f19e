// seed-users creates or updates the demo accounts rep@example.com (rep) and
// manager@example.com (manager).
//
// Usage (from backend directory):
//
//	STORE_DRIVER=sqlite SQLITE_PATH=pipeline.db SEED_PASSWORD=... go run ./cmd/seed-users
//
// The password defaults to "password123".
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pipeline_backend/config"
	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/utils"
)

const defaultSeedPassword = "password123"

type seedUser struct {
	email string
	name  string
	role  models.UserRole
}

var seedUsers = []seedUser{
	{email: "rep@example.com", name: "John Sales Rep", role: models.UserRoleRep},
	{email: "manager@example.com", name: "Jane Manager", role: models.UserRoleManager},
}

func main() {
	settings := config.LoadSettings()
	logger := config.GetLogger()
	if settings.StoreDriver == config.StoreDriverMemory {
		fmt.Fprintln(os.Stderr, "STORE_DRIVER=memory keeps nothing between runs; point seed-users at mysql or sqlite.")
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

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = defaultSeedPassword
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var cache *config.Cache
	if settings.RedisAddress != "" {
		cache, err = config.ConnectRedisWithRetry(ctx, settings.RedisAddress, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect redis: %v\n", err)
			os.Exit(1)
		}
		defer cache.Close()
	}

	users := models.NewGormStore(db).Users()
	for _, su := range seedUsers {
		if err := upsertUser(ctx, users, su, hashed); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed %s: %v\n", su.email, err)
			os.Exit(1)
		}
		// a stale cached hash would keep the old password working
		_ = cache.RemoveKey(ctx, models.UserCacheKey(su.email))
	}
}

func upsertUser(ctx context.Context, users models.UserRepository, su seedUser, hashed string) error {
	existing, err := users.GetByEmail(ctx, su.email)
	if err == nil {
		if err := users.UpdatePassword(ctx, existing.ID, hashed); err != nil {
			return err
		}
		fmt.Printf("Reset password for existing user: email=%q role=%s\n", su.email, existing.Role)
		return nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return err
	}

	now := time.Now()
	u := models.User{
		ID:        uuid.NewString(),
		Email:     su.email,
		Password:  hashed,
		Name:      su.name,
		Role:      su.role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := users.Create(ctx, &u); err != nil {
		return err
	}
	fmt.Printf("Created user: email=%q role=%s\n", su.email, su.role)
	return nil
}
