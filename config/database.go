package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// OpenDatabase opens the relational store selected by settings.StoreDriver.
// MySQL is retried with backoff until ctx is done; SQLite opens once.
func OpenDatabase(ctx context.Context, settings Settings, logg *logrus.Logger) (*gorm.DB, error) {
	switch settings.StoreDriver {
	case StoreDriverSQLite:
		return OpenSQLite(settings.SQLitePath)
	case StoreDriverMySQL:
		return connectMySQLWithRetry(ctx, settings.DB, logg)
	default:
		return nil, fmt.Errorf("store driver %q has no relational database", settings.StoreDriver)
	}
}

// OpenSQLite opens an embedded SQLite database. ":memory:" keeps everything in
// a single connection so the schema survives between queries.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	inMemory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !inMemory && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := gorm.Open(sqlite.Open(dsn), initConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		log.Printf("sqlite opened but failed to install otelgorm plugin: %v", err)
	}
	return db, nil
}

func connectMySQLWithRetry(ctx context.Context, settings DatabaseSettings, logg *logrus.Logger) (*gorm.DB, error) {
	network := "tcp"
	address := fmt.Sprintf("%s:%s", settings.Host, settings.Port)
	// DB_HOST=/cloudsql/<CONNECTION_NAME> connects through a unix socket.
	if strings.HasPrefix(settings.Host, "/cloudsql/") {
		network = "unix"
		address = settings.Host
	}

	databaseConfig := fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
		settings.User,
		settings.Password,
		network,
		address,
		settings.Name,
	)

	var attempt int
	for {
		attempt++
		db, err := gorm.Open(mysql.Open(databaseConfig), initConfig())
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				sqlDB.SetMaxOpenConns(settings.MaxOpenConns)
				sqlDB.SetMaxIdleConns(settings.MaxIdleConns)
				sqlDB.SetConnMaxLifetime(settings.ConnMaxLifetime)
				sqlDB.SetConnMaxIdleTime(settings.ConnMaxIdleTime)
			}
			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				logg.WithFields(logrus.Fields{"field": "database"}).Warn("db connected but failed to install otelgorm plugin: " + pluginErr.Error())
			}
			logg.WithFields(logrus.Fields{"field": "database", "attempt": attempt}).Info("connected to database")
			return db, nil
		}

		sleep := backoff(attempt)
		logg.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to connect database; retrying in " + sleep.String() + ": " + err.Error())

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect database: %w", ctx.Err())
		case <-time.After(sleep):
		}
	}
}

func backoff(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
		TranslateError: true,
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
