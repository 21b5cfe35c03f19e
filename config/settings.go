package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverMySQL  = "mysql"
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// DefaultSecret signs tokens when API_SECRET is unset. Development only.
const DefaultSecret = "pipeline-dev-secret"

// Settings is read once at startup and handed to the components that need it.
type Settings struct {
	Port   string
	GoEnv  string
	Secret string
	// TokenLifespan defaults to 24h.
	TokenLifespan time.Duration

	StoreDriver string
	DB          DatabaseSettings
	SQLitePath  string

	RedisAddress string

	CorsAllowedOrigins []string
	RateLimitEnabled   bool
	RateLimitRequests  int64
	RateLimitWindow    time.Duration

	PhoneRegion    string
	SkipMigrations bool
	LogLevel       string
}

type DatabaseSettings struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (s Settings) IsProduction() bool {
	return strings.EqualFold(s.GoEnv, "production")
}

// LoadSettings loads .env (if present) and reads the environment.
func LoadSettings() Settings {
	_ = godotenv.Load()

	port := strings.TrimSpace(os.Getenv("API_PORT"))
	if port == "" {
		port = strings.TrimSpace(os.Getenv("PORT"))
	}
	if port == "" {
		port = "3001"
	}

	secret := os.Getenv("API_SECRET")
	if secret == "" {
		secret = DefaultSecret
	}

	driver := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))
	if driver == "" {
		driver = StoreDriverMySQL
	}

	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if sqlitePath == "" {
		sqlitePath = "pipeline.db"
	}

	phoneRegion := strings.ToUpper(strings.TrimSpace(os.Getenv("PHONE_REGION")))
	if phoneRegion == "" {
		phoneRegion = "US"
	}

	return Settings{
		Port:          port,
		GoEnv:         strings.TrimSpace(os.Getenv("GO_ENV")),
		Secret:        secret,
		TokenLifespan: time.Duration(intFromEnv("TOKEN_HOUR_LIFESPAN", 24)) * time.Hour,
		StoreDriver:   driver,
		DB: DatabaseSettings{
			User:            os.Getenv("DB_USER"),
			Password:        os.Getenv("DB_PASSWORD"),
			Host:            os.Getenv("DB_HOST"),
			Port:            os.Getenv("DB_PORT"),
			Name:            os.Getenv("DB_NAME"),
			MaxOpenConns:    intFromEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    intFromEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
			ConnMaxIdleTime: time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second,
		},
		SQLitePath:         sqlitePath,
		RedisAddress:       strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
		CorsAllowedOrigins: SplitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RateLimitEnabled:   boolFromEnv("RATE_LIMIT_ENABLED"),
		RateLimitRequests:  int64(intFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)),
		RateLimitWindow:    time.Duration(intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		PhoneRegion:        phoneRegion,
		SkipMigrations:     boolFromEnv("SKIP_MIGRATIONS"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
	}
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func SplitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
