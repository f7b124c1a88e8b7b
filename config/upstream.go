package config

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// UpstreamConfig configures the reference upstream API (cmd/upstream).
type UpstreamConfig struct {
	Port         string
	DBDriver     string
	DBDSN        string
	JWTSecret    string
	AccessTTL    time.Duration
	WSTokenTTL   time.Duration
	SeedEmail    string
	SeedUsername string
	SeedPassword string
	LogLevel     string
}

func LoadUpstream() UpstreamConfig {
	return UpstreamConfig{
		Port:         getenv("UPSTREAM_PORT", "8000"),
		DBDriver:     getenv("DB_DRIVER", "sqlite"),
		DBDSN:        getenv("DB_DSN", "restaurant.db"),
		JWTSecret:    getenv("JWT_SECRET", "dev-secret-change-me"),
		AccessTTL:    getduration("ACCESS_TOKEN_TTL", 7*24*time.Hour),
		WSTokenTTL:   getduration("WS_TOKEN_TTL", 24*time.Hour),
		SeedEmail:    getenv("SEED_ADMIN_EMAIL", "admin@example.com"),
		SeedUsername: getenv("SEED_ADMIN_USERNAME", "admin"),
		SeedPassword: getenv("SEED_ADMIN_PASSWORD", "admin1234"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
	}
}

// InitDB opens the upstream database. sqlite DSNs get foreign keys enabled.
func InitDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if driver != "mysql" {
		// One connection: the pragma is per connection and ":memory:"
		// databases are too.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	}
	return db, nil
}
