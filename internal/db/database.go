// Package db provides database and Redis connections.
package db

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"siteforge/internal/logging"
	"siteforge/pkg/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds database configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string

	// SQLitePath, when set, switches to an embedded SQLite database.
	// Used for local development without a Postgres instance.
	SQLitePath string
}

// ConfigFromEnv reads database settings from the environment.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Host:       getEnv("DB_HOST", "localhost"),
		Port:       5432,
		User:       getEnv("DB_USER", "siteforge"),
		Password:   os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "siteforge"),
		SSLMode:    getEnv("DB_SSLMODE", "disable"),
		TimeZone:   getEnv("DB_TIMEZONE", "UTC"),
		SQLitePath: os.Getenv("SQLITE_PATH"),
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	return cfg
}

// Database wraps the GORM database instance.
type Database struct {
	DB *gorm.DB
}

// NewDatabase connects and runs migrations.
func NewDatabase(config *Config) (*Database, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	if config.SQLitePath != "" {
		db, err = gorm.Open(sqlite.Open(config.SQLitePath), gormConfig)
	} else {
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			config.Host, config.Port, config.User, config.Password,
			config.DBName, config.SSLMode, config.TimeZone,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	database := &Database{DB: db}
	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.L().Info("database connected")
	return database, nil
}

// Migrate runs auto-migrations for all models.
func (d *Database) Migrate() error {
	return d.DB.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.Project{},
		&models.GenerationSession{},
		&models.AgentPlan{},
		&models.Template{},
		&models.CommunityProject{},
		&models.TokenPurchase{},
	)
}

// Close releases the connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
