// Package persistence stores finished job records with gorm.
package persistence

import (
	"fmt"

	"github.com/erp/labelprint/internal/infrastructure/config"
	"github.com/erp/labelprint/internal/infrastructure/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Database holds the database connection
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the configured database and migrates the job table
func NewDatabase(cfg *config.DatabaseConfig, zapLogger *zap.Logger, level string) (*Database, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database dsn is required for postgres")
		}
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		path := cfg.Path
		if path == "" {
			path = "labelprint.db"
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger, logger.GormLevel(level), 0),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &Database{DB: db}
	if err := d.Migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// Migrate creates or updates the job history table
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(&JobRecordModel{}); err != nil {
		return fmt.Errorf("failed to migrate job history: %w", err)
	}
	return nil
}

// EnableTracing records a span per query. Query arguments are left out of
// the spans since they carry sale data.
func (d *Database) EnableTracing(provider trace.TracerProvider, driver string) error {
	if driver == "" {
		driver = "sqlite"
	}
	plugin := otelgorm.NewPlugin(
		otelgorm.WithDBName(driver),
		otelgorm.WithTracerProvider(provider),
		otelgorm.WithoutQueryVariables(),
	)
	if err := d.DB.Use(plugin); err != nil {
		return fmt.Errorf("failed to register query tracing: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}
