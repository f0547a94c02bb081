// Package database opens the gorm connection and manages the schema.
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"socialnet/domain"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the driver and where to connect. A non-empty DSN wins over the
// individual connection fields.
type Config struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// ConnectionInfo returns the string handed to the gorm driver.
func (c Config) ConnectionInfo() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == DriverPostgres {
		if c.Password == "" {
			return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable", c.Host, c.Port, c.User, c.Name)
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", c.Host, c.Port, c.User, c.Password, c.Name)
	}
	// Foreign keys are off by default in sqlite, and writers should wait for each other.
	return c.SQLitePath + "?_foreign_keys=on&_busy_timeout=5000"
}

// DB provides the database connection.
type DB struct {
	// Object-relational mapping.
	Gorm *gorm.DB
	// Driver is one of DriverSQLite or DriverPostgres.
	Driver string
}

// Open opens a new database connection. It also configures logging
// based on whether we're in development or in production.
func Open(cfg Config, isProd bool) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		if cfg.DSN == "" && cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path required")
		}
		cfg.Driver = DriverSQLite
		dialector = sqlite.Open(cfg.ConnectionInfo())
	case DriverPostgres:
		dialector = postgres.Open(cfg.ConnectionInfo())
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
	if !isProd {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}
	g, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.Driver, err)
	}
	return &DB{Gorm: g, Driver: cfg.Driver}, nil
}

// AutoMigrate runs database migrations for all tables.
func (db *DB) AutoMigrate() error {
	return db.Gorm.AutoMigrate(domain.Models()...)
}

// DestructiveReset drops all tables and rebuilds them.
func (db *DB) DestructiveReset() error {
	models := domain.Models()
	// Dependents go first so no foreign key is left dangling.
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Gorm.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	return db.AutoMigrate()
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
