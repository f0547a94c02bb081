package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"socialnet/database"
	"socialnet/telemetry"
)

// Session stores.
const (
	sessionStoreDB    = "db"
	sessionStoreRedis = "redis"
)

// Config is the application configuration, read from a JSON file and SOCIALNET_* env vars.
type Config struct {
	Port       int              `mapstructure:"port"`
	Env        string           `mapstructure:"env"`
	LogLevel   string           `mapstructure:"log_level"`
	Pepper     string           `mapstructure:"pepper"`
	HMACKey    string           `mapstructure:"hmac_key"`
	UploadsDir string           `mapstructure:"uploads_dir"`
	Database   database.Config  `mapstructure:"database"`
	Session    SessionConfig    `mapstructure:"session"`
	Images     ImagesConfig     `mapstructure:"images"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Telemetry  telemetry.Config `mapstructure:"telemetry"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// SessionConfig selects the session store and the session lifetime.
type SessionConfig struct {
	Store     string        `mapstructure:"store"`
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
}

// ImagesConfig bounds uploaded images. PostMax and AvatarMax are the edge length of the
// square box images are scaled into.
type ImagesConfig struct {
	PostMax     int `mapstructure:"post_max"`
	AvatarMax   int `mapstructure:"avatar_max"`
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

// RateLimitConfig limits login and register attempts per client IP.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// IsProd reports whether the app runs in production.
func (c Config) IsProd() bool {
	return c.Env == "prod"
}

// DefaultConfig returns a development config backed by a local sqlite file.
func DefaultConfig() Config {
	return Config{
		Port:       1111,
		Env:        "dev",
		LogLevel:   "",
		Pepper:     "secret-random-string",
		HMACKey:    "secret-hmac-key",
		UploadsDir: "uploads",
		Database:   DefaultDatabaseConfig(),
		Session: SessionConfig{
			Store:     sessionStoreDB,
			TTL:       24 * time.Hour,
			RedisAddr: "localhost:6379",
		},
		Images: ImagesConfig{
			PostMax:     800,
			AvatarMax:   200,
			JPEGQuality: 80,
		},
		RateLimit: RateLimitConfig{
			RPS:   1,
			Burst: 5,
		},
		Telemetry: telemetry.Config{
			Endpoint:    "localhost:4318",
			ServiceName: "socialnet",
			Insecure:    true,
		},
	}
}

// DefaultDatabaseConfig returns the sqlite database settings used in development.
func DefaultDatabaseConfig() database.Config {
	return database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: "socialnet.db",
		Host:       "localhost",
		Port:       5432,
		User:       "postgres",
		Password:   "",
		Name:       "socialnet",
	}
}

// LoadConfig reads .config.json from the working directory, or the file at path, on top of
// DefaultConfig. SOCIALNET_ prefixed environment variables override both, e.g.
// SOCIALNET_DATABASE_DRIVER. In production a config file is required.
func LoadConfig(path string, isProd bool) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigType("json")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("SOCIALNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if isProd {
			return Config{}, fmt.Errorf("a .config.json file is required in production")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.File = v.ConfigFileUsed()
	if isProd {
		c.Env = "prod"
	}
	return c, nil
}

// setDefaults registers every key, which also makes them visible to AutomaticEnv.
func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("port", c.Port)
	v.SetDefault("env", c.Env)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("pepper", c.Pepper)
	v.SetDefault("hmac_key", c.HMACKey)
	v.SetDefault("uploads_dir", c.UploadsDir)

	v.SetDefault("database.driver", c.Database.Driver)
	v.SetDefault("database.dsn", c.Database.DSN)
	v.SetDefault("database.host", c.Database.Host)
	v.SetDefault("database.port", c.Database.Port)
	v.SetDefault("database.user", c.Database.User)
	v.SetDefault("database.password", c.Database.Password)
	v.SetDefault("database.name", c.Database.Name)
	v.SetDefault("database.sqlite_path", c.Database.SQLitePath)

	v.SetDefault("session.store", c.Session.Store)
	v.SetDefault("session.ttl", c.Session.TTL)
	v.SetDefault("session.redis_addr", c.Session.RedisAddr)
	v.SetDefault("session.redis_db", c.Session.RedisDB)

	v.SetDefault("images.post_max", c.Images.PostMax)
	v.SetDefault("images.avatar_max", c.Images.AvatarMax)
	v.SetDefault("images.jpeg_quality", c.Images.JPEGQuality)

	v.SetDefault("rate_limit.rps", c.RateLimit.RPS)
	v.SetDefault("rate_limit.burst", c.RateLimit.Burst)

	v.SetDefault("telemetry.enabled", c.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", c.Telemetry.Endpoint)
	v.SetDefault("telemetry.service_name", c.Telemetry.ServiceName)
	v.SetDefault("telemetry.insecure", c.Telemetry.Insecure)
}
