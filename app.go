package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"socialnet/crud"
	"socialnet/database"
	"socialnet/domain"
	"socialnet/logger"
)

// app holds what every command needs: the configuration, the logger and the database.
type app struct {
	cfg   Config
	db    *database.DB
	redis *redis.Client
}

// newApp loads the configuration, sets up logging and opens the database connection.
func newApp(opts *rootOptions) (*app, error) {
	// Load configuration from a .config.json file if present, otherwise use the default dev setup.
	// In production the file is required.
	cfg, err := LoadConfig(opts.configPath, opts.prod)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.File != "" {
		logger.Info("loaded config file", zap.String("path", cfg.File))
	}

	db, err := database.Open(cfg.Database, cfg.IsProd())
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, db: db}, nil
}

// services starts the crud services on the app's database connection.
func (a *app) services(ctx context.Context) (*crud.Services, error) {
	cfg := a.cfg
	session := crud.WithSession(cfg.HMACKey, cfg.Session.TTL)
	switch cfg.Session.Store {
	case sessionStoreDB, "":
	case sessionStoreRedis:
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr, DB: cfg.Session.RedisDB})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Session.RedisAddr, err)
		}
		session = crud.WithRedisSession(a.redis, cfg.HMACKey, cfg.Session.TTL)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}

	return crud.NewServices(
		a.db.Gorm,
		crud.WithImage(
			cfg.UploadsDir,
			cfg.Images.JPEGQuality,
			domain.Bounds{Width: cfg.Images.PostMax, Height: cfg.Images.PostMax},
			domain.Bounds{Width: cfg.Images.AvatarMax, Height: cfg.Images.AvatarMax},
		),
		crud.WithUser(cfg.Pepper),
		session,
		crud.WithPost(),
		crud.WithLike(),
		crud.WithShare(),
		crud.WithFollow(),
		crud.WithComment(),
		crud.WithFeed(),
		crud.WithSearch(),
		crud.WithReconciler(),
	)
}

// close releases the connections and flushes the logger.
func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("closing redis client failed", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		logger.Warn("closing database failed", zap.Error(err))
	}
	_ = logger.Sync()
}
