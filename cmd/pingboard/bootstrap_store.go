package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/pingboard/internal/config/pingboard"
	"github.com/NordCoder/pingboard/internal/domain/snapshot"
	"github.com/NordCoder/pingboard/internal/repository/file"
	"github.com/NordCoder/pingboard/internal/repository/memory"
	pg "github.com/NordCoder/pingboard/internal/repository/postgres"
	"github.com/NordCoder/pingboard/internal/repository/sqlite"
)

type healthFunc = func(context.Context) error

func noHealth(context.Context) error { return nil }

// initStore opens the configured snapshot backend and applies migrations for
// the SQL ones.
func initStore(ctx context.Context, cfg config.StoreCfg, l *zap.Logger) (snapshot.Store, healthFunc, error) {
	l = l.With(zap.String("store", cfg.Kind))
	switch cfg.Kind {
	case "memory":
		l.Warn("snapshot store is in memory; nothing survives a restart")
		return memory.New(), noHealth, nil

	case "file":
		s, err := file.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		l.Info("snapshot store ready", zap.String("path", cfg.Path))
		return s, noHealth, nil

	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if cfg.Migrate {
			if err := s.Migrate(ctx, l); err != nil {
				_ = s.Close()
				return nil, nil, err
			}
		}
		l.Info("snapshot store ready", zap.String("path", cfg.SQLitePath))
		return s, noHealth, nil

	case "postgres":
		db, err := pg.New(ctx, cfg.DB.AsPoolConfig())
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := db.Migrate(ctx, l); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		health := func(ctx context.Context) error {
			hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			return db.Pool.Ping(hctx)
		}
		l.Info("snapshot store ready")
		return pg.NewKVStore(db), health, nil
	}
	return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}
