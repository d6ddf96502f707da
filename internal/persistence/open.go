package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/config"
)

// Open builds the backend selected by configuration.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.Storage.DataDir, logger)
	case config.BackendSQLite:
		return NewSQLiteStore(ctx, cfg.Storage.SQLitePath, logger)
	case config.BackendPostgres:
		return NewPostgres(ctx, cfg.Postgres, logger)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
