package app

import (
	"context"
	"fmt"

	"github.com/deusflow/MeterNews/internal/config"
	"github.com/deusflow/MeterNews/internal/dedup"
	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/storage"
)

// SeenStore is the memory of stories delivered by earlier runs.
type SeenStore interface {
	dedup.PriorSet
	Remember(ctx context.Context, runID string, groups []dedup.DuplicateGroup) error
	Cleanup(ctx context.Context) (int, error)
	Close() error
}

// OpenStore returns the configured store with expired entries cleaned up,
// or nil when SEEN_STORE is none.
func OpenStore(ctx context.Context, cfg *config.Config) (SeenStore, error) {
	var store SeenStore
	switch cfg.SeenStore {
	case config.SeenStoreFile:
		fs := storage.NewFileStore(cfg.SeenFilePath, cfg.SeenTTL())
		if err := fs.Load(); err != nil {
			return nil, fmt.Errorf("load seen stories: %w", err)
		}
		store = fs
	case config.SeenStorePostgres:
		ps, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.SeenTTL())
		if err != nil {
			return nil, err
		}
		store = ps
	default:
		return nil, nil
	}

	if n, err := store.Cleanup(ctx); err != nil {
		logger.Warn("Seen store cleanup failed", "store", cfg.SeenStore, "error", err)
	} else if n > 0 {
		logger.Info("Seen store cleaned up", "store", cfg.SeenStore, "removed", n)
	}
	return store, nil
}
