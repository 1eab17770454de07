package backend

import (
	"context"
	"fmt"
	"log/slog"

	"costindex/internal/memory"
	"costindex/internal/storage"
)

// Factory opens stores described by a Config.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Open validates cfg and opens the selected store.
func (f *Factory) Open(ctx context.Context, cfg Config) (*Opened, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindSQLite:
		return f.openSQLite(ctx, cfg)
	default:
		return f.openMemory(ctx, cfg), nil
	}
}

func (f *Factory) openSQLite(ctx context.Context, cfg Config) (*Opened, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	f.logger.InfoContext(ctx, "Opened SQLite store", "db_path", cfg.SQLitePath)
	return &Opened{Store: repo, Close: repo.Close}, nil
}

func (f *Factory) openMemory(ctx context.Context, cfg Config) *Opened {
	store := memory.New()
	if cfg.SeedDir != "" {
		store = memory.NewFromFiles(cfg.SeedDir)
	}

	f.logger.InfoContext(ctx, "Opened memory store", "seed_dir", cfg.SeedDir)
	return &Opened{Store: store, Close: store.Close}
}
