package storage

import (
	"context"

	"PageWatcher/internal/config"
	"PageWatcher/internal/ports"
)

// NewRegistry builds the registry selected by cfg.Driver. The returned close
// function is never nil.
func NewRegistry(ctx context.Context, cfg config.StorageConfig) (ports.ResourceRegistry, func() error, error) {
	if cfg.Driver == "" || cfg.Driver == config.DriverMemory {
		return NewMemoryRepository(), func() error { return nil }, nil
	}

	repo, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}
