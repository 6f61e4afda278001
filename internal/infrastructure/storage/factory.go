package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/config"
)

// New returns the configured object storage, or nil when storage is
// disabled. Services treat nil as "uploads unavailable".
func New(cfg *config.StorageConfig, logger *zap.Logger) (shared.ObjectStorage, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Provider {
	case "memory":
		return NewMemoryStorage(""), nil
	case "s3", "":
		s, err := NewS3Storage(cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("storage: unknown provider %q", cfg.Provider)
	}
}
