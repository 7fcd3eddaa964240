package storage

import (
	"fmt"

	"github.com/hashdrop-io/hashdrop/internal/metrics"
	"github.com/hashdrop-io/hashdrop/pkg/config"
)

// Factory creates storage instances based on configuration
type Factory struct {
	config *config.StorageConfig
}

// NewFactory creates a new storage factory
func NewFactory(config *config.StorageConfig) *Factory {
	return &Factory{config: config}
}

// CreateStore creates a storage instance based on the configured type.
// stats may be nil.
func (f *Factory) CreateStore(stats *metrics.Collector) (BlobStore, error) {
	switch f.config.Type {
	case "local":
		return NewLocalStore(f.config.LocalPath, stats)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", f.config.Type)
	}
}
