package blob

import (
	"context"
	"fmt"

	"deckcore/internal/config"
	"deckcore/internal/infra/blob/fs"
	memorystore "deckcore/internal/infra/blob/memory"
	infraS3 "deckcore/internal/infra/blob/s3"
)

// Open selects a Store from the archive configuration. The "none" driver (or
// an empty one) yields a nil Store and no error: archiving is disabled.
func Open(ctx context.Context, cfg config.Archive) (Store, error) {
	switch cfg.Driver {
	case "", config.ArchiveNone:
		return nil, nil
	case config.ArchiveFilesystem:
		return NewFilesystem(cfg.Root)
	case config.ArchiveMemory:
		return NewMemory(), nil
	case config.ArchiveS3:
		return NewS3(ctx, infraS3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	store, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg infraS3.Config) (Store, error) {
	store, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewFakeS3 returns an S3 Store backed by an in-process fake transport.
func NewFakeS3() Store { return infraS3.NewFake() }
