// Package storage keeps uploaded files (cafe logos, menu images) on the local
// filesystem or in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"

	"cafemanager/config"
)

type Disk interface {
	// Put writes r to path, replacing any existing object.
	Put(ctx context.Context, path string, r io.Reader, contentType string) error
	Delete(ctx context.Context, path string) error
	// URL is the public address clients use to fetch path.
	URL(path string) string
}

// New builds the disk selected by STORAGE_DISK.
func New(ctx context.Context, cfg *config.Config) (Disk, error) {
	switch cfg.StorageDisk {
	case "", "local":
		return NewLocal(cfg.UploadDir, cfg.UploadURL), nil
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Key:      cfg.S3Key,
			Secret:   cfg.S3Secret,
			Endpoint: cfg.S3Endpoint,
			BaseURL:  cfg.S3URL,
		})
	default:
		return nil, fmt.Errorf("storage: unknown disk %q", cfg.StorageDisk)
	}
}
