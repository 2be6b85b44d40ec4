package main

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"rpucella.net/red-drive/internal/config"
	"rpucella.net/red-drive/internal/storage"
)

// initializeBackend opens the persistence medium named by cfg.Type and
// bounds every call with cfg.Timeout.
func initializeBackend(ctx context.Context, cfg config.BackendConfig) (storage.Backend, error) {
	var backend storage.Backend
	switch cfg.Type {
	case "local":
		backend = storage.NewLocalFileSystem(cfg.Location)
	case "memory":
		backend = storage.NewMemory()
	case "badger":
		db, err := storage.NewBadger(cfg.Location)
		if err != nil {
			return nil, err
		}
		backend = db
	case "gcs":
		var opts []option.ClientOption
		if cfg.GCS.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCS.CredentialsFile))
		}
		gcs, err := storage.NewGoogleCloud(ctx, cfg.Location, opts...)
		if err != nil {
			return nil, err
		}
		backend = gcs
	case "minio":
		m, err := storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.Location,
			Region:    cfg.MinIO.Region,
			Secure:    cfg.MinIO.Secure,
		})
		if err != nil {
			return nil, err
		}
		backend = m
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Type)
	}
	return storage.WithTimeout(backend, cfg.Timeout), nil
}
