package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBackend stores artifacts in a Google Cloud Storage bucket.
type GCSBackend struct {
	client *storage.Client
	bucket string
}

// NewGCSBackend creates a new GCSBackend instance.
func NewGCSBackend(ctx context.Context, config *GCSConfig) (*GCSBackend, error) {
	if config == nil {
		return nil, NewValidationError("GCS storage configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid GCS storage configuration", err)
	}

	var client *storage.Client
	var err error

	if config.CredentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsFile))
	} else {
		// Application default credentials from the environment or metadata
		// server.
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, NewStorageError("failed to create GCS client", err)
	}

	return &GCSBackend{
		client: client,
		bucket: config.Bucket,
	}, nil
}

// Name returns the backend identifier used in logs and reports.
func (gb *GCSBackend) Name() string {
	return "gcs"
}

// Validate checks that the bucket exists and is accessible.
func (gb *GCSBackend) Validate(ctx context.Context) error {
	if _, err := gb.client.Bucket(gb.bucket).Attrs(ctx); err != nil {
		return NewStorageError(fmt.Sprintf("GCS bucket %s is not accessible", gb.bucket), err)
	}
	return nil
}

// Store uploads an artifact to the bucket.
func (gb *GCSBackend) Store(ctx context.Context, localPath, name string) error {
	name = filepath.Base(name)

	file, err := os.Open(localPath)
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to open artifact %s", name), err)
	}
	defer file.Close()

	writer := gb.client.Bucket(gb.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentTypeForArtifact(name)

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return NewStorageError(fmt.Sprintf("failed to write artifact %s to GCS", name), err)
	}

	if err := writer.Close(); err != nil {
		return NewStorageError(fmt.Sprintf("failed to upload artifact %s to GCS", name), err)
	}

	return nil
}

// Fetch downloads an artifact object to destPath.
func (gb *GCSBackend) Fetch(ctx context.Context, name, destPath string) error {
	name = filepath.Base(name)

	reader, err := gb.client.Bucket(gb.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return NewNotFoundError(fmt.Sprintf("artifact %s not found in GCS", name), err)
		}
		return NewStorageError(fmt.Sprintf("failed to fetch artifact %s from GCS", name), err)
	}
	defer reader.Close()

	if err := writeStreamAtomic(reader, destPath); err != nil {
		return NewStorageError(fmt.Sprintf("failed to write artifact %s", name), err)
	}

	return nil
}

// List returns the objects in the bucket.
func (gb *GCSBackend) List(ctx context.Context) ([]RemoteArtifact, error) {
	var remotes []RemoteArtifact

	it := gb.client.Bucket(gb.bucket).Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, NewStorageError("failed to list artifacts in GCS", err)
		}

		remotes = append(remotes, RemoteArtifact{
			Name:    attrs.Name,
			Size:    attrs.Size,
			ModTime: attrs.Updated,
		})
	}

	return remotes, nil
}

// Delete removes an artifact object from the bucket.
func (gb *GCSBackend) Delete(ctx context.Context, name string) error {
	name = filepath.Base(name)

	if err := gb.client.Bucket(gb.bucket).Object(name).Delete(ctx); err != nil {
		return NewStorageError(fmt.Sprintf("failed to delete artifact %s from GCS", name), err)
	}

	return nil
}
