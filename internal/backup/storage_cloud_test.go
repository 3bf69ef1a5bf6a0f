package backup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Backend(t *testing.T) {
	tests := []struct {
		name    string
		config  *S3Config
		wantErr bool
	}{
		{
			name: "StaticCredentials",
			config: &S3Config{
				Bucket:          "backupdb-artifacts",
				Region:          "eu-central-1",
				AccessKeyID:     "AKIAEXAMPLE",
				SecretAccessKey: "secret",
			},
			wantErr: false,
		},
		{
			name: "DefaultCredentialChain",
			config: &S3Config{
				Bucket: "backupdb-artifacts",
				Region: "us-east-1",
			},
			wantErr: false,
		},
		{
			name:    "NilConfig",
			config:  nil,
			wantErr: true,
		},
		{
			name:    "MissingBucket",
			config:  &S3Config{Region: "us-east-1"},
			wantErr: true,
		},
		{
			name:    "MissingRegion",
			config:  &S3Config{Bucket: "backupdb-artifacts"},
			wantErr: true,
		},
		{
			name: "HalfCredentialPair",
			config: &S3Config{
				Bucket:      "backupdb-artifacts",
				Region:      "us-east-1",
				AccessKeyID: "AKIAEXAMPLE",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewS3Backend(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "s3", backend.Name())
		})
	}
}

func TestS3Backend_PrefixNormalization(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{"Empty", "", ""},
		{"Plain", "backups", "backups/"},
		{"TrailingSlash", "backups/", "backups/"},
		{"SurroundingSlashes", "/backups/prod/", "backups/prod/"},
		{"OnlySlashes", "///", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeObjectPrefix(tt.prefix))
		})
	}
}

func TestS3Backend_KeyLayout(t *testing.T) {
	backend, err := NewS3Backend(&S3Config{
		Bucket: "backupdb-artifacts",
		Region: "us-east-1",
		Prefix: "prod/backups",
	})
	require.NoError(t, err)

	// Object keys are a plain concatenation of the normalized prefix and
	// the artifact name.
	assert.Equal(t, "prod/backups/", backend.prefix)
	assert.Equal(t, "backupdb-artifacts", backend.bucket)
}

func TestContentTypeForArtifact(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"2026-08-21_app.sql.gz", "application/gzip"},
		{"2026-08-21_app.sql", "application/sql"},
		{"2026-08-21_app.sql.zst", "application/octet-stream"},
		{"2026-08-21_app.sql.gz.enc", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contentTypeForArtifact(tt.name))
		})
	}
}

func TestNewAzureBackend(t *testing.T) {
	// A shared key credential requires valid base64.
	validKey := "dGVzdC1hY2NvdW50LWtleQ=="

	tests := []struct {
		name    string
		config  *AzureConfig
		wantErr bool
	}{
		{
			name: "Valid",
			config: &AzureConfig{
				AccountName: "backupdbstore",
				AccountKey:  validKey,
				Container:   "backups",
			},
			wantErr: false,
		},
		{
			name:    "NilConfig",
			config:  nil,
			wantErr: true,
		},
		{
			name:    "MissingAccountName",
			config:  &AzureConfig{AccountKey: validKey, Container: "backups"},
			wantErr: true,
		},
		{
			name:    "MissingAccountKey",
			config:  &AzureConfig{AccountName: "backupdbstore", Container: "backups"},
			wantErr: true,
		},
		{
			name:    "MissingContainer",
			config:  &AzureConfig{AccountName: "backupdbstore", AccountKey: validKey},
			wantErr: true,
		},
		{
			name: "MalformedAccountKey",
			config: &AzureConfig{
				AccountName: "backupdbstore",
				AccountKey:  "not base64!",
				Container:   "backups",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewAzureBackend(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "azure", backend.Name())
		})
	}
}

func TestNewGCSBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("NilConfig", func(t *testing.T) {
		_, err := NewGCSBackend(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("MissingBucket", func(t *testing.T) {
		_, err := NewGCSBackend(ctx, &GCSConfig{})
		assert.Error(t, err)
	})

	t.Run("MissingCredentialsFile", func(t *testing.T) {
		_, err := NewGCSBackend(ctx, &GCSConfig{
			Bucket:          "backupdb-artifacts",
			CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
		})
		assert.Error(t, err)
	})
}
