package backup

import (
	"context"
	"fmt"

	"github.com/VGXConsulting/BackupDB/internal/execution"
	"github.com/VGXConsulting/BackupDB/internal/logging"
)

// NewBackend creates the storage backend selected by the configuration. The
// runner is shared with the rest of the run so backends that shell out (git,
// rclone) log and time their commands the same way mysqldump does.
func NewBackend(ctx context.Context, config StorageConfig, runner execution.Runner, logger *logging.Logger) (Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid storage configuration", err)
	}

	switch config.Provider {
	case StorageProviderLocal:
		return NewLocalBackend(config.Local)

	case StorageProviderGit:
		return NewGitBackend(config.Git, runner, logger)

	case StorageProviderS3:
		return NewS3Backend(config.S3)

	case StorageProviderOneDrive:
		return NewRcloneBackend(config.Rclone, runner, logger)

	case StorageProviderAzure:
		return NewAzureBackend(config.Azure)

	case StorageProviderGCS:
		return NewGCSBackend(ctx, config.GCS)

	default:
		return nil, NewValidationError(fmt.Sprintf("unsupported storage provider: %s", config.Provider), nil)
	}
}

// SupportedProviders returns the storage provider types NewBackend accepts.
func SupportedProviders() []StorageProviderType {
	return []StorageProviderType{
		StorageProviderLocal,
		StorageProviderGit,
		StorageProviderS3,
		StorageProviderOneDrive,
		StorageProviderAzure,
		StorageProviderGCS,
	}
}
