package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/VGXConsulting/BackupDB/internal/execution"
	"github.com/VGXConsulting/BackupDB/internal/logging"
)

// rclone exits with 3 when the requested directory does not exist, which on
// a fresh remote just means nothing has been uploaded yet.
const rcloneExitDirNotFound = 3

// RcloneBackend stores artifacts on OneDrive through the rclone binary. Any
// remote rclone can talk to works, OneDrive is simply the one this backend
// exists for.
type RcloneBackend struct {
	config RcloneConfig
	runner execution.Runner
	logger *logging.Logger
}

// rcloneEntry is one item of rclone lsjson output.
type rcloneEntry struct {
	Path    string `json:"Path"`
	Name    string `json:"Name"`
	Size    int64  `json:"Size"`
	ModTime string `json:"ModTime"`
	IsDir   bool   `json:"IsDir"`
}

// NewRcloneBackend creates a new RcloneBackend instance.
func NewRcloneBackend(config *RcloneConfig, runner execution.Runner, logger *logging.Logger) (*RcloneBackend, error) {
	if config == nil {
		return nil, NewValidationError("rclone storage configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid rclone storage configuration", err)
	}

	if runner == nil {
		runner = execution.NewRunner(logger)
	}

	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &RcloneBackend{
		config: *config,
		runner: runner,
		logger: logger,
	}, nil
}

// Name returns the backend identifier used in logs and reports.
func (rb *RcloneBackend) Name() string {
	return "onedrive"
}

// Validate checks the rclone binary, creates the target directory, and
// verifies the remote answers.
func (rb *RcloneBackend) Validate(ctx context.Context) error {
	if _, err := rb.runner.LookPath("rclone"); err != nil {
		return NewConfigurationError("rclone binary not found in PATH", err)
	}

	if _, err := rb.rclone(ctx, "mkdir", rb.remotePath("")); err != nil {
		return NewStorageError(fmt.Sprintf("rclone remote %s is not reachable", rb.config.Remote), err)
	}

	return nil
}

// Store uploads an artifact with rclone copyto.
func (rb *RcloneBackend) Store(ctx context.Context, localPath, name string) error {
	name = filepath.Base(name)

	if _, err := rb.rclone(ctx, "copyto", localPath, rb.remotePath(name)); err != nil {
		return NewStorageError(fmt.Sprintf("failed to upload artifact %s", name), err)
	}

	return nil
}

// Fetch downloads an artifact with rclone copyto.
func (rb *RcloneBackend) Fetch(ctx context.Context, name, destPath string) error {
	name = filepath.Base(name)

	if _, err := rb.rclone(ctx, "copyto", rb.remotePath(name), destPath); err != nil {
		return NewStorageError(fmt.Sprintf("failed to fetch artifact %s", name), err)
	}

	return nil
}

// List returns the files in the remote directory via rclone lsjson.
func (rb *RcloneBackend) List(ctx context.Context) ([]RemoteArtifact, error) {
	result, err := rb.rclone(ctx, "lsjson", rb.remotePath(""))
	if err != nil {
		if result != nil && result.ExitCode == rcloneExitDirNotFound {
			return nil, nil
		}
		return nil, NewStorageError("failed to list remote directory", err)
	}

	var entries []rcloneEntry
	if err := json.Unmarshal([]byte(result.Stdout), &entries); err != nil {
		return nil, NewStorageError("failed to parse rclone lsjson output", err)
	}

	var remotes []RemoteArtifact
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}

		remote := RemoteArtifact{
			Name: entry.Name,
			Size: entry.Size,
		}
		if modTime, err := time.Parse(time.RFC3339Nano, entry.ModTime); err == nil {
			remote.ModTime = modTime
		}

		remotes = append(remotes, remote)
	}

	return remotes, nil
}

// Delete removes an artifact from the remote.
func (rb *RcloneBackend) Delete(ctx context.Context, name string) error {
	name = filepath.Base(name)

	if _, err := rb.rclone(ctx, "deletefile", rb.remotePath(name)); err != nil {
		return NewStorageError(fmt.Sprintf("failed to delete artifact %s", name), err)
	}

	return nil
}

// remotePath builds an rclone remote path like "onedrive:backups/name".
func (rb *RcloneBackend) remotePath(name string) string {
	remote := rb.config.Remote
	if !strings.HasSuffix(remote, ":") {
		remote += ":"
	}

	parts := make([]string, 0, 2)
	if dir := strings.Trim(rb.config.Path, "/"); dir != "" {
		parts = append(parts, dir)
	}
	if name != "" {
		parts = append(parts, name)
	}

	return remote + strings.Join(parts, "/")
}

func (rb *RcloneBackend) rclone(ctx context.Context, args ...string) (*execution.CommandResult, error) {
	if rb.config.ConfigFile != "" {
		args = append([]string{"--config", rb.config.ConfigFile}, args...)
	}

	return rb.runner.Run(ctx, execution.CommandSpec{
		Binary: "rclone",
		Args:   args,
	})
}
