package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/VGXConsulting/BackupDB/internal/execution"
	"github.com/VGXConsulting/BackupDB/internal/logging"
)

// GitBackend versions artifacts in a git working tree and pushes every
// commit, so the remote repository carries the full backup history. All git
// operations go through the system git binary.
type GitBackend struct {
	config GitConfig
	runner execution.Runner
	logger *logging.Logger

	// lfsReady flips after the first successful lfs track so Store does not
	// re-run the tracking commands for every artifact of the run.
	lfsReady bool
}

// NewGitBackend creates a new GitBackend instance.
func NewGitBackend(config *GitConfig, runner execution.Runner, logger *logging.Logger) (*GitBackend, error) {
	if config == nil {
		return nil, NewValidationError("git storage configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid git storage configuration", err)
	}

	if runner == nil {
		runner = execution.NewRunner(logger)
	}

	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &GitBackend{
		config: *config,
		runner: runner,
		logger: logger,
	}, nil
}

// Name returns the backend identifier used in logs and reports.
func (gb *GitBackend) Name() string {
	return "git"
}

// Validate checks that the working tree exists, is a git repository, and
// that the remote is reachable when one is configured.
func (gb *GitBackend) Validate(ctx context.Context) error {
	if _, err := gb.runner.LookPath("git"); err != nil {
		return NewConfigurationError("git binary not found in PATH", err)
	}

	if gb.config.LFS {
		if _, err := gb.runner.LookPath("git-lfs"); err != nil {
			return NewConfigurationError("git-lfs binary not found in PATH", err)
		}
	}

	info, err := os.Stat(gb.config.Dir)
	if err != nil || !info.IsDir() {
		return NewConfigurationError(fmt.Sprintf("git working tree %s does not exist", gb.config.Dir), err)
	}

	if _, err := gb.git(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		return NewConfigurationError(fmt.Sprintf("%s is not a git working tree", gb.config.Dir), err)
	}

	if gb.config.Remote != "" {
		if _, err := gb.git(ctx, "ls-remote", "--exit-code", gb.config.Remote); err != nil {
			return NewStorageError(fmt.Sprintf("git remote %s is not reachable", gb.config.Remote), err)
		}
	}

	return nil
}

// Store copies an artifact into the working tree, commits it, and pushes.
// An artifact that is byte-identical to the committed version produces no
// commit and no push.
func (gb *GitBackend) Store(ctx context.Context, localPath, name string) error {
	name = filepath.Base(name)

	if err := gb.ensureLFS(ctx); err != nil {
		return err
	}

	dst := filepath.Join(gb.config.Dir, name)
	if err := copyFileAtomic(localPath, dst); err != nil {
		return NewStorageError(fmt.Sprintf("failed to copy artifact %s into git tree", name), err)
	}

	if _, err := gb.git(ctx, "add", "--", name); err != nil {
		return NewStorageError(fmt.Sprintf("failed to stage artifact %s", name), err)
	}

	status, err := gb.git(ctx, "status", "--porcelain", "--", name)
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to check status of artifact %s", name), err)
	}
	if strings.TrimSpace(status.Stdout) == "" {
		gb.logger.WithField("artifact", name).Debug("Artifact already committed, skipping push")
		return nil
	}

	if err := gb.commit(ctx, fmt.Sprintf("backup: %s", name)); err != nil {
		return NewStorageError(fmt.Sprintf("failed to commit artifact %s", name), err)
	}

	if err := gb.push(ctx); err != nil {
		return NewStorageError(fmt.Sprintf("failed to push artifact %s", name), err)
	}

	return nil
}

// Fetch copies an artifact out of the working tree.
func (gb *GitBackend) Fetch(ctx context.Context, name, destPath string) error {
	name = filepath.Base(name)
	src := filepath.Join(gb.config.Dir, name)

	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return NewNotFoundError(fmt.Sprintf("artifact %s not found in git tree", name), err)
		}
		return NewStorageError(fmt.Sprintf("failed to stat artifact %s", name), err)
	}

	if err := copyFileAtomic(src, destPath); err != nil {
		return NewStorageError(fmt.Sprintf("failed to fetch artifact %s from git tree", name), err)
	}

	return nil
}

// List returns the tracked files at the root of the working tree.
func (gb *GitBackend) List(ctx context.Context) ([]RemoteArtifact, error) {
	result, err := gb.git(ctx, "ls-files")
	if err != nil {
		return nil, NewStorageError("failed to list git tree", err)
	}

	var remotes []RemoteArtifact
	for _, line := range strings.Split(result.Stdout, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.Contains(name, "/") {
			continue
		}

		remote := RemoteArtifact{Name: name}
		if info, err := os.Stat(filepath.Join(gb.config.Dir, name)); err == nil {
			remote.Size = info.Size()
			remote.ModTime = info.ModTime()
		}

		remotes = append(remotes, remote)
	}

	return remotes, nil
}

// Delete removes an artifact from the working tree with a retention commit.
func (gb *GitBackend) Delete(ctx context.Context, name string) error {
	name = filepath.Base(name)

	if _, err := gb.git(ctx, "rm", "-q", "--", name); err != nil {
		return NewStorageError(fmt.Sprintf("failed to remove artifact %s from git tree", name), err)
	}

	if err := gb.commit(ctx, fmt.Sprintf("retention: remove %s", name)); err != nil {
		return NewStorageError(fmt.Sprintf("failed to commit removal of %s", name), err)
	}

	if err := gb.push(ctx); err != nil {
		return NewStorageError(fmt.Sprintf("failed to push removal of %s", name), err)
	}

	return nil
}

// ensureLFS registers the artifact patterns with git-lfs once per process.
func (gb *GitBackend) ensureLFS(ctx context.Context) error {
	if !gb.config.LFS || gb.lfsReady {
		return nil
	}

	for _, pattern := range []string{"*.sql", "*.sql.*"} {
		if _, err := gb.git(ctx, "lfs", "track", pattern); err != nil {
			return NewStorageError(fmt.Sprintf("failed to track %s with git-lfs", pattern), err)
		}
	}

	if _, err := gb.git(ctx, "add", "--", ".gitattributes"); err != nil {
		return NewStorageError("failed to stage .gitattributes", err)
	}

	gb.lfsReady = true
	return nil
}

// commit records staged changes with the configured author identity. The
// identity travels as -c overrides so the backend never touches the working
// tree's git configuration.
func (gb *GitBackend) commit(ctx context.Context, message string) error {
	_, err := gb.git(ctx,
		"-c", "user.name="+gb.config.AuthorName,
		"-c", "user.email="+gb.config.AuthorEmail,
		"commit", "-m", message,
	)
	return err
}

// push sends the branch to the configured remote. An empty remote falls back
// to the working tree's upstream.
func (gb *GitBackend) push(ctx context.Context) error {
	args := []string{"push"}
	if gb.config.Remote != "" {
		args = append(args, gb.config.Remote, gb.config.Branch)
	}

	_, err := gb.git(ctx, args...)
	return err
}

func (gb *GitBackend) git(ctx context.Context, args ...string) (*execution.CommandResult, error) {
	return gb.runner.Run(ctx, execution.CommandSpec{
		Binary: "git",
		Args:   args,
		Dir:    gb.config.Dir,
	})
}
