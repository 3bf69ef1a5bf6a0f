package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalBackend stores artifacts in a plain directory, typically a mounted
// NAS or a second disk. It is also the fallback when no storage type is
// configured so a bare run still produces usable backups.
type LocalBackend struct {
	path string
}

// NewLocalBackend creates a new LocalBackend instance.
func NewLocalBackend(config *LocalConfig) (*LocalBackend, error) {
	if config == nil {
		return nil, NewValidationError("local storage configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid local storage configuration", err)
	}

	return &LocalBackend{path: config.Path}, nil
}

// Name returns the backend identifier used in logs and reports.
func (lb *LocalBackend) Name() string {
	return "local"
}

// Validate creates the target directory and probes that it is writable.
func (lb *LocalBackend) Validate(ctx context.Context) error {
	if err := os.MkdirAll(lb.path, 0755); err != nil {
		return NewStorageError(fmt.Sprintf("failed to create storage directory %s", lb.path), err)
	}

	probe, err := os.CreateTemp(lb.path, ".write-probe-*")
	if err != nil {
		return NewStorageError(fmt.Sprintf("storage directory %s is not writable", lb.path), err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return nil
}

// Store copies an artifact into the storage directory. The copy goes through
// a temporary file so a crash never leaves a truncated artifact under its
// final name.
func (lb *LocalBackend) Store(ctx context.Context, localPath, name string) error {
	if err := os.MkdirAll(lb.path, 0755); err != nil {
		return NewStorageError(fmt.Sprintf("failed to create storage directory %s", lb.path), err)
	}

	dst := filepath.Join(lb.path, filepath.Base(name))
	if err := copyFileAtomic(localPath, dst); err != nil {
		return NewStorageError(fmt.Sprintf("failed to store artifact %s", name), err)
	}

	return nil
}

// Fetch copies an artifact out of the storage directory.
func (lb *LocalBackend) Fetch(ctx context.Context, name, destPath string) error {
	src := filepath.Join(lb.path, filepath.Base(name))

	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return NewNotFoundError(fmt.Sprintf("artifact %s not found in storage", name), err)
		}
		return NewStorageError(fmt.Sprintf("failed to stat artifact %s", name), err)
	}

	if err := copyFileAtomic(src, destPath); err != nil {
		return NewStorageError(fmt.Sprintf("failed to fetch artifact %s", name), err)
	}

	return nil
}

// List returns the files currently in the storage directory.
// Subdirectories are skipped.
func (lb *LocalBackend) List(ctx context.Context) ([]RemoteArtifact, error) {
	entries, err := os.ReadDir(lb.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewStorageError(fmt.Sprintf("failed to list storage directory %s", lb.path), err)
	}

	var remotes []RemoteArtifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		remotes = append(remotes, RemoteArtifact{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return remotes, nil
}

// Delete removes an artifact from the storage directory.
func (lb *LocalBackend) Delete(ctx context.Context, name string) error {
	target := filepath.Join(lb.path, filepath.Base(name))
	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return NewNotFoundError(fmt.Sprintf("artifact %s not found in storage", name), err)
		}
		return NewStorageError(fmt.Sprintf("failed to delete artifact %s", name), err)
	}
	return nil
}

// copyFileAtomic copies src to dst via a temporary file in dst's directory
// followed by a rename.
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeStreamAtomic(in, dst)
}

// writeStreamAtomic writes r to dst via a temporary file in dst's directory
// followed by a rename, so a crash never leaves a truncated file under the
// final name.
func writeStreamAtomic(r io.Reader, dst string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partial-*")
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return nil
}
