package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Archive manages the local artifact directory. Every compressed dump lands
// here first; storage backends copy out of it, change detection and restore
// read back from it.
type Archive struct {
	dir string
}

// NewArchive creates the archive directory if needed and returns a handle.
func NewArchive(dir string) (*Archive, error) {
	if dir == "" {
		return nil, NewValidationError("archive directory is required", nil)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to create archive directory %s", dir), err)
	}

	return &Archive{dir: dir}, nil
}

// Dir returns the archive directory path.
func (a *Archive) Dir() string {
	return a.dir
}

// Path returns the absolute path of an artifact name inside the archive.
func (a *Archive) Path(name string) string {
	return filepath.Join(a.dir, filepath.Base(name))
}

// List returns all artifacts in the archive sorted by database, then date.
// Files that do not follow the artifact naming scheme (run reports, partial
// files, stray downloads) are skipped.
func (a *Archive) List() ([]Artifact, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, NewStorageError("failed to read archive directory", err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		artifact, err := ParseArtifactName(entry.Name())
		if err != nil {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		artifact.Path = filepath.Join(a.dir, entry.Name())
		artifact.Size = info.Size()
		artifacts = append(artifacts, artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].Database != artifacts[j].Database {
			return artifacts[i].Database < artifacts[j].Database
		}
		if !artifacts[i].Date.Equal(artifacts[j].Date) {
			return artifacts[i].Date.Before(artifacts[j].Date)
		}
		return artifacts[i].Name < artifacts[j].Name
	})

	return artifacts, nil
}

// ListDatabase returns the artifacts of one database, oldest first.
func (a *Archive) ListDatabase(database string) ([]Artifact, error) {
	all, err := a.List()
	if err != nil {
		return nil, err
	}

	var artifacts []Artifact
	for _, artifact := range all {
		if artifact.Database == database {
			artifacts = append(artifacts, artifact)
		}
	}

	return artifacts, nil
}

// FindPrevious returns the newest artifact of a database dated strictly
// before the given day. It returns nil when no prior artifact exists, which
// callers treat as "everything changed".
func (a *Archive) FindPrevious(database string, before time.Time) (*Artifact, error) {
	artifacts, err := a.ListDatabase(database)
	if err != nil {
		return nil, err
	}

	cutoff := truncateToDay(before)
	var previous *Artifact
	for i := range artifacts {
		if artifacts[i].Date.Before(cutoff) {
			previous = &artifacts[i]
		}
	}

	return previous, nil
}

// Latest returns the newest artifact of a database, or nil when the archive
// holds none.
func (a *Archive) Latest(database string) (*Artifact, error) {
	artifacts, err := a.ListDatabase(database)
	if err != nil {
		return nil, err
	}

	if len(artifacts) == 0 {
		return nil, nil
	}

	return &artifacts[len(artifacts)-1], nil
}

// Find returns the artifact of a database for an exact day, or nil.
func (a *Archive) Find(database string, date time.Time) (*Artifact, error) {
	artifacts, err := a.ListDatabase(database)
	if err != nil {
		return nil, err
	}

	day := truncateToDay(date)
	for i := range artifacts {
		if artifacts[i].Date.Equal(day) {
			return &artifacts[i], nil
		}
	}

	return nil, nil
}

// Install moves a finished artifact into place under its final name. The
// source is expected to live inside the archive directory (a partial file),
// so the rename is atomic.
func (a *Archive) Install(srcPath, name string) (string, error) {
	dst := a.Path(name)
	if err := os.Rename(srcPath, dst); err != nil {
		return "", NewStorageError(fmt.Sprintf("failed to install artifact %s", name), err)
	}
	return dst, nil
}

// Remove deletes an artifact from the archive.
func (a *Archive) Remove(name string) error {
	if err := os.Remove(a.Path(name)); err != nil {
		if os.IsNotExist(err) {
			return NewNotFoundError(fmt.Sprintf("artifact %s not found", name), err)
		}
		return NewStorageError(fmt.Sprintf("failed to remove artifact %s", name), err)
	}
	return nil
}

// TempFile creates a working file inside the archive directory so the final
// rename never crosses a filesystem boundary.
func (a *Archive) TempFile(pattern string) (*os.File, error) {
	file, err := os.CreateTemp(a.dir, pattern)
	if err != nil {
		return nil, NewStorageError("failed to create temporary file in archive", err)
	}
	return file, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// removeQuietly deletes a working file where failure is not worth surfacing.
func removeQuietly(path string) {
	_ = os.Remove(path)
}
