package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/VGXConsulting/BackupDB/internal/logging"
)

// SQLApplier feeds recovered SQL text into a database. database.Dumper
// implements it with the mysql client.
type SQLApplier interface {
	Restore(ctx context.Context, database string, dump io.Reader) error
}

// Restorer recovers stored artifacts back into plain SQL. It resolves an
// artifact from the local archive first and falls back to downloading from
// the storage backend, then decrypts and decompresses the content for a
// local file or a live database.
type Restorer struct {
	archive  *Archive
	backend  Backend
	detector *ChangeDetector
	logger   *logging.Logger
}

// NewRestorer wires a restorer from a validated configuration. The backend
// may be nil, restricting resolution to the local archive.
func NewRestorer(config *SystemConfig, archive *Archive, backend Backend, logger *logging.Logger) *Restorer {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	compression := NewCompressionManager()
	encryption := NewEncryptionManager(&config.Encryption)

	return &Restorer{
		archive:  archive,
		backend:  backend,
		detector: NewChangeDetector(compression, encryption),
		logger:   logger,
	}
}

// Resolve finds the artifact to restore for a database. A zero date selects
// the newest artifact; otherwise the artifact of that exact day is required.
// When the archive misses, the storage backend is consulted and a matching
// artifact is downloaded into the archive.
func (rs *Restorer) Resolve(ctx context.Context, database string, date time.Time) (*Artifact, error) {
	artifact, err := rs.localArtifact(database, date)
	if err != nil {
		return nil, err
	}
	if artifact != nil {
		return artifact, nil
	}

	if rs.backend == nil {
		return nil, NewNotFoundError(fmt.Sprintf("no artifact found for database %s in archive", database), nil)
	}

	return rs.fetchRemote(ctx, database, date)
}

// localArtifact looks the artifact up in the archive. A nil artifact with a
// nil error means the archive has no match.
func (rs *Restorer) localArtifact(database string, date time.Time) (*Artifact, error) {
	if date.IsZero() {
		return rs.archive.Latest(database)
	}
	return rs.archive.Find(database, date)
}

// fetchRemote lists the backend, picks the matching artifact, and downloads
// it into the archive so the restore reads a local file.
func (rs *Restorer) fetchRemote(ctx context.Context, database string, date time.Time) (*Artifact, error) {
	remotes, err := rs.backend.List(ctx)
	if err != nil {
		return nil, err
	}

	candidate := selectRemoteArtifact(remotes, database, date)
	if candidate == nil {
		if date.IsZero() {
			return nil, NewNotFoundError(fmt.Sprintf("no artifact found for database %s in archive or %s storage", database, rs.backend.Name()), nil)
		}
		return nil, NewNotFoundError(fmt.Sprintf("no artifact found for database %s on %s in archive or %s storage",
			database, truncateToDay(date).Format(DateLayout), rs.backend.Name()), nil)
	}

	rs.logger.WithFields(map[string]interface{}{
		"artifact": candidate.Name,
		"storage":  rs.backend.Name(),
	}).Info("Downloading artifact from storage")

	partial, err := rs.archive.TempFile(".fetch-" + database + "-*")
	if err != nil {
		return nil, err
	}
	partialPath := partial.Name()
	partial.Close()

	if err := rs.backend.Fetch(ctx, candidate.Name, partialPath); err != nil {
		removeQuietly(partialPath)
		return nil, err
	}

	installedPath, err := rs.archive.Install(partialPath, candidate.Name)
	if err != nil {
		removeQuietly(partialPath)
		return nil, err
	}

	info, err := os.Stat(installedPath)
	if err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to stat downloaded artifact %s", candidate.Name), err)
	}

	artifact := *candidate
	artifact.Path = installedPath
	artifact.Size = info.Size()
	return &artifact, nil
}

// selectRemoteArtifact picks the artifact to download from a backend
// listing. Names that do not parse belong to other tooling and are skipped.
func selectRemoteArtifact(remotes []RemoteArtifact, database string, date time.Time) *Artifact {
	var best *Artifact

	for _, remote := range remotes {
		parsed, err := ParseArtifactName(remote.Name)
		if err != nil || parsed.Database != database {
			continue
		}

		if !date.IsZero() && !parsed.Date.Equal(truncateToDay(date)) {
			continue
		}

		if best == nil || parsed.Date.After(best.Date) {
			candidate := parsed
			best = &candidate
		}
	}

	return best
}

// Materialize writes the artifact's plain SQL to destPath and returns the
// number of bytes written. The write goes through a temporary file so an
// interrupted restore never leaves a truncated .sql behind.
func (rs *Restorer) Materialize(artifact *Artifact, destPath string) (int64, error) {
	reader, err := rs.detector.OpenPlaintext(artifact)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".restore-*")
	if err != nil {
		return 0, NewRestoreError(fmt.Sprintf("failed to create restore file for %s", artifact.Name), err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, reader)
	if err != nil {
		tmp.Close()
		removeQuietly(tmpPath)
		return 0, NewRestoreError(fmt.Sprintf("failed to recover SQL from artifact %s", artifact.Name), err)
	}

	if err := tmp.Close(); err != nil {
		removeQuietly(tmpPath)
		return 0, NewRestoreError(fmt.Sprintf("failed to finish restore file for %s", artifact.Name), err)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		removeQuietly(tmpPath)
		return 0, NewRestoreError(fmt.Sprintf("failed to finish restore file for %s", artifact.Name), err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		removeQuietly(tmpPath)
		return 0, NewRestoreError(fmt.Sprintf("failed to move restored SQL to %s", destPath), err)
	}

	return written, nil
}

// Apply streams the artifact's plain SQL into a database through the
// applier. Nothing touches disk beyond the stored artifact itself.
func (rs *Restorer) Apply(ctx context.Context, applier SQLApplier, artifact *Artifact, database string) error {
	reader, err := rs.detector.OpenPlaintext(artifact)
	if err != nil {
		return err
	}
	defer reader.Close()

	start := time.Now()
	if err := applier.Restore(ctx, database, reader); err != nil {
		return NewRestoreError(fmt.Sprintf("failed to apply artifact %s to database %s", artifact.Name, database), err)
	}

	rs.logger.WithFields(map[string]interface{}{
		"database": database,
		"artifact": artifact.Name,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("Applied restore")

	return nil
}
