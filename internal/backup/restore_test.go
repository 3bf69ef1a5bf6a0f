package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingApplier captures what a restore would feed into mysql.
type recordingApplier struct {
	database string
	content  []byte
	err      error
}

func (ra *recordingApplier) Restore(ctx context.Context, database string, dump io.Reader) error {
	ra.database = database
	data, err := io.ReadAll(dump)
	if err != nil {
		return err
	}
	ra.content = data
	return ra.err
}

// artifactBytes returns the stored form of content, compressed with the
// given algorithm, for seeding fake backend objects.
func artifactBytes(t *testing.T, content []byte, algorithm CompressionType) []byte {
	t.Helper()

	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.sql")
	require.NoError(t, os.WriteFile(raw, content, 0644))

	staged := filepath.Join(dir, "staged")
	_, err := NewCompressionManager().CompressFile(raw, staged, algorithm, 0)
	require.NoError(t, err)

	data, err := os.ReadFile(staged)
	require.NoError(t, err)
	return data
}

func newTestRestorer(t *testing.T, backend Backend, passphrase string) (*Restorer, *Archive) {
	t.Helper()

	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	config := &SystemConfig{Workdir: archive.Dir()}
	if passphrase != "" {
		config.Encryption = EncryptionConfig{Enabled: true, Passphrase: passphrase}
	}

	return NewRestorer(config, archive, backend, nil), archive
}

func TestRestorer_Resolve_LatestFromArchive(t *testing.T) {
	restorer, archive := newTestRestorer(t, nil, "")

	content := []byte("INSERT INTO users VALUES (1);\n")
	buildArtifact(t, archive.Dir(), "2026-08-19", "app", content, CompressionTypeGzip, nil)
	buildArtifact(t, archive.Dir(), "2026-08-20", "app", content, CompressionTypeGzip, nil)
	buildArtifact(t, archive.Dir(), "2026-08-21", "shop", content, CompressionTypeGzip, nil)

	artifact, err := restorer.Resolve(context.Background(), "app", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-20_app.sql.gz", artifact.Name)
	assert.Equal(t, archive.Path(artifact.Name), artifact.Path)
}

func TestRestorer_Resolve_ExactDate(t *testing.T) {
	restorer, archive := newTestRestorer(t, nil, "")

	content := []byte("INSERT INTO users VALUES (1);\n")
	buildArtifact(t, archive.Dir(), "2026-08-19", "app", content, CompressionTypeGzip, nil)
	buildArtifact(t, archive.Dir(), "2026-08-20", "app", content, CompressionTypeGzip, nil)

	artifact, err := restorer.Resolve(context.Background(), "app", compareTestDate(t, "2026-08-19"))
	require.NoError(t, err)
	assert.Equal(t, "2026-08-19_app.sql.gz", artifact.Name)
}

func TestRestorer_Resolve_ArchiveOnlyMiss(t *testing.T) {
	restorer, _ := newTestRestorer(t, nil, "")

	_, err := restorer.Resolve(context.Background(), "app", time.Time{})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestRestorer_Resolve_FetchesFromBackend(t *testing.T) {
	content := []byte("CREATE TABLE orders (id INT);\n")
	stored := artifactBytes(t, content, CompressionTypeGzip)

	backend := &fakeBackend{
		name: "s3",
		remotes: []RemoteArtifact{
			{Name: "2026-08-19_app.sql.gz", Size: int64(len(stored))},
			{Name: "2026-08-20_app.sql.gz", Size: int64(len(stored))},
			{Name: "2026-08-20_other.sql.gz", Size: 10},
			{Name: "run-report.json", Size: 128},
		},
		objects: map[string][]byte{
			"2026-08-20_app.sql.gz": stored,
		},
	}

	restorer, archive := newTestRestorer(t, backend, "")

	artifact, err := restorer.Resolve(context.Background(), "app", time.Time{})
	require.NoError(t, err)

	// The newest matching remote is downloaded into the archive.
	assert.Equal(t, []string{"2026-08-20_app.sql.gz"}, backend.fetched)
	assert.Equal(t, "2026-08-20_app.sql.gz", artifact.Name)
	assert.Equal(t, archive.Path(artifact.Name), artifact.Path)
	assert.Equal(t, int64(len(stored)), artifact.Size)

	local, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, stored, local)
}

func TestRestorer_Resolve_BackendMiss(t *testing.T) {
	backend := &fakeBackend{
		name: "s3",
		remotes: []RemoteArtifact{
			{Name: "2026-08-20_other.sql.gz"},
		},
	}
	restorer, _ := newTestRestorer(t, backend, "")

	_, err := restorer.Resolve(context.Background(), "app", compareTestDate(t, "2026-08-20"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "2026-08-20")
}

func TestRestorer_Materialize(t *testing.T) {
	restorer, archive := newTestRestorer(t, nil, "")

	content := []byte("CREATE TABLE users (id INT);\nINSERT INTO users VALUES (1);\n")
	artifact := buildArtifact(t, archive.Dir(), "2026-08-20", "app", content, CompressionTypeGzip, nil)

	dest := filepath.Join(t.TempDir(), "app.sql")
	written, err := restorer.Materialize(artifact, dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), written)

	restored, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, restored)
}

func TestRestorer_Materialize_Encrypted(t *testing.T) {
	restorer, archive := newTestRestorer(t, nil, "vault")

	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "vault"})
	content := []byte("INSERT INTO secrets VALUES ('x');\n")
	artifact := buildArtifact(t, archive.Dir(), "2026-08-20", "app", content, CompressionTypeZstd, em)
	require.True(t, artifact.Encrypted)

	dest := filepath.Join(t.TempDir(), "app.sql")
	_, err := restorer.Materialize(artifact, dest)
	require.NoError(t, err)

	restored, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, restored)
}

func TestRestorer_Materialize_EncryptedWithoutKey(t *testing.T) {
	restorer, archive := newTestRestorer(t, nil, "")

	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "vault"})
	artifact := buildArtifact(t, archive.Dir(), "2026-08-20", "app", []byte("data"), CompressionTypeGzip, em)

	_, err := restorer.Materialize(artifact, filepath.Join(t.TempDir(), "app.sql"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encryption is not configured")
}

func TestRestorer_Apply(t *testing.T) {
	restorer, archive := newTestRestorer(t, nil, "")

	content := []byte("INSERT INTO users VALUES (1);\n")
	artifact := buildArtifact(t, archive.Dir(), "2026-08-20", "app", content, CompressionTypeGzip, nil)

	applier := &recordingApplier{}
	require.NoError(t, restorer.Apply(context.Background(), applier, artifact, "app_staging"))

	// The plain SQL streams into the applier under the target database name.
	assert.Equal(t, "app_staging", applier.database)
	assert.Equal(t, content, applier.content)
}

func TestRestorer_Apply_Failure(t *testing.T) {
	restorer, archive := newTestRestorer(t, nil, "")

	artifact := buildArtifact(t, archive.Dir(), "2026-08-20", "app", []byte("data"), CompressionTypeGzip, nil)

	applier := &recordingApplier{err: os.ErrClosed}
	err := restorer.Apply(context.Background(), applier, artifact, "app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply")
}

func TestSelectRemoteArtifact(t *testing.T) {
	remotes := []RemoteArtifact{
		{Name: "2026-08-18_app.sql.gz"},
		{Name: "2026-08-20_app.sql.zst"},
		{Name: "2026-08-19_app.sql.gz"},
		{Name: "2026-08-21_shop.sql.gz"},
		{Name: "notes.txt"},
	}

	t.Run("NewestWins", func(t *testing.T) {
		best := selectRemoteArtifact(remotes, "app", time.Time{})
		require.NotNil(t, best)
		assert.Equal(t, "2026-08-20_app.sql.zst", best.Name)
	})

	t.Run("ExactDate", func(t *testing.T) {
		best := selectRemoteArtifact(remotes, "app", time.Date(2026, 8, 19, 14, 30, 0, 0, time.UTC))
		require.NotNil(t, best)
		assert.Equal(t, "2026-08-19_app.sql.gz", best.Name)
	})

	t.Run("NoMatch", func(t *testing.T) {
		assert.Nil(t, selectRemoteArtifact(remotes, "ghost", time.Time{}))
	})
}
