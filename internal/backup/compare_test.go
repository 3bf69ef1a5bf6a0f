package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compareTestDate(t *testing.T, value string) time.Time {
	t.Helper()
	date, err := time.Parse(DateLayout, value)
	require.NoError(t, err)
	return date
}

// buildArtifact compresses (and optionally encrypts) content into the archive
// directory under the canonical artifact name and returns the parsed artifact.
func buildArtifact(t *testing.T, dir, day, database string, content []byte, algorithm CompressionType, em *EncryptionManager) *Artifact {
	t.Helper()

	cm := NewCompressionManager()
	date := compareTestDate(t, day)
	encrypted := em != nil && em.IsEnabled()
	name := ArtifactName(date, database, algorithm, encrypted)
	finalPath := filepath.Join(dir, name)

	raw := filepath.Join(dir, "raw-"+database+".sql")
	require.NoError(t, os.WriteFile(raw, content, 0644))
	defer os.Remove(raw)

	if encrypted {
		compressed := finalPath + ".stage"
		_, err := cm.CompressFile(raw, compressed, algorithm, 0)
		require.NoError(t, err)
		defer os.Remove(compressed)

		_, err = em.EncryptFile(compressed, finalPath)
		require.NoError(t, err)
	} else {
		_, err := cm.CompressFile(raw, finalPath, algorithm, 0)
		require.NoError(t, err)
	}

	artifact, err := ParseArtifactName(name)
	require.NoError(t, err)
	artifact.Path = finalPath
	return &artifact
}

func TestChangeDetector_Compare_NoBaseline(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(dump, []byte("CREATE TABLE t (id INT);\n"), 0644))

	cd := NewChangeDetector(NewCompressionManager(), NewEncryptionManager(&EncryptionConfig{}))

	result, err := cd.Compare(dump, nil)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.NotEmpty(t, result.DumpChecksum)
	assert.Empty(t, result.Baseline)
	assert.Empty(t, result.PreviousChecksum)
}

func TestChangeDetector_Compare_Unchanged(t *testing.T) {
	dir := t.TempDir()
	content := []byte("CREATE TABLE users (id INT PRIMARY KEY);\nINSERT INTO users VALUES (1);\n")

	dump := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(dump, content, 0644))

	previous := buildArtifact(t, dir, "2026-08-20", "app", content, CompressionTypeGzip, nil)

	cd := NewChangeDetector(NewCompressionManager(), NewEncryptionManager(&EncryptionConfig{}))

	result, err := cd.Compare(dump, previous)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, result.DumpChecksum, result.PreviousChecksum)
	assert.Equal(t, previous.Name, result.Baseline)
}

func TestChangeDetector_Compare_Changed(t *testing.T) {
	dir := t.TempDir()

	dump := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(dump, []byte("INSERT INTO users VALUES (2);\n"), 0644))

	previous := buildArtifact(t, dir, "2026-08-20", "app", []byte("INSERT INTO users VALUES (1);\n"), CompressionTypeGzip, nil)

	cd := NewChangeDetector(NewCompressionManager(), NewEncryptionManager(&EncryptionConfig{}))

	result, err := cd.Compare(dump, previous)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.NotEqual(t, result.DumpChecksum, result.PreviousChecksum)
}

func TestChangeDetector_Compare_AcrossAlgorithms(t *testing.T) {
	dir := t.TempDir()
	content := []byte("SELECT 1;\n")

	dump := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(dump, content, 0644))

	cd := NewChangeDetector(NewCompressionManager(), NewEncryptionManager(&EncryptionConfig{}))

	// The digest covers the uncompressed bytes, so a baseline stored with a
	// different algorithm still matches.
	for _, algorithm := range []CompressionType{CompressionTypeZstd, CompressionTypeLZ4, CompressionTypeNone} {
		previous := buildArtifact(t, dir, "2026-08-20", "db_"+string(algorithm), content, algorithm, nil)

		result, err := cd.Compare(dump, previous)
		require.NoError(t, err, "algorithm %s", algorithm)
		assert.False(t, result.Changed, "algorithm %s", algorithm)
	}
}

func TestChangeDetector_Compare_EncryptedBaseline(t *testing.T) {
	dir := t.TempDir()
	content := []byte("INSERT INTO secrets VALUES ('x');\n")

	dump := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(dump, content, 0644))

	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "vault"})
	previous := buildArtifact(t, dir, "2026-08-20", "app", content, CompressionTypeGzip, em)
	require.True(t, previous.Encrypted)

	cd := NewChangeDetector(NewCompressionManager(), em)

	result, err := cd.Compare(dump, previous)
	require.NoError(t, err)
	assert.False(t, result.Changed)
}

func TestChangeDetector_EncryptedBaselineWithoutKey(t *testing.T) {
	dir := t.TempDir()
	content := []byte("data")

	dump := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(dump, content, 0644))

	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "vault"})
	previous := buildArtifact(t, dir, "2026-08-20", "app", content, CompressionTypeGzip, em)

	// A detector without encryption configured cannot read the baseline.
	cd := NewChangeDetector(NewCompressionManager(), NewEncryptionManager(&EncryptionConfig{}))

	_, err := cd.Compare(dump, previous)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "encryption is not configured")
}

func TestChangeDetector_Compare_CorruptBaseline(t *testing.T) {
	dir := t.TempDir()

	dump := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(dump, []byte("data"), 0644))

	corrupt := filepath.Join(dir, "2026-08-20_app.sql.gz")
	require.NoError(t, os.WriteFile(corrupt, []byte("not gzip at all"), 0644))

	artifact, err := ParseArtifactName("2026-08-20_app.sql.gz")
	require.NoError(t, err)
	artifact.Path = corrupt

	cd := NewChangeDetector(NewCompressionManager(), NewEncryptionManager(&EncryptionConfig{}))

	_, err = cd.Compare(dump, &artifact)
	assert.Error(t, err)
}

func TestChangeDetector_HashFile_Missing(t *testing.T) {
	cd := NewChangeDetector(NewCompressionManager(), NewEncryptionManager(&EncryptionConfig{}))

	_, _, err := cd.HashFile(filepath.Join(t.TempDir(), "absent.sql"))
	assert.Error(t, err)
}

func TestChangeDetector_HashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.sql")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	cd := NewChangeDetector(NewCompressionManager(), NewEncryptionManager(&EncryptionConfig{}))

	checksum, size, err := cd.HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", checksum)
}
