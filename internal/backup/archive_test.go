package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchiveFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestNewArchive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")

	archive, err := NewArchive(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, archive.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	artifacts, err := archive.List()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestNewArchive_EmptyDir(t *testing.T) {
	_, err := NewArchive("")
	assert.Error(t, err)
}

func TestArchive_List(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	writeArchiveFile(t, dir, "2026-08-19_app.sql.gz", "app v1")
	writeArchiveFile(t, dir, "2026-08-20_app.sql.gz", "app v2")
	writeArchiveFile(t, dir, "2026-08-20_crm.sql.zst", "crm")
	// Files outside the naming scheme are ignored.
	writeArchiveFile(t, dir, "run-report.json", "{}")
	writeArchiveFile(t, dir, "2026-08-20_app.sql.gz.partial12345", "in flight")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0755))

	artifacts, err := archive.List()
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	assert.Equal(t, "app", artifacts[0].Database)
	assert.Equal(t, "2026-08-19", artifacts[0].Date.Format(DateLayout))
	assert.Equal(t, "app", artifacts[1].Database)
	assert.Equal(t, "2026-08-20", artifacts[1].Date.Format(DateLayout))
	assert.Equal(t, "crm", artifacts[2].Database)
	assert.Equal(t, CompressionTypeZstd, artifacts[2].Compression)

	assert.Equal(t, int64(len("app v1")), artifacts[0].Size)
	assert.Equal(t, filepath.Join(dir, "2026-08-19_app.sql.gz"), artifacts[0].Path)
}

func TestArchive_FindPrevious(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	today := time.Date(2026, 8, 21, 14, 30, 0, 0, time.UTC)

	t.Run("no artifacts", func(t *testing.T) {
		previous, err := archive.FindPrevious("app", today)
		require.NoError(t, err)
		assert.Nil(t, previous)
	})

	writeArchiveFile(t, dir, "2026-08-18_app.sql.gz", "old")
	writeArchiveFile(t, dir, "2026-08-20_app.sql.gz", "newer")
	writeArchiveFile(t, dir, "2026-08-21_app.sql.gz", "today")
	writeArchiveFile(t, dir, "2026-08-20_crm.sql.gz", "other db")

	t.Run("newest artifact before today wins", func(t *testing.T) {
		previous, err := archive.FindPrevious("app", today)
		require.NoError(t, err)
		require.NotNil(t, previous)
		assert.Equal(t, "2026-08-20_app.sql.gz", previous.Name)
	})

	t.Run("today's own artifact is not a baseline", func(t *testing.T) {
		previous, err := archive.FindPrevious("app", today)
		require.NoError(t, err)
		require.NotNil(t, previous)
		assert.NotEqual(t, "2026-08-21_app.sql.gz", previous.Name)
	})

	t.Run("other databases do not interfere", func(t *testing.T) {
		previous, err := archive.FindPrevious("crm", today)
		require.NoError(t, err)
		require.NotNil(t, previous)
		assert.Equal(t, "2026-08-20_crm.sql.gz", previous.Name)
	})
}

func TestArchive_LatestAndFind(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	latest, err := archive.Latest("app")
	require.NoError(t, err)
	assert.Nil(t, latest)

	writeArchiveFile(t, dir, "2026-08-18_app.sql.gz", "old")
	writeArchiveFile(t, dir, "2026-08-20_app.sql.gz", "new")

	latest, err = archive.Latest("app")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2026-08-20_app.sql.gz", latest.Name)

	found, err := archive.Find("app", time.Date(2026, 8, 18, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "2026-08-18_app.sql.gz", found.Name)

	missing, err := archive.Find("app", time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestArchive_Install(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	partial, err := archive.TempFile("app-*.partial")
	require.NoError(t, err)
	_, err = partial.WriteString("compressed dump")
	require.NoError(t, err)
	require.NoError(t, partial.Close())

	path, err := archive.Install(partial.Name(), "2026-08-21_app.sql.gz")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026-08-21_app.sql.gz"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "compressed dump", string(content))

	_, err = os.Stat(partial.Name())
	assert.True(t, os.IsNotExist(err))
}

func TestArchive_Remove(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	writeArchiveFile(t, dir, "2026-08-18_app.sql.gz", "old")

	require.NoError(t, archive.Remove("2026-08-18_app.sql.gz"))

	err = archive.Remove("2026-08-18_app.sql.gz")
	assert.Error(t, err)
	assert.True(t, IsNotFound(err))
}
