package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VGXConsulting/BackupDB/internal/execution"
)

func TestPreflight_RunsAllChecks(t *testing.T) {
	boom := errors.New("unreachable")

	checks := NewPreflight(nil).
		Add("first", func(ctx context.Context) (string, error) { return "ok", nil }).
		Add("second", func(ctx context.Context) (string, error) { return "", boom }).
		Add("third", func(ctx context.Context) (string, error) { return "also ok", nil }).
		Run(context.Background())

	require.Len(t, checks, 3)
	assert.Equal(t, "first", checks[0].Name)
	assert.Equal(t, "ok", checks[0].Detail)
	assert.True(t, checks[0].Passed())

	assert.False(t, checks[1].Passed())
	assert.ErrorIs(t, checks[1].Err, boom)

	// A failing check must not stop the later ones.
	assert.True(t, checks[2].Passed())
	assert.False(t, ChecksPassed(checks))
}

func TestChecksPassed_Empty(t *testing.T) {
	assert.True(t, ChecksPassed(nil))
}

func TestConfigCheck(t *testing.T) {
	config := &SystemConfig{}
	config.SetDefaults()
	config.Retention.Days = 14

	detail, err := ConfigCheck(config)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "storage=local compression=gzip retention=14d", detail)
}

func TestConfigCheck_Encrypted(t *testing.T) {
	config := &SystemConfig{}
	config.SetDefaults()
	config.Encryption = EncryptionConfig{Enabled: true, Passphrase: "correct horse battery staple"}

	detail, err := ConfigCheck(config)(context.Background())
	require.NoError(t, err)
	assert.Contains(t, detail, " encrypted")
}

func TestConfigCheck_Invalid(t *testing.T) {
	config := &SystemConfig{Storage: StorageConfig{Provider: "FTP"}}

	_, err := ConfigCheck(config)(context.Background())
	assert.Error(t, err)
}

func TestArchiveCheck(t *testing.T) {
	dir := t.TempDir()
	writeArchiveFile(t, dir, "2026-08-20_app.sql.gz", "dump")

	detail, err := ArchiveCheck(dir)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dir+" (1 artifacts)", detail)
}

func TestBinaryCheck(t *testing.T) {
	runner := execution.NewRecordingRunner()

	detail, err := BinaryCheck(runner, "mysqldump", "mysql")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/mysqldump, /usr/bin/mysql", detail)
}

func TestBinaryCheck_Missing(t *testing.T) {
	runner := execution.NewRecordingRunner()
	runner.MissingBinaries = map[string]bool{"git": true}

	_, err := BinaryCheck(runner, "mysqldump", "git")(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git not found in PATH")
}

func TestBackendCheck(t *testing.T) {
	detail, err := BackendCheck(&fakeBackend{name: "s3"})(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3", detail)
}

func TestBackendCheck_Unreachable(t *testing.T) {
	backend := &fakeBackend{name: "s3", validateErr: errors.New("bucket unreachable")}

	_, err := BackendCheck(backend)(context.Background())
	assert.ErrorContains(t, err, "bucket unreachable")
}
