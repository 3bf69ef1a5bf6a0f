package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VGXConsulting/BackupDB/internal/backup"
	"github.com/VGXConsulting/BackupDB/internal/database"
	"github.com/VGXConsulting/BackupDB/internal/display"
	appErrors "github.com/VGXConsulting/BackupDB/internal/errors"
)

func TestCommandRegistration(t *testing.T) {
	names := map[string]bool{}
	for _, command := range rootCmd.Commands() {
		names[command.Name()] = true
	}

	for _, want := range []string{"list", "prune", "restore", "env", "version"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}

func TestRootFlags(t *testing.T) {
	for _, name := range []string{"test-config", "test", "dry-run", "once"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), "flag %s missing", name)
	}
	for _, name := range []string{"env-file", "log-level", "log-format", "log-file", "no-color"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "persistent flag %s missing", name)
	}

	hidden := rootCmd.Flags().Lookup("test")
	require.NotNil(t, hidden)
	assert.True(t, hidden.Hidden)
}

func TestExitFor(t *testing.T) {
	assert.NoError(t, exitFor(appErrors.ExitSuccess))

	err := exitFor(appErrors.ExitConfig)
	require.Error(t, err)

	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, appErrors.ExitConfig, exit.code)
}

func TestPickTarget(t *testing.T) {
	targets := []database.Target{
		{Host: "db1.example.com", Port: 3306},
		{Host: "db2.example.com", Port: 3307},
	}

	t.Run("DefaultsToFirst", func(t *testing.T) {
		target, err := pickTarget(targets, "")
		require.NoError(t, err)
		assert.Equal(t, "db1.example.com", target.Host)
	})

	t.Run("ByHost", func(t *testing.T) {
		target, err := pickTarget(targets, "db2.example.com")
		require.NoError(t, err)
		assert.Equal(t, 3307, target.Port)
	})

	t.Run("UnknownHost", func(t *testing.T) {
		_, err := pickTarget(targets, "db9.example.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db9.example.com")
	})
}

func newListService() (display.Service, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	config := &display.Config{Writer: buffer}
	config.SetDefaults()
	return display.NewService(config), buffer
}

func TestRenderArtifacts(t *testing.T) {
	artifacts := []backup.Artifact{
		{Name: "2026-08-21_app.sql.gz", Database: "app", Date: mustDay(t, "2026-08-21"), Size: 2048, Compression: backup.CompressionTypeGzip},
		{Name: "2026-08-20_crm.sql.zst.enc", Database: "crm", Date: mustDay(t, "2026-08-20"), Size: 1024, Compression: backup.CompressionTypeZstd, Encrypted: true},
	}

	t.Run("Table", func(t *testing.T) {
		out, buffer := newListService()
		require.NoError(t, renderArtifacts(out, display.FormatTable, artifacts))

		rendered := buffer.String()
		assert.Contains(t, rendered, "2026-08-21_app.sql.gz")
		assert.Contains(t, rendered, "crm")
		assert.Contains(t, rendered, "2.0 KB")
	})

	t.Run("JSON", func(t *testing.T) {
		out, buffer := newListService()
		require.NoError(t, renderArtifacts(out, display.FormatJSON, artifacts))

		rendered := buffer.String()
		assert.Contains(t, rendered, `"name": "2026-08-20_crm.sql.zst.enc"`)
		assert.Contains(t, rendered, `"encrypted": true`)
	})

	t.Run("EmptyTable", func(t *testing.T) {
		out, buffer := newListService()
		require.NoError(t, renderArtifacts(out, display.FormatTable, nil))
		assert.Contains(t, buffer.String(), "No artifacts found")
	})
}

func TestRenderRetention(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		out, buffer := newListService()
		renderRetention(out, &backup.RetentionResult{
			Scope:    "archive",
			Examined: 5,
			Kept:     3,
			Removed:  []string{"2026-07-01_app.sql.gz", "2026-07-02_app.sql.gz"},
		})

		rendered := buffer.String()
		assert.Contains(t, rendered, "archive: examined 5, kept 3, removed 2")
		assert.Contains(t, rendered, "removed 2026-07-01_app.sql.gz")
	})

	t.Run("DryRun", func(t *testing.T) {
		out, buffer := newListService()
		renderRetention(out, &backup.RetentionResult{Scope: "s3", DryRun: true})
		assert.Contains(t, buffer.String(), "(dry run)")
	})

	t.Run("WithErrors", func(t *testing.T) {
		out, buffer := newListService()
		renderRetention(out, &backup.RetentionResult{
			Scope:  "git",
			Errors: []string{"2026-07-01_app.sql.gz: permission denied"},
		})
		assert.Contains(t, buffer.String(), "permission denied")
	})
}

// captureStdout runs fn with os.Stdout redirected into the returned string.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	original := os.Stdout
	read, write, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = write

	defer func() { os.Stdout = original }()

	fn()

	require.NoError(t, write.Close())
	captured, err := io.ReadAll(read)
	require.NoError(t, err)
	return string(captured)
}

func TestEnvCommand(t *testing.T) {
	output := captureStdout(t, func() {
		rootCmd.SetArgs([]string{"env"})
		require.NoError(t, rootCmd.Execute())
	})

	for _, want := range []string{"BACKUPDB_DB_HOSTS", "BACKUPDB_STORAGE_TYPE", "BACKUPDB_RETENTION_DAYS", "BACKUPDB_SCHEDULE"} {
		assert.Contains(t, output, want)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "2026-08-25", "abcdef0", "go1.25")

	output := captureStdout(t, func() {
		rootCmd.SetArgs([]string{"version"})
		require.NoError(t, rootCmd.Execute())
	})

	assert.Contains(t, output, "backupdb version 1.2.3")
	assert.Contains(t, output, "Commit: abcdef0")
}

func TestUsageTemplateMentionsExitCodes(t *testing.T) {
	template := getUsageTemplate()
	for _, want := range []string{"Exit Codes:", "BACKUPDB_DB_HOSTS", "backupdb env"} {
		assert.True(t, strings.Contains(template, want), "usage template missing %q", want)
	}
}

func mustDay(t *testing.T, value string) time.Time {
	t.Helper()
	day, err := time.Parse(backup.DateLayout, value)
	require.NoError(t, err)
	return day
}
