package application

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VGXConsulting/BackupDB/internal/backup"
	"github.com/VGXConsulting/BackupDB/internal/display"
	appErrors "github.com/VGXConsulting/BackupDB/internal/errors"
	"github.com/VGXConsulting/BackupDB/internal/execution"
)

// setTestEnv points the configuration at a throwaway archive and an
// unreachable MySQL port so nothing touches a live server.
func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BACKUPDB_DB_HOSTS", "127.0.0.1")
	t.Setenv("BACKUPDB_DB_PORTS", "3399")
	t.Setenv("BACKUPDB_DB_USERS", "backup")
	t.Setenv("BACKUPDB_DB_PASSWORDS", "supersecret")
	t.Setenv("BACKUPDB_WORKDIR", t.TempDir())
	t.Setenv("BACKUPDB_LOCAL_PATH", t.TempDir())
}

// captureDisplay swaps the application's display for one writing into the
// returned buffer.
func captureDisplay(app *Application) *bytes.Buffer {
	buffer := &bytes.Buffer{}
	config := &display.Config{Writer: buffer}
	config.SetDefaults()
	config.ColorEnabled = false
	config.UseIcons = false
	app.display = display.NewService(config)
	return buffer
}

func TestNew(t *testing.T) {
	setTestEnv(t)

	app, err := New(Options{})
	require.NoError(t, err)

	require.NotNil(t, app.Config())
	require.Len(t, app.Config().Targets, 1)
	assert.Equal(t, "127.0.0.1", app.Config().Targets[0].Host)
	assert.NotNil(t, app.Logger())
	assert.NotNil(t, app.Display())
	assert.NotNil(t, app.Runner())
}

func TestNew_LoggingOverrides(t *testing.T) {
	setTestEnv(t)
	t.Setenv("BACKUPDB_LOG_LEVEL", "quiet")

	app, err := New(Options{LogLevel: "DEBUG", LogFormat: "JSON"})
	require.NoError(t, err)
	assert.NotNil(t, app.Logger())
}

func TestNew_MissingRequiredConfig(t *testing.T) {
	t.Setenv("BACKUPDB_DB_HOSTS", "")
	t.Setenv("DB_HOSTS", "")
	t.Setenv("BACKUPDB_DB_USERS", "")
	t.Setenv("DB_USERS", "")
	t.Setenv("BACKUPDB_DB_PASSWORDS", "")
	t.Setenv("DB_PASSWORDS", "")

	_, err := New(Options{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ExitConfig, ExitCodeFor(err))
}

func TestExitCodeFor(t *testing.T) {
	var validationErrs backup.ValidationErrors
	validationErrs.Add("workdir", "archive directory is required", "")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "Nil", err: nil, want: appErrors.ExitSuccess},
		{name: "ValidationErrors", err: validationErrs, want: appErrors.ExitConfig},
		{name: "Configuration", err: backup.NewConfigurationError("bad", nil), want: appErrors.ExitConfig},
		{name: "Validation", err: backup.NewValidationError("bad", nil), want: appErrors.ExitConfig},
		{name: "Storage", err: backup.NewStorageError("unreachable", nil), want: appErrors.ExitConfig},
		{name: "Dump", err: backup.NewDumpError("mysqldump exited 2", nil), want: appErrors.ExitPartial},
		{name: "Plain", err: errors.New("boom"), want: appErrors.ExitPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestRequiredBinaries(t *testing.T) {
	tests := []struct {
		name    string
		storage backup.StorageConfig
		want    []string
	}{
		{
			name:    "Local",
			storage: backup.StorageConfig{Provider: backup.StorageProviderLocal},
			want:    []string{"mysqldump", "mysql"},
		},
		{
			name:    "S3",
			storage: backup.StorageConfig{Provider: backup.StorageProviderS3},
			want:    []string{"mysqldump", "mysql"},
		},
		{
			name:    "Git",
			storage: backup.StorageConfig{Provider: backup.StorageProviderGit, Git: &backup.GitConfig{}},
			want:    []string{"mysqldump", "mysql", "git"},
		},
		{
			name:    "GitWithLFS",
			storage: backup.StorageConfig{Provider: backup.StorageProviderGit, Git: &backup.GitConfig{LFS: true}},
			want:    []string{"mysqldump", "mysql", "git", "git-lfs"},
		},
		{
			name:    "OneDrive",
			storage: backup.StorageConfig{Provider: backup.StorageProviderOneDrive},
			want:    []string{"mysqldump", "mysql", "rclone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requiredBinaries(tt.storage))
		})
	}
}

func TestHostJobs(t *testing.T) {
	setTestEnv(t)
	t.Setenv("BACKUPDB_DB_HOSTS", "db1.example.com,db2.example.com")
	t.Setenv("BACKUPDB_DB_PORTS", "3306,3307")
	t.Setenv("BACKUPDB_DB_USERS", "backup,backup")
	t.Setenv("BACKUPDB_DB_PASSWORDS", "one,two")
	t.Setenv("BACKUPDB_EXCLUDE_DATABASES", "tmp_*")

	app, err := New(Options{})
	require.NoError(t, err)

	jobs := app.hostJobs()
	require.Len(t, jobs, 2)

	assert.Equal(t, "db1.example.com", jobs[0].Host)
	assert.Equal(t, "db2.example.com", jobs[1].Host)

	for _, job := range jobs {
		require.NotNil(t, job.Dumper)
		enumerator, ok := job.Enumerator.(*hostEnumerator)
		require.True(t, ok)
		assert.Equal(t, []string{"tmp_*"}, enumerator.exclude)
	}
}

func TestTestConfig_UnreachableServer(t *testing.T) {
	setTestEnv(t)

	app, err := New(Options{})
	require.NoError(t, err)

	app.runner = execution.NewRecordingRunner()
	output := captureDisplay(app)

	code := app.TestConfig(context.Background())
	assert.Equal(t, appErrors.ExitConfig, code)

	rendered := output.String()
	assert.Contains(t, rendered, "Configuration Test")
	assert.Contains(t, rendered, "configuration: storage=local")
	assert.Contains(t, rendered, "binaries: /usr/bin/mysqldump, /usr/bin/mysql")
	assert.Contains(t, rendered, "storage: local")
	assert.Contains(t, rendered, "mysql 127.0.0.1:3399")
	assert.Contains(t, rendered, "Configuration test failed")
}

func TestTestConfig_MissingBinary(t *testing.T) {
	setTestEnv(t)

	app, err := New(Options{})
	require.NoError(t, err)

	app.runner = &execution.RecordingRunner{MissingBinaries: map[string]bool{"mysqldump": true}}
	output := captureDisplay(app)

	code := app.TestConfig(context.Background())
	assert.Equal(t, appErrors.ExitConfig, code)
	assert.Contains(t, output.String(), "mysqldump not found in PATH")
}

func TestRunScheduled_StoppedWhileWaiting(t *testing.T) {
	setTestEnv(t)
	t.Setenv("BACKUPDB_SCHEDULE", "30 2 * * *")

	app, err := New(Options{})
	require.NoError(t, err)
	captureDisplay(app)

	archive, err := app.OpenArchive()
	require.NoError(t, err)
	backend, err := app.OpenBackend(context.Background())
	require.NoError(t, err)
	runner := backup.NewRunner(&app.Config().System, archive, backend, app.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code := app.runScheduled(ctx, runner, nil)
	assert.Equal(t, appErrors.ExitSuccess, code)
}

func TestRenderReport(t *testing.T) {
	tests := []struct {
		name  string
		build func() *backup.RunReport
		want  []string
	}{
		{
			name: "Success",
			build: func() *backup.RunReport {
				report := backup.NewRunReport("local", false)
				report.Record(backup.DatabaseResult{Database: "app", Status: backup.StatusUploaded})
				report.Record(backup.DatabaseResult{Database: "crm", Status: backup.StatusUnchanged})
				report.Finish()
				return report
			},
			want: []string{"1 uploaded, 1 unchanged, 0 failed", "via local"},
		},
		{
			name: "DryRun",
			build: func() *backup.RunReport {
				report := backup.NewRunReport("s3", true)
				report.Finish()
				return report
			},
			want: []string{"via s3", "(dry run)"},
		},
		{
			name: "PartialFailure",
			build: func() *backup.RunReport {
				report := backup.NewRunReport("local", false)
				report.Record(backup.DatabaseResult{Database: "app", Status: backup.StatusFailed})
				report.Finish()
				return report
			},
			want: []string{"1 failed"},
		},
		{
			name: "Aborted",
			build: func() *backup.RunReport {
				report := backup.NewRunReport("git", false)
				report.Abort(backup.NewStorageError("remote unreachable", nil))
				return report
			},
			want: []string{"via git", "remote unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setTestEnv(t)
			app, err := New(Options{})
			require.NoError(t, err)
			output := captureDisplay(app)

			report := tt.build()
			app.renderReport(report)

			rendered := output.String()
			assert.Contains(t, rendered, "Run "+report.RunID[:8])
			for _, fragment := range tt.want {
				assert.Contains(t, rendered, fragment)
			}
		})
	}
}

func TestShortRunID(t *testing.T) {
	assert.Equal(t, "0a1b2c3d", shortRunID("0a1b2c3d-ffff-eeee"))
	assert.Equal(t, "short", shortRunID("short"))
}
