package backup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VGXConsulting/BackupDB/internal/execution"
)

func TestRcloneBackend_Store(t *testing.T) {
	runner := execution.NewRecordingRunner()
	backend, err := NewRcloneBackend(&RcloneConfig{Remote: "onedrive:", Path: "backups"}, runner, nil)
	require.NoError(t, err)
	assert.Equal(t, "onedrive", backend.Name())

	err = backend.Store(context.Background(), "/tmp/work/2026-08-21_app.sql.gz", "2026-08-21_app.sql.gz")
	require.NoError(t, err)

	lines := runner.CommandLines()
	require.Len(t, lines, 1)
	assert.Equal(t, "rclone copyto /tmp/work/2026-08-21_app.sql.gz onedrive:backups/2026-08-21_app.sql.gz", lines[0])
}

func TestRcloneBackend_Store_ConfigFile(t *testing.T) {
	runner := execution.NewRecordingRunner()
	backend, err := NewRcloneBackend(&RcloneConfig{
		Remote:     "onedrive",
		ConfigFile: "/etc/backupdb/rclone.conf",
	}, runner, nil)
	require.NoError(t, err)

	err = backend.Store(context.Background(), "/tmp/a.sql.gz", "2026-08-21_app.sql.gz")
	require.NoError(t, err)

	// The missing colon on the remote is tolerated and --config leads the
	// argument list.
	assert.Equal(t,
		"rclone --config /etc/backupdb/rclone.conf copyto /tmp/a.sql.gz onedrive:2026-08-21_app.sql.gz",
		runner.CommandLines()[0])
}

func TestRcloneBackend_List(t *testing.T) {
	runner := execution.NewRecordingRunner()
	runner.OnRun = func(spec execution.CommandSpec) (*execution.CommandResult, error) {
		return &execution.CommandResult{
			Stdout: `[
				{"Path":"2026-08-21_app.sql.gz","Name":"2026-08-21_app.sql.gz","Size":2048,"ModTime":"2026-08-21T03:00:05.123456789Z","IsDir":false},
				{"Path":"archive","Name":"archive","Size":-1,"ModTime":"2026-08-01T00:00:00Z","IsDir":true},
				{"Path":"2026-08-20_app.sql.gz","Name":"2026-08-20_app.sql.gz","Size":1024,"ModTime":"2026-08-20T03:00:04Z","IsDir":false}
			]`,
		}, nil
	}

	backend, err := NewRcloneBackend(&RcloneConfig{Remote: "onedrive:", Path: "backups"}, runner, nil)
	require.NoError(t, err)

	remotes, err := backend.List(context.Background())
	require.NoError(t, err)

	require.Len(t, remotes, 2)
	assert.Equal(t, "2026-08-21_app.sql.gz", remotes[0].Name)
	assert.Equal(t, int64(2048), remotes[0].Size)
	assert.Equal(t, 2026, remotes[0].ModTime.Year())
	assert.Equal(t, time.August, remotes[0].ModTime.Month())
	assert.Equal(t, "2026-08-20_app.sql.gz", remotes[1].Name)

	assert.Equal(t, "rclone lsjson onedrive:backups", runner.CommandLines()[0])
}

func TestRcloneBackend_List_MissingDirectory(t *testing.T) {
	runner := execution.NewRecordingRunner()
	runner.OnRun = func(spec execution.CommandSpec) (*execution.CommandResult, error) {
		return &execution.CommandResult{ExitCode: 3}, fmt.Errorf("rclone failed: directory not found")
	}

	backend, err := NewRcloneBackend(&RcloneConfig{Remote: "onedrive:"}, runner, nil)
	require.NoError(t, err)

	remotes, err := backend.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remotes)
}

func TestRcloneBackend_List_Failure(t *testing.T) {
	runner := execution.NewRecordingRunner()
	runner.OnRun = func(spec execution.CommandSpec) (*execution.CommandResult, error) {
		return &execution.CommandResult{ExitCode: 1}, fmt.Errorf("rclone failed: couldn't connect")
	}

	backend, err := NewRcloneBackend(&RcloneConfig{Remote: "onedrive:"}, runner, nil)
	require.NoError(t, err)

	_, err = backend.List(context.Background())
	assert.Error(t, err)
}

func TestRcloneBackend_Delete(t *testing.T) {
	runner := execution.NewRecordingRunner()
	backend, err := NewRcloneBackend(&RcloneConfig{Remote: "onedrive:", Path: "backups"}, runner, nil)
	require.NoError(t, err)

	require.NoError(t, backend.Delete(context.Background(), "2026-07-01_app.sql.gz"))
	assert.Equal(t, "rclone deletefile onedrive:backups/2026-07-01_app.sql.gz", runner.CommandLines()[0])
}

func TestRcloneBackend_Fetch(t *testing.T) {
	runner := execution.NewRecordingRunner()
	backend, err := NewRcloneBackend(&RcloneConfig{Remote: "onedrive:", Path: "backups"}, runner, nil)
	require.NoError(t, err)

	err = backend.Fetch(context.Background(), "2026-08-21_app.sql.gz", "/tmp/work/restore.sql.gz")
	require.NoError(t, err)

	assert.Equal(t, "rclone copyto onedrive:backups/2026-08-21_app.sql.gz /tmp/work/restore.sql.gz", runner.CommandLines()[0])
}

func TestRcloneBackend_Fetch_Failure(t *testing.T) {
	runner := execution.NewRecordingRunner()
	runner.OnRun = func(spec execution.CommandSpec) (*execution.CommandResult, error) {
		return &execution.CommandResult{ExitCode: 3}, fmt.Errorf("rclone failed: object not found")
	}

	backend, err := NewRcloneBackend(&RcloneConfig{Remote: "onedrive:"}, runner, nil)
	require.NoError(t, err)

	err = backend.Fetch(context.Background(), "2026-08-21_app.sql.gz", "/tmp/out")
	assert.Error(t, err)
}

func TestRcloneBackend_Validate(t *testing.T) {
	t.Run("CreatesTargetDirectory", func(t *testing.T) {
		runner := execution.NewRecordingRunner()
		backend, err := NewRcloneBackend(&RcloneConfig{Remote: "onedrive:", Path: "backups/prod"}, runner, nil)
		require.NoError(t, err)

		require.NoError(t, backend.Validate(context.Background()))
		assert.Equal(t, "rclone mkdir onedrive:backups/prod", runner.CommandLines()[0])
	})

	t.Run("MissingBinary", func(t *testing.T) {
		runner := execution.NewRecordingRunner()
		runner.MissingBinaries = map[string]bool{"rclone": true}

		backend, err := NewRcloneBackend(&RcloneConfig{Remote: "onedrive:"}, runner, nil)
		require.NoError(t, err)

		err = backend.Validate(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rclone binary not found")
	})
}

func TestRcloneBackend_RemotePath(t *testing.T) {
	tests := []struct {
		name   string
		config RcloneConfig
		file   string
		want   string
	}{
		{"RemoteRoot", RcloneConfig{Remote: "onedrive:"}, "a.sql.gz", "onedrive:a.sql.gz"},
		{"WithPath", RcloneConfig{Remote: "onedrive:", Path: "backups"}, "a.sql.gz", "onedrive:backups/a.sql.gz"},
		{"PathSlashes", RcloneConfig{Remote: "onedrive:", Path: "/backups/prod/"}, "a.sql.gz", "onedrive:backups/prod/a.sql.gz"},
		{"NoColon", RcloneConfig{Remote: "onedrive", Path: "backups"}, "a.sql.gz", "onedrive:backups/a.sql.gz"},
		{"DirOnly", RcloneConfig{Remote: "onedrive:", Path: "backups"}, "", "onedrive:backups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewRcloneBackend(&tt.config, execution.NewRecordingRunner(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, backend.remotePath(tt.file))
		})
	}
}
