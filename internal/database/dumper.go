package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/VGXConsulting/BackupDB/internal/execution"
	"github.com/VGXConsulting/BackupDB/internal/logging"
)

// defaultDumpOptions are always passed to mysqldump. The dump-date trailer
// is suppressed so an unchanged database produces byte-identical dumps day
// after day; without that the previous-day comparison never matches.
var defaultDumpOptions = []string{
	"--single-transaction",
	"--routines",
	"--triggers",
	"--skip-dump-date",
}

// Dumper shells out to the MySQL client tools for one target server
type Dumper struct {
	target  Target
	runner  execution.Runner
	logger  *logging.Logger
	options []string
	timeout time.Duration
}

// NewDumper creates a dumper for the given target server
func NewDumper(target Target, runner execution.Runner, logger *logging.Logger) *Dumper {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Dumper{
		target: target,
		runner: runner,
		logger: logger,
	}
}

// WithOptions appends extra mysqldump options after the defaults
func (d *Dumper) WithOptions(options []string) *Dumper {
	d.options = options
	return d
}

// WithTimeout bounds each dump invocation
func (d *Dumper) WithTimeout(timeout time.Duration) *Dumper {
	d.timeout = timeout
	return d
}

// Dump writes a logical dump of the named database to destPath and
// returns its size. The password travels through MYSQL_PWD so it never
// shows up in process listings.
func (d *Dumper) Dump(ctx context.Context, database string, destPath string) (int64, error) {
	args := []string{
		"-h", d.target.Host,
		"-P", strconv.Itoa(d.target.Port),
		"-u", d.target.User,
	}
	args = append(args, defaultDumpOptions...)
	args = append(args, d.options...)
	args = append(args, "--result-file", destPath, database)

	startTime := time.Now()
	_, err := d.runner.Run(ctx, execution.CommandSpec{
		Binary:  "mysqldump",
		Args:    args,
		Env:     []string{"MYSQL_PWD=" + d.target.Password},
		Timeout: d.timeout,
	})

	var size int64
	if err == nil {
		size, err = dumpSize(destPath, database)
	}

	d.logger.LogDump(d.target.Host, database, size, time.Since(startTime), err)

	if err != nil {
		os.Remove(destPath)
		return 0, err
	}

	return size, nil
}

// dumpSize validates that mysqldump actually produced output. An empty
// file means the tool exited zero without writing anything, which still
// counts as a failed dump.
func dumpSize(path string, database string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("dump file missing after mysqldump: %w", err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("mysqldump produced an empty dump for %s", database)
	}
	return info.Size(), nil
}

// Restore replays a plain SQL dump into the named database through the
// mysql client. The reader must supply already-decompressed SQL and the
// database must exist on the target.
func (d *Dumper) Restore(ctx context.Context, database string, dump io.Reader) error {
	args := []string{
		"-h", d.target.Host,
		"-P", strconv.Itoa(d.target.Port),
		"-u", d.target.User,
		database,
	}

	startTime := time.Now()
	_, err := d.runner.Run(ctx, execution.CommandSpec{
		Binary: "mysql",
		Args:   args,
		Env:    []string{"MYSQL_PWD=" + d.target.Password},
		Stdin:  dump,
	})
	if err != nil {
		return err
	}

	d.logger.WithFields(map[string]interface{}{
		"host":     d.target.Host,
		"database": database,
		"duration": time.Since(startTime).String(),
	}).Info("Restore completed")

	return nil
}

// CheckBinaries verifies the MySQL client tools are on PATH
func (d *Dumper) CheckBinaries() error {
	for _, binary := range []string{"mysqldump", "mysql"} {
		if _, err := d.runner.LookPath(binary); err != nil {
			return err
		}
	}
	return nil
}
