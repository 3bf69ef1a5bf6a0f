package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/VGXConsulting/BackupDB/internal/logging"
)

// HostJob bundles what a run needs from one configured host: a way to
// discover its databases and a way to dump them. The application layer
// builds one job per (host, user, password, port) tuple.
type HostJob struct {
	Host       string
	Enumerator Enumerator
	Dumper     Dumper
}

// Runner executes complete backup runs: dump every database of every host,
// skip the ones whose content did not change since the previous artifact,
// compress, optionally encrypt, install into the local archive, upload to
// the storage backend, and finally apply retention on both sides.
//
// Hosts and databases are processed strictly in order. A failing database
// is recorded and the run carries on with the next one. Only storage
// validation failures and context cancellation abort a run.
type Runner struct {
	config      *SystemConfig
	archive     *Archive
	backend     Backend
	compression *CompressionManager
	encryption  *EncryptionManager
	detector    *ChangeDetector
	retention   *RetentionPolicy
	notifier    Notifier
	logger      *logging.Logger
	clock       Clock
	dryRun      bool
}

// NewRunner wires a runner from a validated configuration.
func NewRunner(config *SystemConfig, archive *Archive, backend Backend, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	compression := NewCompressionManager()
	encryption := NewEncryptionManager(&config.Encryption)

	return &Runner{
		config:      config,
		archive:     archive,
		backend:     backend,
		compression: compression,
		encryption:  encryption,
		detector:    NewChangeDetector(compression, encryption),
		retention:   NewRetentionPolicy(config.Retention),
		logger:      logger,
		clock:       SystemClock{},
	}
}

// WithNotifier attaches a notifier that receives the finished report.
func (r *Runner) WithNotifier(notifier Notifier) *Runner {
	r.notifier = notifier
	return r
}

// WithClock overrides the time source, primarily for tests.
func (r *Runner) WithClock(clock Clock) *Runner {
	r.clock = clock
	r.retention.WithClock(clock)
	return r
}

// WithDryRun makes the run walk the full flow but record would-be uploads
// and deletions instead of performing them. Dumps still run so change
// detection reports honestly.
func (r *Runner) WithDryRun(dryRun bool) *Runner {
	r.dryRun = dryRun
	return r
}

// Run executes one backup run over the given hosts and returns its report.
// The report is always non-nil; its ExitCode carries the process outcome.
func (r *Runner) Run(ctx context.Context, hosts []HostJob) *RunReport {
	report := NewRunReport(r.backend.Name(), r.dryRun)

	r.logger.WithFields(map[string]interface{}{
		"run_id":  report.RunID,
		"storage": r.backend.Name(),
		"hosts":   len(hosts),
		"dry_run": r.dryRun,
	}).Info("Starting backup run")

	if err := r.backend.Validate(ctx); err != nil {
		r.logger.WithField("storage", r.backend.Name()).WithError(err).Error("Storage backend validation failed")
		return r.finish(ctx, report, NewStorageError(fmt.Sprintf("%s backend validation failed", r.backend.Name()), err))
	}

	for _, host := range hosts {
		if ctx.Err() != nil {
			return r.finish(ctx, report, ctx.Err())
		}

		databases, err := r.resolveDatabases(ctx, host)
		if err != nil {
			r.logger.WithField("host", host.Host).WithError(err).Error("Failed to enumerate databases")
			report.Record(DatabaseResult{
				Host:     host.Host,
				Database: "*",
				Status:   StatusFailed,
				Error:    err.Error(),
			})
			continue
		}

		if len(databases) == 0 {
			r.logger.WithField("host", host.Host).Warn("No databases to back up")
			continue
		}

		for _, database := range databases {
			if ctx.Err() != nil {
				return r.finish(ctx, report, ctx.Err())
			}
			report.Record(r.backupDatabase(ctx, host, database))
		}
	}

	r.applyRetention(ctx, report)

	if ctx.Err() != nil {
		return r.finish(ctx, report, ctx.Err())
	}

	return r.finish(ctx, report, nil)
}

// resolveDatabases returns the databases to back up on one host. An explicit
// include list is taken literally; otherwise the host is asked, and the
// enumerator applies the system-schema and exclude-pattern filtering.
func (r *Runner) resolveDatabases(ctx context.Context, host HostJob) ([]string, error) {
	if len(r.config.Databases) > 0 {
		return r.config.Databases, nil
	}

	done := r.logger.LogOperationStart("enumerate_databases", map[string]interface{}{
		"host": host.Host,
	})
	databases, err := host.Enumerator.ListDatabases(ctx)
	done(err)
	if err != nil {
		return nil, err
	}

	return databases, nil
}

// backupDatabase runs the dump, compare, package, upload pipeline for one
// database and returns its result. Failures are contained to the result so
// the caller can continue with the next database.
func (r *Runner) backupDatabase(ctx context.Context, host HostJob, database string) DatabaseResult {
	start := time.Now()
	result := DatabaseResult{Host: host.Host, Database: database}

	today := truncateToDay(r.clock.Now())

	dumpFile, err := r.archive.TempFile(".dump-" + database + "-*.sql")
	if err != nil {
		return r.fail(result, start, err)
	}
	dumpPath := dumpFile.Name()
	dumpFile.Close()
	defer removeQuietly(dumpPath)

	dumpCtx := ctx
	if r.config.DumpTimeout > 0 {
		var cancel context.CancelFunc
		dumpCtx, cancel = context.WithTimeout(ctx, r.config.DumpTimeout)
		defer cancel()
	}

	dumpStart := time.Now()
	dumpSize, err := host.Dumper.Dump(dumpCtx, database, dumpPath)
	r.logger.LogDump(host.Host, database, dumpSize, time.Since(dumpStart), err)
	if err != nil {
		return r.fail(result, start, err)
	}
	result.DumpSize = dumpSize

	previous, err := r.archive.FindPrevious(database, today)
	if err != nil {
		r.logger.WithField("database", database).WithError(err).Warn("Could not resolve previous artifact, assuming changed")
		previous = nil
	}

	detectStart := time.Now()
	compare, err := r.detector.Compare(dumpPath, previous)
	if err != nil {
		// Fail open: an unreadable baseline must not block the backup.
		r.logger.WithField("database", database).WithError(err).Warn("Baseline artifact unreadable, uploading fresh dump")
		checksum, _, hashErr := r.detector.HashFile(dumpPath)
		if hashErr != nil {
			return r.fail(result, start, hashErr)
		}
		compare = &CompareResult{Changed: true, DumpChecksum: checksum}
	}
	r.logger.LogChangeDetection(database, compare.Changed, compare.Baseline, time.Since(detectStart))

	if !compare.Changed {
		result.Status = StatusUnchanged
		result.Duration = time.Since(start)
		return result
	}

	name := ArtifactName(today, database, r.config.Compression.Algorithm, r.encryption.IsEnabled())
	result.Artifact = name

	if r.dryRun {
		r.logger.WithFields(map[string]interface{}{
			"database": database,
			"artifact": name,
		}).Info("Dry run, would compress and upload")
		result.Status = StatusUploaded
		result.Duration = time.Since(start)
		return result
	}

	artifactPath, storeSize, err := r.packageArtifact(dumpPath, name, database)
	if err != nil {
		return r.fail(result, start, err)
	}
	result.StoreSize = storeSize

	uploadStart := time.Now()
	err = r.backend.Store(ctx, artifactPath, name)
	r.logger.LogUpload(r.backend.Name(), name, storeSize, time.Since(uploadStart), err)
	if err != nil {
		// Drop the local copy so the next run does not treat this dump as
		// unchanged against a baseline the backend never received.
		if removeErr := r.archive.Remove(name); removeErr != nil {
			r.logger.WithField("artifact", name).WithError(removeErr).Warn("Failed to remove artifact after upload failure")
		}
		return r.fail(result, start, err)
	}

	result.Status = StatusUploaded
	result.Duration = time.Since(start)
	return result
}

// packageArtifact compresses and optionally encrypts a dump, then installs
// it into the archive under its final name. It returns the installed path
// and the size of the artifact as it will be uploaded.
func (r *Runner) packageArtifact(dumpPath, name, database string) (string, int64, error) {
	compressed, err := r.archive.TempFile(".artifact-" + database + "-*")
	if err != nil {
		return "", 0, err
	}
	compressedPath := compressed.Name()
	compressed.Close()

	algorithm := r.config.Compression.Algorithm
	stats, err := r.compression.CompressFile(dumpPath, compressedPath, algorithm, r.config.Compression.Level)
	if err != nil {
		removeQuietly(compressedPath)
		r.logger.LogCompression(database, string(algorithm), 0, 0, 0, err)
		return "", 0, err
	}
	r.logger.LogCompression(database, string(stats.Algorithm), stats.OriginalSize, stats.CompressedSize, stats.Duration, nil)

	stagedPath := compressedPath
	storeSize := stats.CompressedSize

	if r.encryption.IsEnabled() {
		encrypted, err := r.archive.TempFile(".artifact-" + database + "-*.enc")
		if err != nil {
			removeQuietly(compressedPath)
			return "", 0, err
		}
		encryptedPath := encrypted.Name()
		encrypted.Close()

		encStats, err := r.encryption.EncryptFile(compressedPath, encryptedPath)
		removeQuietly(compressedPath)
		if err != nil {
			removeQuietly(encryptedPath)
			return "", 0, err
		}

		stagedPath = encryptedPath
		storeSize = encStats.EncryptedSize
	}

	installedPath, err := r.archive.Install(stagedPath, name)
	if err != nil {
		removeQuietly(stagedPath)
		return "", 0, err
	}

	return installedPath, storeSize, nil
}

// applyRetention prunes the local archive and the backend after the backup
// loop. Retention failures are logged and reported but never fail the run.
func (r *Runner) applyRetention(ctx context.Context, report *RunReport) {
	if !r.retention.Enabled() || ctx.Err() != nil {
		return
	}

	archiveResult, err := r.retention.PruneArchive(r.archive, r.dryRun)
	if err != nil {
		r.logger.LogRetention("archive", 0, 0, err)
	} else {
		report.AddRetention(archiveResult)
		r.logRetentionResult(archiveResult)
	}

	backendResult, err := r.retention.PruneBackend(ctx, r.backend, r.dryRun)
	if err != nil {
		r.logger.LogRetention(r.backend.Name(), 0, 0, err)
	} else {
		report.AddRetention(backendResult)
		r.logRetentionResult(backendResult)
	}
}

func (r *Runner) logRetentionResult(result *RetentionResult) {
	r.logger.LogRetention(result.Scope, len(result.Removed), result.Duration, nil)
	for _, failure := range result.Errors {
		r.logger.WithField("scope", result.Scope).Warnf("Retention delete failed: %s", failure)
	}
}

// fail stamps a result as failed and logs it.
func (r *Runner) fail(result DatabaseResult, start time.Time, err error) DatabaseResult {
	r.logger.WithFields(map[string]interface{}{
		"host":     result.Host,
		"database": result.Database,
	}).WithError(err).Error("Database backup failed")

	result.Status = StatusFailed
	result.Error = err.Error()
	result.Duration = time.Since(start)
	return result
}

// finish closes out the report, persists it, and delivers notifications.
func (r *Runner) finish(ctx context.Context, report *RunReport, fatal error) *RunReport {
	if fatal != nil {
		report.Abort(fatal)
	} else {
		report.Finish()
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id":   report.RunID,
		"status":   report.Status,
		"duration": report.Duration.Round(time.Millisecond).String(),
	}).Info(report.Summary())

	if !r.dryRun {
		if _, err := report.Save(r.archive.Dir()); err != nil {
			r.logger.WithField("run_id", report.RunID).WithError(err).Warn("Failed to save run report")
		}
	}

	r.notify(ctx, report)

	return report
}

// notify delivers the report when a notifier is attached and its gating
// accepts the outcome. Delivery survives run cancellation so an interrupted
// run still produces its notification.
func (r *Runner) notify(ctx context.Context, report *RunReport) {
	if r.notifier == nil {
		return
	}

	if gate, ok := r.notifier.(interface{ ShouldNotify(*RunReport) bool }); ok && !gate.ShouldNotify(report) {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := r.notifier.Notify(notifyCtx, report); err != nil {
		r.logger.WithField("run_id", report.RunID).WithError(err).Warn("Failed to deliver run notification")
	}
}
