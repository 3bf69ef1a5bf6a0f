// Package backup implements the backup pipeline: dump, change detection,
// compression, optional encryption, archiving, upload, and retention.
//
// A run is driven by a Runner over a list of HostJobs. For every database it
// produces a mysqldump, hashes it against the most recent previous artifact,
// and skips the upload when nothing changed. Changed dumps are compressed
// (gzip, zstd, or lz4), optionally encrypted, installed into the local
// Archive under their canonical name (for example 2026-08-21_shop.sql.gz),
// and stored on the configured Backend. Retention then prunes expired
// artifacts from both the archive and the backend, always keeping the newest
// artifact per database as a comparison baseline.
//
// Core components:
//
//   - Runner: sequential per-host, per-database orchestration
//   - Archive: the local artifact directory and its naming scheme
//   - ChangeDetector: SHA-256 comparison of dump and baseline content
//   - Backend: storage abstraction (local, git, S3, OneDrive/rclone,
//     Azure Blob, GCS) created through NewBackend
//   - RetentionPolicy: age cutoff with per-database min-keep
//   - RunReport: per-run outcome, persisted as JSON and mapped to the
//     process exit code
//
// Failures are contained per database: a failed dump or upload is recorded
// in the report and the run continues. Only storage validation failures and
// context cancellation abort a run.
//
// Example usage:
//
//	archive, err := backup.NewArchive(config.Workdir)
//	if err != nil {
//		return err
//	}
//	backend, err := backup.NewBackend(ctx, config.Storage, runner, logger)
//	if err != nil {
//		return err
//	}
//
//	report := backup.NewRunner(config, archive, backend, logger).
//		WithNotifier(backup.NewWebhookNotifier(config.Webhook)).
//		Run(ctx, hosts)
//	os.Exit(report.ExitCode())
package backup
