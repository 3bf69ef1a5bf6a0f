// Package application wires configuration, logging, storage, and the
// database layer into the operations the CLI exposes: backup runs, the
// scheduled mode, and the configuration test.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VGXConsulting/BackupDB/internal/backup"
	"github.com/VGXConsulting/BackupDB/internal/config"
	"github.com/VGXConsulting/BackupDB/internal/database"
	"github.com/VGXConsulting/BackupDB/internal/display"
	appErrors "github.com/VGXConsulting/BackupDB/internal/errors"
	"github.com/VGXConsulting/BackupDB/internal/execution"
	"github.com/VGXConsulting/BackupDB/internal/logging"
	"github.com/VGXConsulting/BackupDB/internal/schedule"
)

// Options carries the command-line overrides into the application. Empty
// fields defer to the environment configuration.
type Options struct {
	EnvFile   string
	DryRun    bool
	Once      bool
	LogLevel  string
	LogFormat string
	LogFile   string
	NoColor   bool
}

// Application holds the wired service graph for one invocation.
type Application struct {
	config  *config.Config
	logger  *logging.Logger
	display display.Service
	runner  execution.Runner
	options Options
}

// New loads the configuration and builds the application. Configuration
// errors come back unmapped; ExitCodeFor turns them into process codes.
func New(options Options) (*Application, error) {
	cfg, err := config.NewLoader().Load(options.EnvFile)
	if err != nil {
		return nil, err
	}

	logConfig := cfg.Logging
	if options.LogLevel != "" {
		logConfig.Level = logging.LogLevel(strings.ToLower(options.LogLevel))
	}
	if options.LogFormat != "" {
		logConfig.Format = strings.ToLower(options.LogFormat)
	}
	if options.LogFile != "" {
		logConfig.LogFile = options.LogFile
	}

	logger, err := logging.NewLogger(logConfig)
	if err != nil {
		return nil, backup.NewConfigurationError("failed to initialize logging", err)
	}

	displayConfig := &display.Config{
		ColorEnabled: !options.NoColor,
		UseIcons:     !options.NoColor,
		QuietMode:    logConfig.Level == logging.LogLevelQuiet,
	}
	displayConfig.SetDefaults()

	return &Application{
		config:  cfg,
		logger:  logger,
		display: display.NewService(displayConfig),
		runner:  execution.NewRunner(logger),
		options: options,
	}, nil
}

// Config returns the loaded configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Display returns the human-facing output service.
func (app *Application) Display() display.Service {
	return app.display
}

// Runner returns the subprocess runner.
func (app *Application) Runner() execution.Runner {
	return app.runner
}

// OpenArchive opens the local artifact archive under the configured
// working directory.
func (app *Application) OpenArchive() (*backup.Archive, error) {
	return backup.NewArchive(app.config.System.Workdir)
}

// OpenBackend constructs the configured storage backend.
func (app *Application) OpenBackend(ctx context.Context) (backup.Backend, error) {
	return backup.NewBackend(ctx, app.config.System.Storage, app.runner, app.logger)
}

// Run executes backup runs and returns the process exit code: one
// immediate run by default, or the cron loop when a schedule is configured
// and the once option is not set.
func (app *Application) Run(ctx context.Context) int {
	archive, err := app.OpenArchive()
	if err != nil {
		return app.fail("Cannot open archive", err)
	}

	backend, err := app.OpenBackend(ctx)
	if err != nil {
		return app.fail("Cannot initialize storage backend", err)
	}

	runner := backup.NewRunner(&app.config.System, archive, backend, app.logger).
		WithDryRun(app.options.DryRun)

	if notifier := backup.NewWebhookNotifier(app.config.System.Webhook); notifier.Enabled() {
		runner.WithNotifier(notifier)
	}

	jobs := app.hostJobs()

	if app.config.Schedule != "" && !app.options.Once {
		return app.runScheduled(ctx, runner, jobs)
	}

	report := runner.Run(ctx, jobs)
	app.renderReport(report)
	return report.ExitCode()
}

// runScheduled blocks on the cron loop until the context is cancelled.
// A stop between runs exits clean; a stop during a run exits with that
// run's outcome. Failed runs are reported and the loop keeps going.
func (app *Application) runScheduled(ctx context.Context, runner *backup.Runner, jobs []backup.HostJob) int {
	scheduler, err := schedule.New(app.config.Schedule)
	if err != nil {
		return app.fail("Invalid backup schedule", backup.NewConfigurationError("invalid backup schedule", err))
	}

	app.logger.WithFields(map[string]interface{}{
		"schedule": scheduler.Expression(),
		"next_run": scheduler.NextRun().Format(time.RFC3339),
	}).Info("Entering scheduled mode")

	exitCode := appErrors.ExitSuccess
	_ = scheduler.Run(ctx, func(runCtx context.Context) error {
		report := runner.Run(runCtx, jobs)
		app.renderReport(report)

		if runCtx.Err() != nil {
			exitCode = report.ExitCode()
			return nil
		}

		app.logger.WithField("next_run", scheduler.NextRun().Format(time.RFC3339)).Info("Waiting for next activation")
		return nil
	})

	app.logger.Info("Scheduled mode stopped")
	return exitCode
}

// hostJobs builds one backup job per configured target.
func (app *Application) hostJobs() []backup.HostJob {
	service := database.NewServiceWithLogger(app.logger)

	jobs := make([]backup.HostJob, 0, len(app.config.Targets))
	for _, target := range app.config.Targets {
		dumper := database.NewDumper(target, app.runner, app.logger).
			WithOptions(app.config.System.DumpOptions)

		jobs = append(jobs, backup.HostJob{
			Host: target.Host,
			Enumerator: &hostEnumerator{
				target:  target,
				service: service,
				exclude: app.config.System.ExcludePatterns,
			},
			Dumper: dumper,
		})
	}

	return jobs
}

// TestConfig probes everything a run would need without backing anything
// up: configuration shape, archive writability, client binaries, server
// connectivity, and the storage backend.
func (app *Application) TestConfig(ctx context.Context) int {
	system := &app.config.System

	preflight := backup.NewPreflight(app.logger).
		Add("configuration", backup.ConfigCheck(system)).
		Add("archive", backup.ArchiveCheck(system.Workdir)).
		Add("binaries", backup.BinaryCheck(app.runner, requiredBinaries(system.Storage)...))

	service := database.NewServiceWithLogger(app.logger)
	for _, target := range app.config.Targets {
		preflight.Add("mysql "+target.Addr(), targetCheck(service, target))
	}

	if backend, err := app.OpenBackend(ctx); err != nil {
		preflight.Add("storage", failedCheck(err))
	} else {
		preflight.Add("storage", backup.BackendCheck(backend))
	}

	checks := preflight.Run(ctx)
	app.renderChecks(checks)

	if !backup.ChecksPassed(checks) {
		app.display.Error("Configuration test failed")
		return appErrors.ExitConfig
	}

	app.display.Success("Configuration test passed")
	return appErrors.ExitSuccess
}

// requiredBinaries lists the executables a run shells out to for the
// given storage configuration.
func requiredBinaries(storage backup.StorageConfig) []string {
	binaries := []string{"mysqldump", "mysql"}

	switch storage.Provider {
	case backup.StorageProviderGit:
		binaries = append(binaries, "git")
		if storage.Git != nil && storage.Git.LFS {
			binaries = append(binaries, "git-lfs")
		}
	case backup.StorageProviderOneDrive:
		binaries = append(binaries, "rclone")
	}

	return binaries
}

// targetCheck verifies one target accepts connections and reports its
// server version.
func targetCheck(service *database.Service, target database.Target) backup.CheckFunc {
	return func(ctx context.Context) (string, error) {
		db, err := service.Connect(ctx, target)
		if err != nil {
			return "", err
		}
		defer service.Close(db)

		return service.GetVersion(ctx, db)
	}
}

// failedCheck wraps a construction error as an always-failing check so it
// shows up in the preflight listing instead of aborting it.
func failedCheck(err error) backup.CheckFunc {
	return func(ctx context.Context) (string, error) {
		return "", err
	}
}

// renderChecks prints one line per preflight outcome.
func (app *Application) renderChecks(checks []backup.Check) {
	app.display.PrintHeader("Configuration Test")

	for _, check := range checks {
		switch {
		case !check.Passed():
			app.display.Error(fmt.Sprintf("%s: %v", check.Name, check.Err))
		case check.Detail != "":
			app.display.Success(fmt.Sprintf("%s: %s", check.Name, check.Detail))
		default:
			app.display.Success(check.Name)
		}
	}
}

// renderReport prints the closing status line of a run. The detailed
// progress already went through the logger.
func (app *Application) renderReport(report *backup.RunReport) {
	line := fmt.Sprintf("Run %s: %s via %s", shortRunID(report.RunID), report.Summary(), report.Storage)
	if report.DryRun {
		line += " (dry run)"
	}

	switch {
	case report.Fatal != "":
		app.display.Error(fmt.Sprintf("%s: %s", line, report.Fatal))
	case report.Failed() > 0:
		app.display.Warning(line)
	default:
		app.display.Success(line)
	}
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// fail reports a fatal setup problem on both output surfaces and returns
// its exit code.
func (app *Application) fail(message string, err error) int {
	app.logger.WithField("error", err.Error()).Error(message)
	app.display.Error(fmt.Sprintf("%s: %v", message, err))
	return ExitCodeFor(err)
}

// hostEnumerator lists one host's databases over a live connection,
// applying the exclude patterns on top of the built-in system-schema
// filtering.
type hostEnumerator struct {
	target  database.Target
	service *database.Service
	exclude []string
}

func (he *hostEnumerator) ListDatabases(ctx context.Context) ([]string, error) {
	db, err := he.service.Connect(ctx, he.target)
	if err != nil {
		return nil, err
	}
	defer he.service.Close(db)

	names, err := he.service.ListDatabases(ctx, db)
	if err != nil {
		return nil, err
	}

	return database.FilterDatabases(names, he.exclude)
}

// ExitCodeFor maps an error to the process exit code. Configuration,
// validation, and storage-setup failures exit with ExitConfig; everything
// else counts as a partial failure.
func ExitCodeFor(err error) int {
	if err == nil {
		return appErrors.ExitSuccess
	}

	var validationErrs backup.ValidationErrors
	if errors.As(err, &validationErrs) {
		return appErrors.ExitConfig
	}

	var backupErr *backup.BackupError
	if errors.As(err, &backupErr) {
		switch backupErr.Type {
		case backup.BackupErrorTypeConfiguration, backup.BackupErrorTypeValidation, backup.BackupErrorTypeStorage:
			return appErrors.ExitConfig
		}
		return appErrors.ExitPartial
	}

	return appErrors.ExitCodeForError(err)
}
