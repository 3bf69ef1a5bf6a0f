package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/VGXConsulting/BackupDB/internal/application"
	appErrors "github.com/VGXConsulting/BackupDB/internal/errors"
)

// CLI flag variables
var (
	// Configuration flags
	envFile string

	// Logging flags
	logLevel  string
	logFormat string
	logFile   string
	noColor   bool

	// Run flags
	testConfig bool
	dryRun     bool
	runOnce    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backupdb",
	Short: "Dump, compare, and archive MySQL databases",
	Long: `BackupDB dumps every configured MySQL database, skips the ones whose
content did not change since the previous artifact, compresses and
optionally encrypts the rest, and uploads them to the configured storage
backend (git, s3, onedrive, local, azure, or gcs). Retention removes
expired artifacts on both sides and every run leaves a JSON report in
the archive directory.

Configuration comes from the environment or a .env file. Run
"backupdb env" to print an annotated template.

Examples:
  # One backup run with the configuration from the environment
  backupdb

  # Load configuration from a file and verify it without backing up
  backupdb --env-file /etc/backupdb.env --test-config

  # Show what a run would do without dumping or uploading
  backupdb --dry-run

  # Force a single run even when BACKUPDB_SCHEDULE is set
  backupdb --once

  # Run as a long-lived process on the configured cron schedule
  BACKUPDB_SCHEDULE="30 2 * * *" backupdb`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// Execute runs the root command. It is called once, by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(application.ExitCodeFor(err))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load configuration from a .env file before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (quiet, normal, verbose, debug)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json, plain)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colors and icons in output")

	rootCmd.Flags().BoolVar(&testConfig, "test-config", false, "verify configuration, binaries, servers, and storage, then exit")
	rootCmd.Flags().BoolVar(&testConfig, "test", false, "alias for --test-config")
	rootCmd.Flags().MarkHidden("test")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "go through a run without dumping, uploading, or deleting anything")
	rootCmd.Flags().BoolVar(&runOnce, "once", false, "run a single backup immediately, ignoring BACKUPDB_SCHEDULE")

	rootCmd.SetUsageTemplate(getUsageTemplate())
}

// runRoot executes a backup run, or the configuration test when
// --test-config is set.
func runRoot(cmd *cobra.Command, args []string) error {
	options := appOptions()
	options.DryRun = dryRun
	options.Once = runOnce

	app, err := application.New(options)
	if err != nil {
		return err
	}

	ctx, stop := appErrors.SignalContext(cmd.Context())
	defer stop()

	if testConfig {
		return exitFor(app.TestConfig(ctx))
	}
	return exitFor(app.Run(ctx))
}

// appOptions collects the persistent flags shared by every subcommand.
func appOptions() application.Options {
	return application.Options{
		EnvFile:   envFile,
		LogLevel:  logLevel,
		LogFormat: logFormat,
		LogFile:   logFile,
		NoColor:   noColor,
	}
}

// exitError carries an exit code through cobra without printing anything.
// The application already reported the outcome on its own surfaces.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

func exitFor(code int) error {
	if code == appErrors.ExitSuccess {
		return nil
	}
	return &exitError{code: code}
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  "Print the version information for backupdb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("backupdb version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}

// getUsageTemplate returns a custom usage template with the configuration
// story appended
func getUsageTemplate() string {
	return `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}

Configuration:
  Everything is configured through environment variables with the
  BACKUPDB_ prefix; the bare names without the prefix work as well.
  Print an annotated template with every variable:

    backupdb env > backupdb.env

  Required variables:
    BACKUPDB_DB_HOSTS        Comma-separated MySQL hosts
    BACKUPDB_DB_USERS        One user per host
    BACKUPDB_DB_PASSWORDS    One password per host

  Common variables:
    BACKUPDB_WORKDIR         Local archive directory (default ./backups)
    BACKUPDB_STORAGE_TYPE    git | s3 | onedrive | local | azure | gcs
    BACKUPDB_COMPRESSION     gzip | zstd | lz4 | none
    BACKUPDB_RETENTION_DAYS  Remove artifacts older than this many days
    BACKUPDB_SCHEDULE        Cron expression for scheduled mode

Exit Codes:
  0  run succeeded, nothing to do included
  1  at least one database failed or the run was interrupted
  2  configuration, validation, or storage setup problem
`
}

func init() {
	rootCmd.AddCommand(createVersionCommand())
}
