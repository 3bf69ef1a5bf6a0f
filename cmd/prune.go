package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/VGXConsulting/BackupDB/internal/application"
	"github.com/VGXConsulting/BackupDB/internal/backup"
	"github.com/VGXConsulting/BackupDB/internal/display"
	appErrors "github.com/VGXConsulting/BackupDB/internal/errors"
)

var (
	// Prune flags
	pruneForce  bool
	pruneDryRun bool
)

// pruneCmd applies the retention policy on demand
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired artifacts from the archive and the storage backend",
	Long: `Apply the retention policy immediately instead of waiting for the next
backup run. Artifacts older than BACKUPDB_RETENTION_DAYS are removed
from the local archive and the storage backend, always keeping the
newest BACKUPDB_RETENTION_MIN_KEEP per database.

Examples:
  # Show what would be removed
  backupdb prune --dry-run

  # Prune after confirming
  backupdb prune

  # Prune without confirmation, for cron jobs
  backupdb prune --force`,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().BoolVar(&pruneForce, "force", false, "prune without asking for confirmation")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "only report what would be removed")

	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	app, err := application.New(appOptions())
	if err != nil {
		return err
	}

	policy := backup.NewRetentionPolicy(app.Config().System.Retention)
	if !policy.Enabled() {
		app.Display().Info("Retention is disabled (BACKUPDB_RETENTION_DAYS=0), nothing to prune")
		return nil
	}

	ctx, stop := appErrors.SignalContext(cmd.Context())
	defer stop()

	archive, err := app.OpenArchive()
	if err != nil {
		return err
	}
	backend, err := app.OpenBackend(ctx)
	if err != nil {
		return err
	}

	if !pruneForce && !pruneDryRun {
		confirmed, err := confirmPrune(app, archive, policy)
		if err != nil {
			return err
		}
		if !confirmed {
			app.Display().Info("Prune cancelled")
			return nil
		}
	}

	archiveResult, err := policy.PruneArchive(archive, pruneDryRun)
	if err != nil {
		return err
	}
	renderRetention(app.Display(), archiveResult)

	backendResult, err := policy.PruneBackend(ctx, backend, pruneDryRun)
	if err != nil {
		return err
	}
	renderRetention(app.Display(), backendResult)

	if archiveResult.HasErrors() || backendResult.HasErrors() {
		return exitFor(appErrors.ExitPartial)
	}
	return nil
}

// confirmPrune previews the archive-side plan and asks before deleting.
func confirmPrune(app *application.Application, archive *backup.Archive, policy *backup.RetentionPolicy) (bool, error) {
	artifacts, err := archive.List()
	if err != nil {
		return false, err
	}

	keep, remove := policy.Plan(artifacts, backup.SystemClock{}.Now())
	if len(remove) == 0 {
		app.Display().Info(fmt.Sprintf("Local archive: all %d artifacts within retention, checking storage backend", len(keep)))
	}

	details := make([]string, 0, len(remove)+1)
	details = append(details, fmt.Sprintf("retention: %d days, keep at least %d per database",
		app.Config().System.Retention.Days, app.Config().System.Retention.MinKeep))
	for _, artifact := range remove {
		details = append(details, "remove "+artifact.Name)
	}

	question := fmt.Sprintf("Remove %d expired artifacts from archive and %s storage?",
		len(remove), app.Config().System.Storage.Provider)
	return display.NewPrompt(app.Display()).Confirm(question, details...), nil
}

// renderRetention prints the outcome of one retention pass.
func renderRetention(out display.Service, result *backup.RetentionResult) {
	line := fmt.Sprintf("%s: examined %d, kept %d, removed %d",
		result.Scope, result.Examined, result.Kept, len(result.Removed))
	if result.DryRun {
		line += " (dry run)"
	}

	if result.HasErrors() {
		out.Warning(line)
		for _, message := range result.Errors {
			out.Error("  " + message)
		}
		return
	}
	out.Success(line)

	for _, name := range result.Removed {
		out.Info("  removed " + name)
	}
}
