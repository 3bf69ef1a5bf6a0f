package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/VGXConsulting/BackupDB/internal/application"
	"github.com/VGXConsulting/BackupDB/internal/backup"
	"github.com/VGXConsulting/BackupDB/internal/database"
	"github.com/VGXConsulting/BackupDB/internal/display"
	appErrors "github.com/VGXConsulting/BackupDB/internal/errors"
)

var (
	// Restore flags
	restoreDatabase string
	restoreDate     string
	restoreOutput   string
	restoreApply    bool
	restoreForce    bool
	restoreHost     string
)

// restoreCmd recovers a database dump from an artifact
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Recover a database dump from a backup artifact",
	Long: `Resolve a backup artifact, decrypt and decompress it, and either write
the plain SQL dump to a file or apply it to a server with the mysql
client. The local archive is tried first; when the artifact is not
there it is downloaded from the storage backend.

Without --date the newest artifact of the database is used.

Examples:
  # Write the newest dump of "app" to app.sql
  backupdb restore --database app

  # A specific day, to a chosen file
  backupdb restore --database app --date 2026-08-20 --output /tmp/app.sql

  # Apply the dump directly to the first configured server
  backupdb restore --database app --apply

  # Apply to a specific configured host without confirmation
  backupdb restore --database app --apply --host db2.example.com --force`,
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVar(&restoreDatabase, "database", "", "database to restore (required)")
	restoreCmd.Flags().StringVar(&restoreDate, "date", "", "artifact day as YYYY-MM-DD (default newest)")
	restoreCmd.Flags().StringVar(&restoreOutput, "output", "", "write the plain dump to this file (default <database>.sql)")
	restoreCmd.Flags().BoolVar(&restoreApply, "apply", false, "apply the dump to a configured server instead of writing a file")
	restoreCmd.Flags().BoolVar(&restoreForce, "force", false, "apply without asking for confirmation")
	restoreCmd.Flags().StringVar(&restoreHost, "host", "", "configured host to apply to (default the first)")
	restoreCmd.MarkFlagRequired("database")

	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	var date time.Time
	if restoreDate != "" {
		parsed, err := time.Parse(backup.DateLayout, restoreDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", restoreDate, err)
		}
		date = parsed
	}

	app, err := application.New(appOptions())
	if err != nil {
		return err
	}

	ctx, stop := appErrors.SignalContext(cmd.Context())
	defer stop()

	archive, err := app.OpenArchive()
	if err != nil {
		return err
	}

	// A broken backend configuration must not block archive-only restores.
	backend, err := app.OpenBackend(ctx)
	if err != nil {
		app.Logger().WithField("error", err.Error()).Warn("Storage backend unavailable, restoring from local archive only")
		backend = nil
	}

	restorer := backup.NewRestorer(&app.Config().System, archive, backend, app.Logger())

	spinner := display.NewSpinner(app.Display(), "Resolving artifact for "+restoreDatabase)
	spinner.Start()
	artifact, err := restorer.Resolve(ctx, restoreDatabase, date)
	spinner.Stop("")
	if err != nil {
		return err
	}

	if restoreApply {
		return applyRestore(ctx, app, restorer, artifact)
	}

	dest := restoreOutput
	if dest == "" {
		dest = restoreDatabase + ".sql"
	}

	written, err := restorer.Materialize(artifact, dest)
	if err != nil {
		return err
	}

	app.Display().Success(fmt.Sprintf("Wrote %s (%s) from %s", dest, backup.FormatBytes(written), artifact.Name))
	return nil
}

// applyRestore feeds the artifact through the mysql client into a
// configured server.
func applyRestore(ctx context.Context, app *application.Application, restorer *backup.Restorer, artifact *backup.Artifact) error {
	target, err := pickTarget(app.Config().Targets, restoreHost)
	if err != nil {
		return err
	}

	if !restoreForce {
		confirmed := display.NewPrompt(app.Display()).Confirm(
			fmt.Sprintf("Replace database %s on %s with this artifact?", restoreDatabase, target.Addr()),
			"artifact: "+artifact.Name,
			"dated: "+artifact.Date.Format(backup.DateLayout),
		)
		if !confirmed {
			app.Display().Info("Restore cancelled")
			return nil
		}
	}

	applier := database.NewDumper(target, app.Runner(), app.Logger())
	spinner := display.NewSpinner(app.Display(), fmt.Sprintf("Applying %s to %s", artifact.Name, target.Addr()))
	spinner.Start()
	err = restorer.Apply(ctx, applier, artifact, restoreDatabase)
	spinner.Stop("")
	if err != nil {
		return err
	}

	app.Display().Success(fmt.Sprintf("Restored %s on %s from %s", restoreDatabase, target.Addr(), artifact.Name))
	return nil
}

// pickTarget selects the configured target to restore into.
func pickTarget(targets []database.Target, host string) (database.Target, error) {
	if host == "" {
		return targets[0], nil
	}

	for _, target := range targets {
		if target.Host == host {
			return target, nil
		}
	}
	return database.Target{}, fmt.Errorf("host %q is not among the configured DB_HOSTS", host)
}
