package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/VGXConsulting/BackupDB/internal/application"
	"github.com/VGXConsulting/BackupDB/internal/backup"
	"github.com/VGXConsulting/BackupDB/internal/display"
	appErrors "github.com/VGXConsulting/BackupDB/internal/errors"
)

var (
	// Listing flags
	listFormat   string
	listDatabase string
	listLocal    bool
)

// listCmd lists the artifacts in storage
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup artifacts",
	Long: `List the backup artifacts in the configured storage backend, newest
first. With --local the local archive directory is listed instead, which
works even when the backend is unreachable.

Examples:
  # List everything in the storage backend
  backupdb list

  # Only artifacts of one database
  backupdb list --database app

  # Machine-readable output for scripting
  backupdb list --format json

  # List the local archive instead of the backend
  backupdb list --local`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listFormat, "format", "table", "output format (table, json, yaml, compact)")
	listCmd.Flags().StringVar(&listDatabase, "database", "", "only list artifacts of this database")
	listCmd.Flags().BoolVar(&listLocal, "local", false, "list the local archive instead of the storage backend")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := display.ParseOutputFormat(listFormat)
	if err != nil {
		return err
	}

	app, err := application.New(appOptions())
	if err != nil {
		return err
	}

	ctx, stop := appErrors.SignalContext(cmd.Context())
	defer stop()

	artifacts, err := collectArtifacts(ctx, app)
	if err != nil {
		return err
	}

	if listDatabase != "" {
		filtered := artifacts[:0]
		for _, artifact := range artifacts {
			if artifact.Database == listDatabase {
				filtered = append(filtered, artifact)
			}
		}
		artifacts = filtered
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].Date.Equal(artifacts[j].Date) {
			return artifacts[i].Date.After(artifacts[j].Date)
		}
		return artifacts[i].Name < artifacts[j].Name
	})

	return renderArtifacts(app.Display(), format, artifacts)
}

// collectArtifacts reads artifact listings from the backend, or from the
// local archive with --local.
func collectArtifacts(ctx context.Context, app *application.Application) ([]backup.Artifact, error) {
	if listLocal {
		archive, err := app.OpenArchive()
		if err != nil {
			return nil, err
		}
		return archive.List()
	}

	backend, err := app.OpenBackend(ctx)
	if err != nil {
		return nil, err
	}

	remotes, err := backend.List(ctx)
	if err != nil {
		return nil, err
	}

	artifacts := make([]backup.Artifact, 0, len(remotes))
	for _, remote := range remotes {
		artifact, err := backup.ParseArtifactName(remote.Name)
		if err != nil {
			continue
		}
		artifact.Size = remote.Size
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

// artifactRow is the serializable shape used by the json and yaml formats
type artifactRow struct {
	Name      string `json:"name" yaml:"name"`
	Database  string `json:"database" yaml:"database"`
	Date      string `json:"date" yaml:"date"`
	Size      int64  `json:"size" yaml:"size"`
	Encrypted bool   `json:"encrypted" yaml:"encrypted"`
}

func renderArtifacts(out display.Service, format display.OutputFormat, artifacts []backup.Artifact) error {
	rows := make([]artifactRow, 0, len(artifacts))
	for _, artifact := range artifacts {
		rows = append(rows, artifactRow{
			Name:      artifact.Name,
			Database:  artifact.Database,
			Date:      artifact.Date.Format(backup.DateLayout),
			Size:      artifact.Size,
			Encrypted: artifact.Encrypted,
		})
	}

	if format == display.FormatTable {
		if len(rows) == 0 {
			out.Info("No artifacts found")
			return nil
		}

		headers := []string{"Artifact", "Database", "Date", "Size"}
		cells := make([][]string, 0, len(rows))
		for _, row := range rows {
			cells = append(cells, []string{row.Name, row.Database, row.Date, backup.FormatBytes(row.Size)})
		}
		out.PrintTable(headers, cells)
		return nil
	}

	formatter, ok := out.Formatter(format)
	if !ok {
		return fmt.Errorf("unsupported output format %q", format)
	}

	rendered, err := formatter.FormatDocument(rows)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	fmt.Fprint(out.Writer(), rendered)
	return nil
}
