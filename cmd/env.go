package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/VGXConsulting/BackupDB/internal/config"
)

// envCmd prints the configuration template
var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print an annotated configuration template",
	Long: `Print a .env template documenting every configuration variable with
its default. Redirect it into a file, fill in your values, and point
backupdb at it with --env-file.

Examples:
  # Generate a configuration file
  backupdb env > backupdb.env

  # Use it
  backupdb --env-file backupdb.env --test-config`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.Sample())
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
