package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version  string
	baseDir  string
	jsonMode bool
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "sd",
	Short: "Offline-first drain issue reporting CLI",
	Long: `sd - field client for the SafeDrain municipal drain-monitoring service.

Reports submitted while offline are queued durably and replayed against the
server on the next sync, in the order they were made.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initBaseDir)

	rootCmd.PersistentFlags().BoolVar(&jsonMode, "json", false, "emit JSON output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Report Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")
}

func initBaseDir() {
	if v := os.Getenv("SD_BASE_DIR"); v != "" {
		baseDir = v
		return
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fall back to the working directory, matching Open's error path.
		baseDir, _ = os.Getwd()
		return
	}
	baseDir = home
}

// getBaseDir returns the directory holding the local queue and spool.
func getBaseDir() string {
	return baseDir
}
