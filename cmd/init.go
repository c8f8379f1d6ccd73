package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/db"
	"github.com/safedrain/sd/internal/output"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize the local queue database",
	Long:    `Creates the .safedrain directory and the pending-operation queue.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		base := getBaseDir()

		if _, err := os.Stat(filepath.Join(base, ".safedrain")); err == nil {
			output.Warning(".safedrain/ already exists")
			return nil
		}

		store, err := db.Initialize(base)
		if err != nil {
			output.Error("failed to initialize queue: %v", err)
			return err
		}
		defer store.Close()

		output.Success("Initialized %s", filepath.Join(base, ".safedrain"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
