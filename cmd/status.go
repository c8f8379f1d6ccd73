package cmd

import (
	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/output"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show connectivity and queue status",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		store := openStoreOptional()
		if store != nil {
			defer store.Close()
		}

		orch := buildOrchestrator(gw, store, probeMonitor(gw))
		st, err := orch.SyncStatus()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		var dead int64
		if store != nil {
			dead, _ = store.CountDead()
		}

		if jsonMode {
			return output.JSON(map[string]any{
				"isOnline":     st.IsOnline,
				"pendingCount": st.PendingCount,
				"deadCount":    dead,
			})
		}

		if st.IsOnline {
			output.Success("Online")
		} else {
			output.Warning("Offline")
		}
		output.Info("Pending operations: %d", st.PendingCount)
		if dead > 0 {
			output.Warning("Dead operations: %d (run 'sd queue retry' to requeue)", dead)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
