package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/output"
	sdsync "github.com/safedrain/sd/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued operations against the server",
	Long: `Replay queued report operations in the order they were made.

A failed operation does not stop the pass; it is retried with backoff on
later syncs and moved to the dead letter list after repeated failures.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		store := openStoreOptional()
		if store == nil {
			err := fmt.Errorf("local queue unavailable, nothing to sync")
			output.Error("%v", err)
			return err
		}
		defer store.Close()

		mon := probeMonitor(gw)
		if !mon.IsOnline() {
			if jsonMode {
				output.JSONError(output.ErrCodeOffline, "server unreachable")
				return nil
			}
			output.Warning("Offline, queued operations kept for later")
			return nil
		}

		rec, app := buildReconciler(gw, store, mon)
		res, err := rec.Reconcile(cmd.Context(), app.Apply)
		if err != nil {
			if errors.Is(err, sdsync.ErrSyncInProgress) {
				if jsonMode {
					output.JSONError(output.ErrCodeSyncBusy, err.Error())
					return nil
				}
				output.Warning("Another sync is already running")
				return nil
			}
			output.Error("sync: %v", err)
			return err
		}

		if jsonMode {
			return output.JSON(res)
		}
		if res.Synced == 0 && res.Failed == 0 && res.Skipped == 0 {
			output.Info("Nothing to sync.")
			return nil
		}
		output.Success("Synced %d operation(s)", res.Synced)
		if res.Skipped > 0 {
			output.Info("%d operation(s) waiting for retry backoff", res.Skipped)
		}
		if res.Failed > 0 {
			output.Warning("%d operation(s) failed and will be retried", res.Failed)
		}
		if res.Pruned > 0 {
			output.Info("Pruned %d old synced record(s)", res.Pruned)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
