package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/db"
	"github.com/safedrain/sd/internal/output"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	Short:   "List queued operations",
	Long:    `List pending and dead operations in the local sync queue.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStoreOptional()
		if store == nil {
			return fmt.Errorf("local queue unavailable")
		}
		defer store.Close()

		pending, err := store.ListUnsynced()
		if err != nil {
			output.Error("read queue: %v", err)
			return err
		}
		dead, err := store.ListDead()
		if err != nil {
			output.Error("read queue: %v", err)
			return err
		}

		views := make([]output.OperationView, 0, len(pending)+len(dead))
		for _, op := range append(pending, dead...) {
			views = append(views, operationView(op))
		}

		if jsonMode {
			return output.JSON(views)
		}
		if len(views) == 0 {
			output.Info("Queue is empty.")
			return nil
		}
		for _, v := range views {
			fmt.Println(output.FormatOperation(v))
		}
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Requeue dead operations and clear retry backoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStoreOptional()
		if store == nil {
			return fmt.Errorf("local queue unavailable")
		}
		defer store.Close()

		revived, err := store.RetryDead()
		if err != nil {
			output.Error("retry dead: %v", err)
			return err
		}

		// Also clear backoff on live operations so the next sync tries
		// everything immediately.
		pending, err := store.ListUnsynced()
		if err != nil {
			output.Error("read queue: %v", err)
			return err
		}
		for _, op := range pending {
			if op.NextAttemptAt == nil {
				continue
			}
			if err := store.ClearBackoff(op.ID); err != nil {
				output.Error("clear backoff for #%d: %v", op.ID, err)
				return err
			}
		}

		if jsonMode {
			return output.JSON(map[string]int64{"revived": revived})
		}
		if revived > 0 {
			output.Success("Requeued %d dead operation(s)", revived)
		} else {
			output.Info("No dead operations.")
		}
		return nil
	},
}

var queueDropCmd = &cobra.Command{
	Use:   "drop <operation-id>",
	Short: "Delete a queued operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			output.Error("invalid operation ID %q", args[0])
			return err
		}

		store := openStoreOptional()
		if store == nil {
			return fmt.Errorf("local queue unavailable")
		}
		defer store.Close()

		if err := store.DeleteOperation(id); err != nil {
			output.Error("delete operation: %v", err)
			return err
		}
		output.Success("Dropped operation #%d", id)
		return nil
	},
}

func operationView(op db.PendingOperation) output.OperationView {
	return output.OperationView{
		ID:         op.ID,
		Kind:       string(op.Kind),
		Summary:    opSummary(op),
		EnqueuedAt: op.EnqueuedAt,
		Attempts:   op.Attempts,
		LastError:  op.LastError,
		Dead:       op.Dead,
	}
}

func init() {
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queueDropCmd)
	rootCmd.AddCommand(queueCmd)
}
