package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/alert"
	"github.com/safedrain/sd/internal/gateway"
	"github.com/safedrain/sd/internal/output"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch drains and raise alerts on status changes",
	Long: `Poll the drains collection and raise an alert whenever a drain
moves into warning or critical. Runs until interrupted.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = alert.DefaultPollInterval
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		watcher := alert.NewWatcher(gw, nil)
		output.Info("Watching drains every %s, Ctrl-C to stop", interval)

		unsubscribe := gw.Subscribe(ctx, gateway.CollectionDrains, gateway.Query{}, interval, func(docs []gateway.Document) {
			for _, a := range watcher.HandleSnapshot(ctx, docs) {
				if jsonMode {
					output.JSON(a)
					continue
				}
				output.Warning("%s %s", output.FormatDrainStatus(a.Status), a.Message)
			}
		})
		defer unsubscribe()

		<-ctx.Done()
		output.Info("Stopped.")
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationP("interval", "n", 30*time.Second, "poll interval")
	rootCmd.AddCommand(watchCmd)
}
