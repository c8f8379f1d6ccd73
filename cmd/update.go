package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/gateway"
	"github.com/safedrain/sd/internal/models"
	"github.com/safedrain/sd/internal/output"
)

var updateCmd = &cobra.Command{
	Use:   "update <report-id>",
	Short: "Update an existing report",
	Long: `Update a report's status, severity, or description.

Updates to reports that only exist locally (offline_ IDs) are queued and
applied after the report itself syncs.`,
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reportID := args[0]

		patch := map[string]any{}
		if v, _ := cmd.Flags().GetString("status"); v != "" {
			status := models.ReportStatus(v)
			switch status {
			case models.StatusPending, models.StatusInProgress, models.StatusResolved, models.StatusRejected:
			default:
				err := fmt.Errorf("invalid status %q", v)
				output.Error("%v", err)
				return err
			}
			patch["status"] = string(status)
		}
		if v, _ := cmd.Flags().GetString("severity"); v != "" {
			severity, err := models.ParseSeverity(v)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			patch["severity"] = string(severity)
		}
		if v, _ := cmd.Flags().GetString("description"); v != "" {
			patch["description"] = v
		}
		if v, _ := cmd.Flags().GetString("reason"); v != "" {
			patch["rejectionReason"] = v
		}
		if len(patch) == 0 {
			err := fmt.Errorf("nothing to update, pass --status, --severity, or --description")
			output.Error("%v", err)
			return err
		}

		gw, err := newGateway()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		store := openStoreOptional()
		if store != nil {
			defer store.Close()
		}
		mon := probeMonitor(gw)

		// Check the status transition against the current report when we
		// can actually fetch it.
		if next, ok := patch["status"].(string); ok && mon.IsOnline() && !models.IsOfflineID(reportID) {
			doc, err := gw.Get(cmd.Context(), gateway.CollectionReports, reportID)
			if err != nil {
				output.Error("fetch report: %v", err)
				return err
			}
			if doc != nil {
				var current models.Report
				if err := doc.Decode(&current); err == nil {
					if !models.ValidTransition(current.Status, models.ReportStatus(next)) {
						err := fmt.Errorf("cannot move report from %s to %s", current.Status, next)
						output.Error("%v", err)
						return err
					}
				}
			}
		}

		orch := buildOrchestrator(gw, store, mon)
		res, err := orch.Update(cmd.Context(), reportID, patch)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonMode {
			return output.JSON(res)
		}
		if res.Offline {
			output.Warning("Update to %s queued and will sync automatically", res.ID)
		} else {
			output.Success("Report %s updated", res.ID)
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().String("status", "", "new status (pending, in_progress, resolved, rejected)")
	updateCmd.Flags().StringP("severity", "s", "", "new severity")
	updateCmd.Flags().StringP("description", "d", "", "new description")
	updateCmd.Flags().String("reason", "", "rejection reason")
	rootCmd.AddCommand(updateCmd)
}
