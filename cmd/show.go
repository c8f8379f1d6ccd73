package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/db"
	"github.com/safedrain/sd/internal/gateway"
	"github.com/safedrain/sd/internal/models"
	"github.com/safedrain/sd/internal/output"
)

var showCmd = &cobra.Command{
	Use:     "show <report-id>",
	Short:   "Show a report",
	Long:    `Show a single report. Accepts offline_ IDs for queued reports.`,
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reportID := args[0]

		if models.IsOfflineID(reportID) {
			return showQueued(reportID)
		}

		gw, err := newGateway()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		doc, err := gw.Get(cmd.Context(), gateway.CollectionReports, reportID)
		if err != nil {
			output.Error("fetch report: %v", err)
			return err
		}
		if doc == nil {
			output.Error("report %s not found", reportID)
			return fmt.Errorf("report %s not found", reportID)
		}

		var r models.Report
		if err := doc.Decode(&r); err != nil {
			output.Error("decode report: %v", err)
			return err
		}
		r.ID = doc.ID

		if jsonMode {
			return output.JSON(&r)
		}
		fmt.Println(output.FormatReportLong(&r))
		return nil
	},
}

// showQueued renders a report that only exists in the local queue.
func showQueued(reportID string) error {
	store := openStoreOptional()
	if store == nil {
		return fmt.Errorf("local queue unavailable")
	}
	defer store.Close()

	opID, err := strconv.ParseInt(strings.TrimPrefix(reportID, models.OfflineIDPrefix), 10, 64)
	if err != nil {
		output.Error("invalid report ID %q", reportID)
		return err
	}
	op, err := store.GetOperation(opID)
	if err != nil {
		output.Error("read queue: %v", err)
		return err
	}
	if op == nil || op.Kind != db.OpCreateReport {
		output.Error("report %s not found in the queue", reportID)
		return fmt.Errorf("report %s not found", reportID)
	}
	if op.Synced && op.RemoteID != "" {
		output.Info("Report has synced as %s, use that ID instead.", op.RemoteID)
		return nil
	}

	decoded, err := op.DecodePayload()
	if err != nil {
		output.Error("read queued report: %v", err)
		return err
	}
	r := decoded.(*db.CreateReportPayload).Report
	r.ID = reportID

	if jsonMode {
		return output.JSON(&r)
	}
	fmt.Println(output.FormatReportLong(&r))
	return nil
}

func init() {
	rootCmd.AddCommand(showCmd)
}
