package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/cliconfig"
	"github.com/safedrain/sd/internal/dateparse"
	"github.com/safedrain/sd/internal/db"
	"github.com/safedrain/sd/internal/gateway"
	"github.com/safedrain/sd/internal/models"
	"github.com/safedrain/sd/internal/output"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List reports",
	Long: `List reports from the server, newest first, merged with any
reports still waiting in the local queue.`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		var since time.Time
		if v, _ := cmd.Flags().GetString("since"); v != "" {
			cutoff, err := dateparse.ParseSince(v)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			since = cutoff
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

		var reports []*models.Report

		if mon.IsOnline() {
			q := gateway.Query{OrderBy: "createdAt", Descending: true}
			if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
				q.Limit = limit
			}
			if status, _ := cmd.Flags().GetString("status"); status != "" {
				q.Filters = append(q.Filters, gateway.Filter{Field: "status", Value: status})
			}
			if mine, _ := cmd.Flags().GetBool("mine"); mine {
				q.Filters = append(q.Filters, gateway.Filter{Field: "userId", Value: cliconfig.UserID()})
			}
			docs, err := gw.List(cmd.Context(), gateway.CollectionReports, q)
			if err != nil {
				output.Error("list reports: %v", err)
				return err
			}
			for _, doc := range docs {
				var r models.Report
				if err := doc.Decode(&r); err != nil {
					continue
				}
				r.ID = doc.ID
				reports = append(reports, &r)
			}
		} else {
			output.Warning("offline, showing queued reports only")
		}

		// Queued creates surface as offline_ placeholders at the top.
		if store != nil {
			pending, err := pendingReports(store)
			if err != nil {
				output.Error("read queue: %v", err)
				return err
			}
			reports = append(pending, reports...)
		}

		if !since.IsZero() {
			kept := reports[:0]
			for _, r := range reports {
				if !r.CreatedAt.Before(since) {
					kept = append(kept, r)
				}
			}
			reports = kept
		}

		if jsonMode {
			return output.JSON(reports)
		}
		if len(reports) == 0 {
			output.Info("No reports found.")
			return nil
		}
		for _, r := range reports {
			fmt.Println(output.FormatReportShort(r))
		}
		return nil
	},
}

// pendingReports materializes unsynced create operations as reports with
// placeholder IDs.
func pendingReports(store *db.Store) ([]*models.Report, error) {
	ops, err := store.ListUnsynced()
	if err != nil {
		return nil, err
	}
	var reports []*models.Report
	for _, op := range ops {
		if op.Kind != db.OpCreateReport {
			continue
		}
		decoded, err := op.DecodePayload()
		if err != nil {
			continue
		}
		p := decoded.(*db.CreateReportPayload)
		r := p.Report
		r.ID = fmt.Sprintf("%s%d", models.OfflineIDPrefix, op.ID)
		reports = append(reports, &r)
	}
	return reports, nil
}

func init() {
	listCmd.Flags().Int("limit", 0, "maximum number of reports")
	listCmd.Flags().String("status", "", "filter by status")
	listCmd.Flags().Bool("mine", false, "only my reports")
	listCmd.Flags().String("since", "", "only reports created since (2026-03-01, 7d, yesterday)")
	rootCmd.AddCommand(listCmd)
}
