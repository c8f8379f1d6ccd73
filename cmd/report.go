package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/safedrain/sd/internal/cliconfig"
	"github.com/safedrain/sd/internal/models"
	"github.com/safedrain/sd/internal/output"
	"github.com/safedrain/sd/internal/submit"
)

var errTitleRequired = errors.New("title is required")

var reportCmd = &cobra.Command{
	Use:     "report [title]",
	Aliases: []string{"submit"},
	Short:   "Submit a new drain issue report",
	Long: `Submit a drain issue report with photos and location.

When offline, the report is queued locally and synced later. Use
--interactive to fill the fields in a form instead of flags.`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := submit.Fields{UserID: cliconfig.UserID()}

		fields.Title, _ = cmd.Flags().GetString("title")
		if len(args) > 0 {
			fields.Title = args[0]
		}
		fields.Description, _ = cmd.Flags().GetString("description")
		fields.Category, _ = cmd.Flags().GetString("category")
		fields.Location.Address, _ = cmd.Flags().GetString("address")
		fields.Location.Latitude, _ = cmd.Flags().GetFloat64("lat")
		fields.Location.Longitude, _ = cmd.Flags().GetFloat64("lng")

		severityFlag, _ := cmd.Flags().GetString("severity")
		photoPaths, _ := cmd.Flags().GetStringArray("photo")

		if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
			if err := runReportForm(&fields, &severityFlag); err != nil {
				return err
			}
		}

		if fields.Title == "" {
			output.Error("%v", errTitleRequired)
			return errTitleRequired
		}
		severity, err := models.ParseSeverity(severityFlag)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		fields.Severity = severity

		photos, err := loadPhotoFiles(photoPaths)
		if err != nil {
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
		orch := buildOrchestrator(gw, store, probeMonitor(gw))

		res, err := orch.Submit(cmd.Context(), fields, photos)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonMode {
			return output.JSON(res)
		}
		if res.Offline {
			output.Warning("Offline: report queued as %s and will sync automatically", res.ID)
		} else {
			output.Success("Report %s submitted", res.ID)
		}
		return nil
	},
}

// runReportForm fills missing fields via a huh form.
func runReportForm(fields *submit.Fields, severity *string) error {
	if *severity == "" {
		*severity = string(models.SeverityMedium)
	}
	var lat, lng string
	if fields.Location.Latitude != 0 {
		lat = strconv.FormatFloat(fields.Location.Latitude, 'f', -1, 64)
	}
	if fields.Location.Longitude != 0 {
		lng = strconv.FormatFloat(fields.Location.Longitude, 'f', -1, 64)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&fields.Title).
				Placeholder("Blocked drain on 5th Ave...").
				Validate(func(s string) error {
					if s == "" {
						return errTitleRequired
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				Value(&fields.Description),
			huh.NewSelect[string]().
				Title("Severity").
				Options(
					huh.NewOption("Low", string(models.SeverityLow)),
					huh.NewOption("Medium", string(models.SeverityMedium)),
					huh.NewOption("High", string(models.SeverityHigh)),
					huh.NewOption("Critical", string(models.SeverityCritical)),
				).
				Value(severity),
			huh.NewInput().
				Title("Address").
				Value(&fields.Location.Address),
			huh.NewInput().
				Title("Latitude").
				Value(&lat),
			huh.NewInput().
				Title("Longitude").
				Value(&lng),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("report form: %w", err)
	}

	if lat != "" {
		v, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q", lat)
		}
		fields.Location.Latitude = v
	}
	if lng != "" {
		v, err := strconv.ParseFloat(lng, 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q", lng)
		}
		fields.Location.Longitude = v
	}
	return nil
}

func init() {
	reportCmd.Flags().StringP("title", "t", "", "report title")
	reportCmd.Flags().StringP("description", "d", "", "report description")
	reportCmd.Flags().StringP("severity", "s", "medium", "severity (low, medium, high, critical)")
	reportCmd.Flags().String("category", "", "issue category")
	reportCmd.Flags().Float64("lat", 0, "latitude")
	reportCmd.Flags().Float64("lng", 0, "longitude")
	reportCmd.Flags().String("address", "", "street address")
	reportCmd.Flags().StringArrayP("photo", "p", nil, "photo file (repeatable)")
	reportCmd.Flags().BoolP("interactive", "i", false, "fill the report in a form")
	rootCmd.AddCommand(reportCmd)
}
