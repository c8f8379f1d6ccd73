// Package output provides styled terminal output helpers (success, error,
// warning, report formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/safedrain/sd/internal/models"
)

var (
	// Styles
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	offlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	severityStyles = map[models.Severity]lipgloss.Style{
		models.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		models.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
	statusStyles = map[models.ReportStatus]lipgloss.Style{
		models.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.StatusResolved:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.StatusRejected:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}
	drainStyles = map[models.DrainStatus]lipgloss.Style{
		models.DrainNormal:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.DrainWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.DrainCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		models.DrainInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeOffline      = "offline"
	ErrCodeStorage      = "storage_error"
	ErrCodeServer       = "server_error"
	ErrCodeSyncBusy     = "sync_in_progress"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// FormatSeverity formats a severity with color
func FormatSeverity(s models.Severity) string {
	style, ok := severityStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// FormatStatus formats a report status with color
func FormatStatus(s models.ReportStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// FormatDrainStatus formats a drain status with color
func FormatDrainStatus(s models.DrainStatus) string {
	style, ok := drainStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

// FormatReportShort formats a report on one line.
func FormatReportShort(r *models.Report) string {
	var parts []string
	parts = append(parts, titleStyle.Render(r.ID))
	parts = append(parts, FormatSeverity(r.Severity))
	parts = append(parts, r.Title)
	if models.IsOfflineID(r.ID) {
		parts = append(parts, offlineStyle.Render("(pending sync)"))
	}
	parts = append(parts, FormatStatus(r.Status))
	return strings.Join(parts, "  ")
}

// FormatReportLong formats a full report view.
func FormatReportLong(r *models.Report) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", r.ID, r.Title)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Status: %s\n", FormatStatus(r.Status)))
	sb.WriteString(fmt.Sprintf("Severity: %s\n", FormatSeverity(r.Severity)))
	if r.Category != "" {
		sb.WriteString(fmt.Sprintf("Category: %s\n", r.Category))
	}
	if r.Description != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", r.Description))
	}
	if r.Location.Latitude != 0 || r.Location.Longitude != 0 {
		sb.WriteString(fmt.Sprintf("\nLocation: %.6f, %.6f", r.Location.Latitude, r.Location.Longitude))
		if r.Location.Address != "" {
			sb.WriteString(" (" + r.Location.Address + ")")
		}
		sb.WriteString("\n")
	}
	if len(r.Photos) > 0 {
		sb.WriteString("\nPhotos:\n")
		for _, url := range r.Photos {
			sb.WriteString("  " + url + "\n")
		}
	}
	if r.RejectionReason != "" {
		sb.WriteString(fmt.Sprintf("\nRejected: %s\n", r.RejectionReason))
	}
	sb.WriteString(subtleStyle.Render(fmt.Sprintf("\nReported %s", FormatRelativeTime(r.CreatedAt))))
	if models.IsOfflineID(r.ID) {
		sb.WriteString("\n" + offlineStyle.Render("Not yet synced to the server."))
	}
	return sb.String()
}

// FormatOperation formats a queued operation for 'sd queue'.
func FormatOperation(op OperationView) string {
	var parts []string
	parts = append(parts, titleStyle.Render(fmt.Sprintf("#%d", op.ID)))
	parts = append(parts, op.Kind)
	parts = append(parts, op.Summary)
	parts = append(parts, subtleStyle.Render(FormatRelativeTime(op.EnqueuedAt)))
	if op.Dead {
		parts = append(parts, errorStyle.Render("[dead]"))
	} else if op.Attempts > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("[%d attempts]", op.Attempts)))
	}
	if op.LastError != "" {
		parts = append(parts, subtleStyle.Render(op.LastError))
	}
	return strings.Join(parts, "  ")
}

// OperationView is the queue row shape the CLI renders.
type OperationView struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Summary    string    `json:"summary"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
	Dead       bool      `json:"dead"`
}

// FormatRelativeTime renders a timestamp as a human-friendly age.
func FormatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
