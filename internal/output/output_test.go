package output

import (
	"strings"
	"testing"
	"time"

	"github.com/safedrain/sd/internal/models"
)

func TestFormatRelativeTime(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tc := range tests {
		got := FormatRelativeTime(time.Now().Add(-tc.age))
		if got != tc.want {
			t.Errorf("FormatRelativeTime(-%v) = %q, want %q", tc.age, got, tc.want)
		}
	}

	if got := FormatRelativeTime(time.Time{}); got != "unknown" {
		t.Errorf("zero time: %q", got)
	}
}

func TestFormatReportShort(t *testing.T) {
	r := &models.Report{
		ID:       "r-12",
		Title:    "blocked drain",
		Severity: models.SeverityHigh,
		Status:   models.StatusPending,
	}
	got := FormatReportShort(r)
	for _, want := range []string{"r-12", "blocked drain", "high", "pending"} {
		if !strings.Contains(got, want) {
			t.Errorf("short format missing %q: %s", want, got)
		}
	}
	if strings.Contains(got, "pending sync") {
		t.Error("synced report marked as pending sync")
	}
}

func TestFormatReportShortOffline(t *testing.T) {
	r := &models.Report{
		ID:       "offline_3",
		Title:    "cracked grate",
		Severity: models.SeverityLow,
		Status:   models.StatusPending,
	}
	if got := FormatReportShort(r); !strings.Contains(got, "pending sync") {
		t.Errorf("offline report not marked: %s", got)
	}
}

func TestFormatReportLong(t *testing.T) {
	r := &models.Report{
		ID:          "r-7",
		Title:       "flooded underpass",
		Description: "water over the curb",
		Severity:    models.SeverityCritical,
		Status:      models.StatusInProgress,
		Location:    models.Location{Latitude: 40.1, Longitude: -75.2, Address: "5th and Main"},
		Photos:      []string{"https://blobs.example/a.jpg"},
		CreatedAt:   time.Now().Add(-2 * time.Hour),
	}
	got := FormatReportLong(r)
	for _, want := range []string{"flooded underpass", "water over the curb", "5th and Main", "a.jpg", "2h ago"} {
		if !strings.Contains(got, want) {
			t.Errorf("long format missing %q", want)
		}
	}
}

func TestFormatOperation(t *testing.T) {
	op := OperationView{
		ID:         4,
		Kind:       "create_report",
		Summary:    "standing water",
		EnqueuedAt: time.Now().Add(-10 * time.Minute),
		Attempts:   2,
		LastError:  "server unavailable",
	}
	got := FormatOperation(op)
	for _, want := range []string{"#4", "create_report", "standing water", "2 attempts", "server unavailable"} {
		if !strings.Contains(got, want) {
			t.Errorf("operation format missing %q: %s", want, got)
		}
	}

	op.Dead = true
	if got := FormatOperation(op); !strings.Contains(got, "[dead]") {
		t.Errorf("dead operation not marked: %s", got)
	}
}
