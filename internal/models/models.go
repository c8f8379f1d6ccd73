package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity represents report severity, ordered low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for comparison and sorting.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordering rank of a severity (-1 for unknown values).
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// ParseSeverity converts user input to a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("invalid severity %q (want low, medium, high or critical)", s)
	}
	return sev, nil
}

// ReportStatus represents the report lifecycle state.
type ReportStatus string

const (
	StatusPending    ReportStatus = "pending"
	StatusInProgress ReportStatus = "in_progress"
	StatusResolved   ReportStatus = "resolved"
	StatusRejected   ReportStatus = "rejected"
)

// validTransitions encodes pending -> in_progress -> resolved, with rejected
// reachable from any non-terminal state. Resolved and rejected are terminal.
var validTransitions = map[ReportStatus][]ReportStatus{
	StatusPending:    {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusResolved, StatusRejected},
}

// ValidTransition reports whether a status change from -> to is allowed.
func ValidTransition(from, to ReportStatus) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Location is a GPS fix attached to a report or drain.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Address   string   `json:"address,omitempty"`
}

// OfflineIDPrefix marks report IDs that only exist in the local queue.
const OfflineIDPrefix = "offline_"

// IsOfflineID reports whether id is a synthetic local identifier for a
// not-yet-synced report.
func IsOfflineID(id string) bool {
	return strings.HasPrefix(id, OfflineIDPrefix)
}

// Report is a user-submitted drain issue record. Once committed, the remote
// document store owns it; before that it lives only in the pending queue.
type Report struct {
	ID              string       `json:"id,omitempty"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	Severity        Severity     `json:"severity"`
	Status          ReportStatus `json:"status"`
	Location        Location     `json:"location"`
	Photos          []string     `json:"photos"`
	UserID          string       `json:"userId"`
	Category        string       `json:"category,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	ResolvedAt      *time.Time   `json:"resolvedAt,omitempty"`
	ResolvedBy      string       `json:"resolvedBy,omitempty"`
	RejectionReason string       `json:"rejectionReason,omitempty"`
}

// DrainStatus represents the operational state of a monitored drain.
type DrainStatus string

const (
	DrainNormal   DrainStatus = "normal"
	DrainWarning  DrainStatus = "warning"
	DrainCritical DrainStatus = "critical"
	DrainInactive DrainStatus = "inactive"
)

// Alerting reports whether the status should raise an alert.
func (s DrainStatus) Alerting() bool {
	return s == DrainWarning || s == DrainCritical
}

// Drain is a monitored physical drain with its latest telemetry.
type Drain struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name"`
	Status     DrainStatus `json:"status"`
	Location   Location    `json:"location"`
	WaterLevel float64     `json:"waterLevel"`
	FlowRate   float64     `json:"flowRate,omitempty"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Reading is a single sensor measurement for a drain.
type Reading struct {
	ID         string    `json:"id,omitempty"`
	DrainID    string    `json:"drainId"`
	WaterLevel float64   `json:"waterLevel"`
	FlowRate   float64   `json:"flowRate,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Alert is a notification-center entry raised when a drain degrades.
type Alert struct {
	ID        string      `json:"id,omitempty"`
	DrainID   string      `json:"drainId"`
	DrainName string      `json:"drainName"`
	Status    DrainStatus `json:"status"`
	Message   string      `json:"message"`
	Read      bool        `json:"read"`
	CreatedAt time.Time   `json:"createdAt"`
}
