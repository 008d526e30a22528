package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidIncident is wrapped by every Validate failure.
var ErrInvalidIncident = errors.New("invalid incident")

// Severity classifies how bad an incident is.
type Severity string

const (
	SevCritical Severity = "Critical"
	SevHigh     Severity = "High"
	SevMedium   Severity = "Medium"
	SevLow      Severity = "Low"
)

// SeverityRank maps severity to a comparable integer. Higher is worse.
var SeverityRank = map[Severity]int{
	SevLow:      0,
	SevMedium:   1,
	SevHigh:     2,
	SevCritical: 3,
}

// ParseSeverity accepts any casing of a known severity.
func ParseSeverity(s string) (Severity, error) {
	for sev := range SeverityRank {
		if strings.EqualFold(string(sev), strings.TrimSpace(s)) {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Status is the incident lifecycle state. Active -> Resolved is one-way.
type Status string

const (
	StatusActive   Status = "Active"
	StatusResolved Status = "Resolved"
)

// ParseStatus accepts any casing of a known status. Empty means Active.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active":
		return StatusActive, nil
	case "resolved":
		return StatusResolved, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// TrustState is the tier derived from the trust score.
type TrustState string

const (
	Healthy  TrustState = "Healthy"
	Degraded TrustState = "Degraded"
	Critical TrustState = "Critical"
)

// Forecast describes where the score is heading.
type Forecast string

const (
	Stable    Forecast = "Stable"
	Degrading Forecast = "Degrading"
)

// Incident is one trust-affecting event against the inference endpoint.
type Incident struct {
	ID              string   `json:"id" yaml:"id"`
	Title           string   `json:"title" yaml:"title"`
	Severity        Severity `json:"severity" yaml:"severity"`
	Status          Status   `json:"status" yaml:"status"`
	Timestamp       string   `json:"timestamp" yaml:"timestamp"`
	TrustImpact     int      `json:"trustImpact" yaml:"trust_impact"`
	Trigger         string   `json:"trigger" yaml:"trigger"`
	AffectedService string   `json:"affectedService" yaml:"affected_service"`
	MonitorName     string   `json:"monitorName" yaml:"monitor_name"`
	RootCause       string   `json:"rootCause" yaml:"root_cause"`
	ActionsTaken    []string `json:"actionsTaken,omitempty" yaml:"actions_taken,omitempty"`
}

// IsActive reports whether the incident still counts against the score.
func (i Incident) IsActive() bool {
	return i.Status == StatusActive
}

// Penalty is the score contribution: TrustImpact while Active, zero once Resolved.
func (i Incident) Penalty() int {
	if !i.IsActive() {
		return 0
	}
	return i.TrustImpact
}

// Validate checks caller-supplied fields before the incident enters a store.
func (i Incident) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("%w: id must not be empty", ErrInvalidIncident)
	}
	if i.TrustImpact < 0 {
		return fmt.Errorf("%w %s: trust impact must be non-negative, got %d", ErrInvalidIncident, i.ID, i.TrustImpact)
	}
	if _, ok := SeverityRank[i.Severity]; !ok {
		return fmt.Errorf("%w %s: unknown severity %q", ErrInvalidIncident, i.ID, i.Severity)
	}
	switch i.Status {
	case StatusActive, StatusResolved:
	default:
		return fmt.Errorf("%w %s: unknown status %q", ErrInvalidIncident, i.ID, i.Status)
	}
	return nil
}

// Clone returns a deep copy so callers never alias store internals.
func (i Incident) Clone() Incident {
	out := i
	if i.ActionsTaken != nil {
		out.ActionsTaken = append([]string(nil), i.ActionsTaken...)
	}
	return out
}
