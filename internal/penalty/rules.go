// Package penalty maps simulated inference failures to incidents.
package penalty

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/trustplane/internal/model"
)

// Penalty constants applied by the simulated inference rules.
const (
	RateLimitPenalty  = 30
	RateLimitSeverity = model.SevCritical

	LatencyPenalty   = 20
	LatencySeverity  = model.SevMedium
	LatencyThreshold = 8000 * time.Millisecond
)

// Observation is what a caller saw when dispatching one inference request.
type Observation struct {
	StatusCode int
	Latency    time.Duration
	Model      string
}

// RateLimited reports whether the endpoint answered with HTTP 429.
func (o Observation) RateLimited() bool {
	return o.StatusCode == http.StatusTooManyRequests
}

// Slow reports whether latency exceeded the SLO threshold.
func (o Observation) Slow() bool {
	return o.Latency > LatencyThreshold
}

// Rules builds incidents from observations. Clock and IDs are injectable.
type Rules struct {
	Now   func() time.Time
	NewID func(now time.Time) string
}

// Default uses the wall clock and INC-<millis>-<suffix> ids.
func Default() Rules {
	return Rules{Now: time.Now, NewID: NewIncidentID}
}

// NewIncidentID returns an id unique enough for a single session.
func NewIncidentID(now time.Time) string {
	return fmt.Sprintf("INC-%d-%s", now.UnixMilli(), uuid.NewString()[:5])
}

// Apply returns the incident an observation produces, if any. A rate limit
// takes precedence over latency; at most one incident is produced.
func (r Rules) Apply(obs Observation) (model.Incident, bool) {
	switch {
	case obs.RateLimited():
		return r.rateLimit(obs), true
	case obs.Slow():
		return r.latency(obs), true
	default:
		return model.Incident{}, false
	}
}

func (r Rules) rateLimit(obs Observation) model.Incident {
	now := r.Now()
	return model.Incident{
		ID:              r.NewID(now),
		Title:           "Rate Limit Exceeded",
		Severity:        RateLimitSeverity,
		Status:          model.StatusActive,
		Timestamp:       now.Format("15:04:05"),
		TrustImpact:     RateLimitPenalty,
		Trigger:         fmt.Sprintf("API Quota > 100%% for %s", obs.Model),
		AffectedService: obs.Model,
		MonitorName:     "[Critical] API Rate Limit",
		RootCause:       fmt.Sprintf("Hard quota reached on %s API key.", obs.Model),
		ActionsTaken:    []string{"Autoscaler maxed out", "On-call engineer Paged"},
	}
}

func (r Rules) latency(obs Observation) model.Incident {
	now := r.Now()
	return model.Incident{
		ID:              r.NewID(now),
		Title:           "Latency SLO Violation",
		Severity:        LatencySeverity,
		Status:          model.StatusActive,
		Timestamp:       now.Format("15:04:05"),
		TrustImpact:     LatencyPenalty,
		Trigger:         fmt.Sprintf("p95 Latency > %ds (Actual: %dms)", int(LatencyThreshold/time.Second), obs.Latency.Milliseconds()),
		AffectedService: obs.Model,
		MonitorName:     "[Warn] LLM Response Time",
		RootCause:       "Model cold start or high complexity prompt.",
		ActionsTaken:    []string{"Logged to telemetry traces", "Flagged for review"},
	}
}
