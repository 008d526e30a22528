package telemetry

import "time"

// Event kinds. Sinks may filter on these.
const (
	KindScore      = "score_update"
	KindIncident   = "incident"
	KindResolution = "resolution"
	KindPolicy     = "policy"
	KindReset      = "reset"
	KindInference  = "inference"
)

// SinkConfig defines one telemetry destination.
type SinkConfig struct {
	Type    string            `yaml:"type"    json:"type"`   // "datadog", "webhook"
	URL     string            `yaml:"url"     json:"url"`    // webhook target
	Format  string            `yaml:"format"  json:"format"` // webhook: "generic", "slack"
	Events  []string          `yaml:"events"  json:"events"` // event kinds; empty means all
	Headers map[string]string `yaml:"headers" json:"headers"`

	// Datadog
	Site    string   `yaml:"site"     json:"site"`
	APIKey  string   `yaml:"api_key"  json:"-"`
	AppKey  string   `yaml:"app_key"  json:"-"`
	Service string   `yaml:"service"  json:"service"`
	Source  string   `yaml:"source"   json:"source"`
	Tags    []string `yaml:"tags"     json:"tags"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// IncidentDetails is the incident context carried by incident and
// resolution events.
type IncidentDetails struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Trigger   string `json:"trigger,omitempty"`
	RootCause string `json:"root_cause,omitempty"`
	Service   string `json:"service,omitempty"`
}

// Event is the flat record mirrored to telemetry backends.
type Event struct {
	Kind      string           `json:"kind"`
	Message   string           `json:"message"`
	Timestamp string           `json:"timestamp"`
	Score     int              `json:"trust_score"`
	State     string           `json:"trust_state"`
	LatencyMS *int64           `json:"latency_ms,omitempty"`
	CostUSD   *float64         `json:"cost_usd,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
	Model     string           `json:"model,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Incident  *IncidentDetails `json:"incident,omitempty"`
}

// Level is the log status the event is reported at.
func (e Event) Level() string {
	if e.ErrorType != "" {
		return "error"
	}
	return "info"
}
