package telemetry

import (
	"context"
	"fmt"
	"net/http"
)

// Datadog defaults.
const (
	DefaultDatadogSite    = "datadoghq.com"
	DefaultDatadogService = "ai-trust-control-plane"
	DefaultDatadogSource  = "trustplane"
)

// DatadogSink mirrors events to the Datadog logs intake and, for incidents
// and resolutions, to the events API.
type DatadogSink struct {
	cfg       SinkConfig
	client    *http.Client
	logsURL   string
	eventsURL string
}

// NewDatadogSink creates a Datadog sink. cfg.URL, when set, overrides the
// API host for both endpoints.
func NewDatadogSink(cfg SinkConfig) *DatadogSink {
	if cfg.Site == "" {
		cfg.Site = DefaultDatadogSite
	}
	if cfg.Service == "" {
		cfg.Service = DefaultDatadogService
	}
	if cfg.Source == "" {
		cfg.Source = DefaultDatadogSource
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}

	logsURL := fmt.Sprintf("https://http-intake.logs.%s/api/v2/logs", cfg.Site)
	eventsURL := fmt.Sprintf("https://api.%s/api/v1/events", cfg.Site)
	if cfg.URL != "" {
		logsURL = cfg.URL + "/api/v2/logs"
		eventsURL = cfg.URL + "/api/v1/events"
	}

	return &DatadogSink{
		cfg:       cfg,
		client:    &http.Client{Timeout: timeout},
		logsURL:   logsURL,
		eventsURL: eventsURL,
	}
}

func (d *DatadogSink) Name() string {
	return "datadog:" + d.cfg.Site
}

func (d *DatadogSink) Accepts(kind string) bool {
	return matches(d.cfg.Events, kind)
}

// Send posts a log line and, where relevant, an event. Without an API key
// nothing is sent and the result reports ErrNotConfigured.
func (d *DatadogSink) Send(ctx context.Context, event Event) Result {
	res := Result{Sink: d.Name()}
	if d.cfg.APIKey == "" {
		res.Err = fmt.Errorf("%w: datadog API key missing", ErrNotConfigured)
		return res
	}

	headers := map[string]string{"DD-API-KEY": d.cfg.APIKey}

	logBody, err := datadogLog(d.cfg, event)
	if err != nil {
		res.Err = fmt.Errorf("format log: %w", err)
		return res
	}
	if res.Status, err = post(ctx, d.client, d.logsURL, logBody, headers); err != nil {
		res.Err = fmt.Errorf("logs intake: %w", err)
		return res
	}

	eventBody, ok, err := datadogEvent(d.cfg, event)
	if err != nil {
		res.Err = fmt.Errorf("format event: %w", err)
		return res
	}
	if ok {
		if d.cfg.AppKey != "" {
			headers["DD-APPLICATION-KEY"] = d.cfg.AppKey
		}
		if res.Status, err = post(ctx, d.client, d.eventsURL, eventBody, headers); err != nil {
			res.Err = fmt.Errorf("events api: %w", err)
			return res
		}
	}

	res.OK = true
	return res
}
