package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNotConfigured is reported by sinks that lack credentials or a target.
var ErrNotConfigured = errors.New("telemetry sink not configured")

// Sink accepts events. Send never panics and never retries; failures come
// back in the Result.
type Sink interface {
	Name() string
	Accepts(kind string) bool
	Send(ctx context.Context, event Event) Result
}

// Result is the outcome of one send to one sink.
type Result struct {
	Sink   string `json:"sink"`
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Err    error  `json:"-"`
}

// Report aggregates the results of a dispatch. Pending is set when the
// sends were handed off to background goroutines.
type Report struct {
	Results []Result `json:"results,omitempty"`
	Pending bool     `json:"pending,omitempty"`
}

// OK reports whether every sink that received the event accepted it.
func (r Report) OK() bool {
	for _, res := range r.Results {
		if !res.OK {
			return false
		}
	}
	return true
}

// Failures returns the failed results.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK {
			out = append(out, res)
		}
	}
	return out
}

// String summarises the report for logs.
func (r Report) String() string {
	if r.Pending {
		return "telemetry: dispatched in background"
	}
	if len(r.Results) == 0 {
		return "telemetry: no sinks"
	}
	parts := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.OK {
			parts = append(parts, res.Sink+"=ok")
		} else {
			parts = append(parts, fmt.Sprintf("%s=failed(%v)", res.Sink, res.Err))
		}
	}
	return "telemetry: " + strings.Join(parts, " ")
}

// Dispatcher fans out events to sinks. Failures are logged and returned,
// never propagated as errors.
type Dispatcher struct {
	sinks []Sink
	warn  io.Writer
}

// NewDispatcher creates a Dispatcher. A nil writer logs to stderr.
func NewDispatcher(sinks []Sink, warn io.Writer) *Dispatcher {
	if warn == nil {
		warn = os.Stderr
	}
	return &Dispatcher{sinks: sinks, warn: warn}
}

// FromConfigs builds sinks from configuration. Unknown types are skipped with a warning.
func FromConfigs(cfgs []SinkConfig, warn io.Writer) *Dispatcher {
	if warn == nil {
		warn = os.Stderr
	}
	var sinks []Sink
	for _, c := range cfgs {
		switch strings.ToLower(c.Type) {
		case "datadog":
			sinks = append(sinks, NewDatadogSink(c))
		case "webhook", "":
			sinks = append(sinks, NewWebhookSink(c))
		default:
			fmt.Fprintf(warn, "telemetry: unknown sink type %q, skipped\n", c.Type)
		}
	}
	return NewDispatcher(sinks, warn)
}

// Len returns the number of sinks.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.sinks)
}

// Send delivers the event to every matching sink and waits for the results.
func (d *Dispatcher) Send(ctx context.Context, event Event) Report {
	var rep Report
	if d == nil {
		return rep
	}
	for _, s := range d.sinks {
		if !s.Accepts(event.Kind) {
			continue
		}
		res := s.Send(ctx, event)
		if !res.OK {
			fmt.Fprintf(d.warn, "telemetry: %s send failed: %v\n", res.Sink, res.Err)
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}

// Go delivers the event in background goroutines and returns immediately.
// Failures are only logged.
func (d *Dispatcher) Go(event Event) Report {
	if d == nil || len(d.sinks) == 0 {
		return Report{}
	}
	for _, s := range d.sinks {
		if !s.Accepts(event.Kind) {
			continue
		}
		go func(s Sink) {
			if res := s.Send(context.Background(), event); !res.OK {
				fmt.Fprintf(d.warn, "telemetry: %s send failed: %v\n", res.Sink, res.Err)
			}
		}(s)
	}
	return Report{Pending: true}
}

func matches(events []string, kind string) bool {
	if len(events) == 0 {
		return true
	}
	for _, e := range events {
		if e == kind || e == "*" {
			return true
		}
	}
	return false
}

// NopSink accepts everything and does nothing.
type NopSink struct{}

func (NopSink) Name() string        { return "nop" }
func (NopSink) Accepts(string) bool { return true }
func (NopSink) Send(context.Context, Event) Result {
	return Result{Sink: "nop", OK: true}
}
