package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

const requestTimeout = 5 * time.Second

// WebhookSink posts events to an arbitrary HTTP endpoint.
type WebhookSink struct {
	cfg    SinkConfig
	client *http.Client
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(cfg SinkConfig) *WebhookSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	return &WebhookSink{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (w *WebhookSink) Name() string {
	return "webhook:" + w.cfg.URL
}

func (w *WebhookSink) Accepts(kind string) bool {
	return matches(w.cfg.Events, kind)
}

// Send posts the event once. There is no retry.
func (w *WebhookSink) Send(ctx context.Context, event Event) Result {
	res := Result{Sink: w.Name()}
	if w.cfg.URL == "" {
		res.Err = ErrNotConfigured
		return res
	}
	body, err := FormatPayload(w.cfg.Format, event)
	if err != nil {
		res.Err = fmt.Errorf("format payload: %w", err)
		return res
	}
	res.Status, res.Err = post(ctx, w.client, w.cfg.URL, body, w.cfg.Headers)
	res.OK = res.Err == nil
	return res
}

// post sends one JSON body and maps non-2xx responses to errors.
func post(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("rejected: HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
