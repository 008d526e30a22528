// Package inference sends probe prompts to an OpenAI-compatible chat
// completions endpoint and reports what the caller observed.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/neurorouter"

	"github.com/ppiankov/trustplane/internal/penalty"
)

// DefaultModel is reported when the config names none.
const DefaultModel = "gemini-2.0-flash"

// CostPer1KTokens is the flat estimate used for cost accounting.
const CostPer1KTokens = 0.0001

// ErrUpstream is wrapped for any non-2xx answer other than 429.
var ErrUpstream = errors.New("inference upstream error")

// Config holds the probe endpoint parameters.
type Config struct {
	APIURL    string        `yaml:"api_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Outcome is the result of one probe. Err is set for transport failures,
// rate limits (wrapping neurorouter.ErrRateLimited) and upstream errors.
type Outcome struct {
	Model      string
	StatusCode int
	Latency    time.Duration
	Text       string
	Tokens     int
	CostUSD    float64
	Err        error
}

// RateLimited reports whether the endpoint answered 429.
func (o Outcome) RateLimited() bool {
	return errors.Is(o.Err, neurorouter.ErrRateLimited)
}

// ErrorType is the telemetry error label, empty on success.
func (o Outcome) ErrorType() string {
	switch {
	case o.Err == nil:
		return ""
	case o.RateLimited():
		return "RateLimit"
	default:
		return "AI_Error"
	}
}

// Observation converts the outcome for the penalty rules.
func (o Outcome) Observation() penalty.Observation {
	return penalty.Observation{StatusCode: o.StatusCode, Latency: o.Latency, Model: o.Model}
}

// EstimateTokens approximates token usage as one token per four characters.
func EstimateTokens(prompt, text string) int {
	n := len(prompt) + len(text)
	return (n + 3) / 4
}

// EstimateCost converts a token count to USD.
func EstimateCost(tokens int) float64 {
	return float64(tokens) / 1000 * CostPer1KTokens
}

// Probe sends prompt once and measures latency. It never retries.
func Probe(ctx context.Context, cfg Config, prompt string) Outcome {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	out := Outcome{Model: cfg.Model}
	if cfg.APIURL == "" {
		out.Err = fmt.Errorf("inference endpoint not configured")
		return out
	}

	body, _ := json.Marshal(map[string]interface{}{
		"model": cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": cfg.MaxTokens,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		out.Err = fmt.Errorf("create request: %w", err)
		return out
	}
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: cfg.Timeout}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		out.Latency = time.Since(start)
		out.Err = fmt.Errorf("inference request failed: %w", err)
		return out
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	out.Latency = time.Since(start)
	out.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		out.Err = fmt.Errorf("%w: HTTP 429", neurorouter.ErrRateLimited)
		return out
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		out.Err = fmt.Errorf("%w: HTTP %d: %s", ErrUpstream, resp.StatusCode, truncate(strings.TrimSpace(string(respBody)), 200))
		return out
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || len(result.Choices) == 0 {
		out.Err = fmt.Errorf("%w: empty completion response", ErrUpstream)
		return out
	}

	out.Text = strings.TrimSpace(result.Choices[0].Message.Content)
	out.Tokens = EstimateTokens(prompt, out.Text)
	out.CostUSD = EstimateCost(out.Tokens)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
