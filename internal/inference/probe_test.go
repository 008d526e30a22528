package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppiankov/neurorouter"
)

func completion(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "test-model" {
			http.Error(w, "wrong model", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": text}},
			},
		})
	}
}

func TestProbeSuccess(t *testing.T) {
	srv := httptest.NewServer(completion("Paris"))
	defer srv.Close()

	out := Probe(context.Background(), Config{APIURL: srv.URL, Model: "test-model"}, "What is the capital of France?")
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Text != "Paris" || out.StatusCode != http.StatusOK {
		t.Fatalf("unexpected outcome %+v", out)
	}
	// 30 + 5 chars = 35, ceil(35/4) = 9
	if out.Tokens != 9 {
		t.Errorf("expected 9 tokens, got %d", out.Tokens)
	}
	if out.ErrorType() != "" {
		t.Errorf("expected no error type, got %q", out.ErrorType())
	}
	if out.Latency <= 0 {
		t.Error("expected measured latency")
	}
}

func TestProbeRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	out := Probe(context.Background(), Config{APIURL: srv.URL}, "hi")
	if !errors.Is(out.Err, neurorouter.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", out.Err)
	}
	if !out.RateLimited() || out.ErrorType() != "RateLimit" {
		t.Errorf("expected RateLimit classification, got %q", out.ErrorType())
	}
	if !out.Observation().RateLimited() {
		t.Error("observation should carry the 429")
	}
	if out.Model != DefaultModel {
		t.Errorf("expected default model, got %s", out.Model)
	}
}

func TestProbeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	out := Probe(context.Background(), Config{APIURL: srv.URL}, "hi")
	if !errors.Is(out.Err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", out.Err)
	}
	if out.ErrorType() != "AI_Error" {
		t.Errorf("expected AI_Error, got %q", out.ErrorType())
	}
}

func TestProbeEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	out := Probe(context.Background(), Config{APIURL: srv.URL}, "hi")
	if !errors.Is(out.Err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", out.Err)
	}
}

func TestProbeWithoutEndpoint(t *testing.T) {
	out := Probe(context.Background(), Config{}, "hi")
	if out.Err == nil {
		t.Fatal("expected error without endpoint")
	}
}

func TestEstimates(t *testing.T) {
	if EstimateTokens("", "") != 0 {
		t.Error("expected 0 tokens for empty input")
	}
	if EstimateTokens("abcd", "") != 1 || EstimateTokens("abcde", "") != 2 {
		t.Error("expected ceil division by 4")
	}
	if got := EstimateCost(2000); got != 0.0002 {
		t.Errorf("expected 0.0002, got %v", got)
	}
}
