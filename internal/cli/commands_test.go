package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/trustplane/internal/controlplane"
	"github.com/ppiankov/trustplane/internal/identity"
	"github.com/ppiankov/trustplane/internal/model"
	"github.com/ppiankov/trustplane/internal/server"
)

type testEnv struct {
	dir     string
	config  string
	journal string
}

func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("DD_API_KEY", "")
	t.Setenv("DATADOG_API_KEY", "")
	t.Setenv("TRUSTPLANE_PIN", "")
	t.Setenv("TRUSTPLANE_INFERENCE_URL", "")

	te := testEnv{
		dir:     dir,
		config:  filepath.Join(dir, "config.yaml"),
		journal: filepath.Join(dir, "audit.jsonl"),
	}
	content := fmt.Sprintf("state:\n  backend: file\n  path: %s\njournal: %s\npin: \"4242\"\n%s",
		filepath.Join(dir, "state.json"), te.journal, extra)
	require.NoError(t, os.WriteFile(te.config, []byte(content), 0o644))
	return te
}

func resetFlags() {
	configPath = ""
	statusRemote, statusJSON = "", false
	checkRemote = ""
	incidentID, incidentTitle, incidentSeverity = "", "", string(model.SevMedium)
	incidentImpact = 10
	incidentTrigger, incidentService, incidentMonitor, incidentRootCause = "Manual report", "inference-api", "", ""
	incidentActions = nil
	simulateLatency = 9500 * time.Millisecond
	probePrompt = "Reply with OK."
	resetYes = false
	rolePIN = ""
	auditJSON, auditLines = false, 0
}

// run executes the root command with args against the env's config.
func (te testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	resetFlags()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", te.config}, args...))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (te testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := te.run(t, args...)
	require.NoError(t, err, "args=%v stderr=%s", args, errOut)
	return out
}

func TestVersionPrintsJSON(t *testing.T) {
	te := newTestEnv(t, "")
	out := te.mustRun(t, "version")

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Equal(t, "trustplane", info["name"])
	require.Equal(t, version, info["version"])
}

func TestIncidentLifecycleScoreProgression(t *testing.T) {
	te := newTestEnv(t, "")

	out := te.mustRun(t, "incident", "add", "--id", "INC-1", "--title", "Rate Limit Exceeded",
		"--severity", "critical", "--impact", "30", "--trigger", "429 Too Many Requests")
	require.Contains(t, out, "Incident Detected: ID: INC-1 | Trigger: 429 Too Many Requests")
	require.Contains(t, out, "Trust Score:  70 (Degraded)")

	out = te.mustRun(t, "incident", "add", "--id", "INC-2", "--title", "Latency SLO Violation",
		"--severity", "medium", "--impact", "20")
	require.Contains(t, out, "50 (Critical)")

	out = te.mustRun(t, "status")
	require.Contains(t, out, "50 (Critical)  forecast Degrading")
	require.Contains(t, out, "2 active / 2 total")
	require.Contains(t, out, "INC-2")

	out = te.mustRun(t, "incident", "resolve", "INC-1")
	require.Contains(t, out, "Incident Resolved: ID: INC-1 resolved by SRE.")
	require.Contains(t, out, "80 (Degraded)")

	out = te.mustRun(t, "incident", "resolve", "INC-1")
	require.Contains(t, out, "INC-1 is already resolved.")

	out = te.mustRun(t, "incident", "resolve", "INC-2")
	require.Contains(t, out, "100 (Healthy)  forecast Stable")

	out = te.mustRun(t, "incident", "list")
	require.Less(t, strings.Index(out, "INC-2"), strings.Index(out, "INC-1"), "newest first")
}

func TestIncidentAddRejectsDuplicatesAndBadInput(t *testing.T) {
	te := newTestEnv(t, "")
	te.mustRun(t, "incident", "add", "--id", "INC-1", "--title", "first")

	_, _, err := te.run(t, "incident", "add", "--id", "INC-1", "--title", "again")
	require.Error(t, err)

	_, _, err = te.run(t, "incident", "add", "--id", "INC-3", "--title", "bad", "--severity", "catastrophic")
	require.Error(t, err)

	_, _, err = te.run(t, "incident", "add", "--id", "INC-4", "--title", "bad", "--impact", "-5")
	require.ErrorIs(t, err, model.ErrInvalidIncident)

	_, _, err = te.run(t, "incident", "resolve", "INC-404")
	require.Error(t, err)
}

func TestCheckDeniesBelowCriticalWhenBlocking(t *testing.T) {
	te := newTestEnv(t, "")
	te.mustRun(t, "incident", "add", "--id", "INC-1", "--title", "outage", "--impact", "45")

	out := te.mustRun(t, "check")
	require.Contains(t, out, "ALLOW score 55: low-trust blocking disabled")

	out = te.mustRun(t, "policy", "toggle", "blockLowTrust")
	require.Contains(t, out, "Policy Change: Updated blockLowTrust to true")

	out, _, err := te.run(t, "check")
	require.ErrorIs(t, err, errRequestDenied)
	require.Contains(t, out, "DENY score 55")

	_, _, err = te.run(t, "simulate", "rate-limit")
	require.ErrorIs(t, err, errRequestDenied)

	out = te.mustRun(t, "audit", "list")
	require.Contains(t, out, "Request Blocked")

	out = te.mustRun(t, "status")
	require.Contains(t, out, "55 (Critical)", "blocked requests add no incident")

	out = te.mustRun(t, "policy", "show")
	require.Contains(t, out, "blockLowTrust  true")
	require.Contains(t, out, "requireMFA     true")

	_, _, err = te.run(t, "policy", "toggle", "killSwitch")
	require.Error(t, err)
}

func TestResetRequiresConfirmation(t *testing.T) {
	te := newTestEnv(t, "")
	te.mustRun(t, "incident", "add", "--id", "INC-1", "--title", "outage", "--impact", "30")
	te.mustRun(t, "policy", "toggle", "blockLowTrust")

	_, _, err := te.run(t, "reset")
	require.ErrorIs(t, err, controlplane.ErrNotConfirmed)

	out := te.mustRun(t, "reset", "--yes")
	require.Contains(t, out, "System Reset: Demo state cleared.")
	require.Contains(t, out, "100 (Healthy)")

	out = te.mustRun(t, "audit", "list")
	require.Contains(t, out, "Summary: 1 entries | 1 system reset")

	out = te.mustRun(t, "policy", "show")
	require.Contains(t, out, "blockLowTrust  false")
}

func TestRoleBoundary(t *testing.T) {
	te := newTestEnv(t, "")
	te.mustRun(t, "incident", "add", "--id", "INC-1", "--title", "outage", "--impact", "30")

	out := te.mustRun(t, "role", "auditor")
	require.Contains(t, out, "Role Change: Role changed from SRE to Auditor")

	out = te.mustRun(t, "role")
	require.Contains(t, out, "Auditor (auditor@external.com) can_mutate=false")

	_, _, err := te.run(t, "incident", "resolve", "INC-1")
	require.ErrorIs(t, err, controlplane.ErrForbidden)

	_, _, err = te.run(t, "role", "sre", "--pin", "0000")
	require.ErrorIs(t, err, identity.ErrAccessDenied)

	_, _, err = te.run(t, "role", "operator")
	require.ErrorIs(t, err, identity.ErrUnknownRole)

	te.mustRun(t, "role", "sre", "--pin", "4242")
	out = te.mustRun(t, "incident", "resolve", "INC-1")
	require.Contains(t, out, "resolved by SRE")
}

func TestSimulatePenalties(t *testing.T) {
	te := newTestEnv(t, "")

	out := te.mustRun(t, "simulate", "rate-limit")
	require.Contains(t, out, "Incident Detected")
	require.Contains(t, out, "70 (Degraded)")

	out = te.mustRun(t, "simulate", "latency", "--latency", "2s")
	require.Contains(t, out, "no incident recorded")

	out = te.mustRun(t, "simulate", "latency")
	require.Contains(t, out, "50 (Critical)")

	out = te.mustRun(t, "incident", "list")
	require.Contains(t, out, "Rate Limit Exceeded")
	require.Contains(t, out, "Latency SLO Violation")
}

func TestProbeRecordsRateLimit(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	te := newTestEnv(t, fmt.Sprintf("inference:\n  api_url: %s\n", upstream.URL))

	out := te.mustRun(t, "probe")
	require.Contains(t, out, "✗ gemini-2.0-flash")
	require.Contains(t, out, "70 (Degraded)")
	require.Equal(t, int32(1), hits.Load(), "no retry")
}

func TestProbeSuccessRecordsNothing(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"OK"}}]}`))
	}))
	defer upstream.Close()

	te := newTestEnv(t, fmt.Sprintf("inference:\n  api_url: %s\n  model: test-model\n", upstream.URL))

	out := te.mustRun(t, "probe")
	require.Contains(t, out, "✓ test-model answered")
	require.NotContains(t, out, "Incident Detected")

	out = te.mustRun(t, "status")
	require.Contains(t, out, "100 (Healthy)")
}

func TestAuditVerifyAndJournal(t *testing.T) {
	te := newTestEnv(t, "")
	te.mustRun(t, "incident", "add", "--id", "INC-1", "--title", "outage", "--impact", "30")
	te.mustRun(t, "incident", "resolve", "INC-1")

	out := te.mustRun(t, "audit", "verify")
	require.Contains(t, out, "OK: 2 entries verified")

	out = te.mustRun(t, "audit", "journal-verify")
	require.Contains(t, out, "OK: 2 entries verified")

	out = te.mustRun(t, "audit", "list", "--json", "-n", "1")
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, "Incident Resolved", entries[0]["action"])

	data, err := os.ReadFile(te.journal)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "INC-1 resolved", "INC-1 ignored", 1)
	require.NoError(t, os.WriteFile(te.journal, []byte(tampered), 0o600))

	_, errOut, err := te.run(t, "audit", "journal-verify", te.journal)
	require.Error(t, err)
	require.Contains(t, errOut, "FAILED at line 2")
}

func TestStatusJSON(t *testing.T) {
	te := newTestEnv(t, "")
	te.mustRun(t, "incident", "add", "--id", "INC-1", "--title", "outage", "--impact", "20")

	out := te.mustRun(t, "status", "--json")
	var view controlplane.View
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Equal(t, 80, view.Score)
	require.Equal(t, model.Degraded, view.Tier)
	require.Len(t, view.Incidents, 1)
	require.Len(t, view.AuditLog, 1)
}

func TestStatusAndCheckRemote(t *testing.T) {
	te := newTestEnv(t, "")

	plane := controlplane.New(context.Background(), controlplane.WithWarnings(io.Discard))
	_, err := plane.AddIncident(context.Background(), model.Incident{
		ID: "INC-R", Title: "remote", Severity: model.SevHigh, TrustImpact: 50,
	})
	require.NoError(t, err)
	_, err = plane.TogglePolicy(context.Background(), "blockLowTrust")
	require.NoError(t, err)

	srv := server.New(plane, server.Config{Warn: io.Discard})
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.ServeOn(lis)
	defer srv.GracefulStop()

	out := te.mustRun(t, "status", "--remote", lis.Addr().String())
	require.Contains(t, out, "50 (Critical)")
	require.Contains(t, out, "INC-R")

	out, _, err = te.run(t, "check", "--remote", lis.Addr().String())
	require.ErrorIs(t, err, errRequestDenied)
	require.Contains(t, out, "DENY score 50")
}

func TestCheckRemoteFailsClosed(t *testing.T) {
	te := newTestEnv(t, "")

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	out, _, err := te.run(t, "check", "--remote", addr)
	require.ErrorIs(t, err, errRequestDenied)
	require.Contains(t, out, "DENY")
	require.Contains(t, out, "unreachable")
}
