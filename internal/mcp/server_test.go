package mcp

import (
	"context"
	"io"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/trustplane/internal/controlplane"
	"github.com/ppiankov/trustplane/internal/identity"
	"github.com/ppiankov/trustplane/internal/policy"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	plane := controlplane.New(context.Background(),
		controlplane.WithWarnings(io.Discard),
		controlplane.WithRegistry(identity.NewRegistry(nil, "1234")),
	)
	return New(plane)
}

func addIncident(t *testing.T, s *Server, id string, impact int) MutationOutput {
	t.Helper()
	result, out, err := s.handleAddIncident(context.Background(), &mcpsdk.CallToolRequest{}, AddIncidentInput{
		ID:          id,
		Title:       "incident " + id,
		Severity:    "critical",
		TrustImpact: impact,
		Trigger:     "test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatalf("expected success, got %q", out.Error)
	}
	return out
}

func TestStatusInitial(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleStatus(context.Background(), &mcpsdk.CallToolRequest{}, StatusInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Score != 100 || out.Tier != "Healthy" || out.Forecast != "Stable" {
		t.Errorf("unexpected status %+v", out)
	}
	if out.Role != "SRE" || out.Actor != "engineer@google.com" {
		t.Errorf("unexpected role %s/%s", out.Role, out.Actor)
	}
	if out.Policies[policy.KeyBlockLowTrust] || !out.Policies[policy.KeyRequireMFA] {
		t.Errorf("unexpected default policies %v", out.Policies)
	}
}

func TestAddAndResolve(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	out := addIncident(t, s, "INC-1", 30)
	if out.Score != 70 || out.Tier != "Degraded" || len(out.Stamp) != 64 {
		t.Fatalf("unexpected add output %+v", out)
	}
	out = addIncident(t, s, "INC-2", 20)
	if out.Score != 50 || out.Tier != "Critical" {
		t.Fatalf("unexpected add output %+v", out)
	}

	_, st, _ := s.handleStatus(ctx, &mcpsdk.CallToolRequest{}, StatusInput{})
	if len(st.ActiveIncidents) != 2 || st.ActiveIncidents[0].ID != "INC-2" {
		t.Errorf("expected newest-first active incidents, got %+v", st.ActiveIncidents)
	}

	result, res, err := s.handleResolve(ctx, &mcpsdk.CallToolRequest{}, ResolveInput{ID: "INC-2"})
	if err != nil || (result != nil && result.IsError) {
		t.Fatalf("resolve failed: %v %s", err, res.Error)
	}
	if res.Score != 70 || !res.Changed {
		t.Errorf("unexpected resolve output %+v", res)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, out, _ := s.handleAddIncident(ctx, &mcpsdk.CallToolRequest{}, AddIncidentInput{ID: "INC-1", Severity: "apocalyptic", TrustImpact: 5})
	if result == nil || !result.IsError || !strings.Contains(out.Error, "severity") {
		t.Errorf("expected severity error, got %+v", out)
	}

	result, out, _ = s.handleAddIncident(ctx, &mcpsdk.CallToolRequest{}, AddIncidentInput{ID: "INC-1", Severity: "low", TrustImpact: -1})
	if result == nil || !result.IsError {
		t.Errorf("expected error for negative impact, got %+v", out)
	}
}

func TestResolveAsAuditorIsError(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	addIncident(t, s, "INC-1", 30)

	if _, err := s.plane.SetRole(ctx, identity.RoleAuditor, ""); err != nil {
		t.Fatal(err)
	}
	result, out, err := s.handleResolve(ctx, &mcpsdk.CallToolRequest{}, ResolveInput{ID: "INC-1"})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil || !result.IsError || !strings.Contains(out.Error, "not permitted") {
		t.Errorf("expected forbidden error result, got %+v", out)
	}
}

func TestCheckRequest(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	addIncident(t, s, "INC-1", 45)

	_, out, _ := s.handleCheck(ctx, &mcpsdk.CallToolRequest{}, CheckInput{})
	if out.Decision != "allow" {
		t.Errorf("expected allow with blocking off, got %+v", out)
	}

	if _, err := s.plane.TogglePolicy(ctx, policy.KeyBlockLowTrust); err != nil {
		t.Fatal(err)
	}
	_, out, _ = s.handleCheck(ctx, &mcpsdk.CallToolRequest{}, CheckInput{})
	if out.Decision != "deny" || out.Score != 55 || out.PolicyID != policy.KeyBlockLowTrust {
		t.Errorf("expected deny at 55, got %+v", out)
	}
}

func TestSimulate(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, out, _ := s.handleSimulate(ctx, &mcpsdk.CallToolRequest{}, SimulateInput{StatusCode: 200, LatencyMS: 300})
	if out.IncidentRaised || out.Score != 100 {
		t.Errorf("fast success must not raise an incident, got %+v", out)
	}

	_, out, _ = s.handleSimulate(ctx, &mcpsdk.CallToolRequest{}, SimulateInput{StatusCode: 429, Model: "gemini-pro"})
	if !out.IncidentRaised || out.Score != 70 || !strings.HasPrefix(out.IncidentID, "INC-") {
		t.Errorf("expected rate-limit incident, got %+v", out)
	}

	_, out, _ = s.handleSimulate(ctx, &mcpsdk.CallToolRequest{}, SimulateInput{StatusCode: 200, LatencyMS: 8001})
	if !out.IncidentRaised || out.Score != 50 {
		t.Errorf("expected latency incident, got %+v", out)
	}
}

func TestAuditLogVerifiesAndLimits(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	addIncident(t, s, "INC-1", 10)
	addIncident(t, s, "INC-2", 10)
	s.handleResolve(ctx, &mcpsdk.CallToolRequest{}, ResolveInput{ID: "INC-1"})

	_, out, _ := s.handleAuditLog(ctx, &mcpsdk.CallToolRequest{}, AuditLogInput{})
	if !out.Valid || out.Total != 3 || len(out.Entries) != 3 {
		t.Fatalf("unexpected audit output %+v", out)
	}
	if out.Entries[0].Action != "Incident Resolved" {
		t.Errorf("expected newest first, got %s", out.Entries[0].Action)
	}

	_, out, _ = s.handleAuditLog(ctx, &mcpsdk.CallToolRequest{}, AuditLogInput{Limit: 1})
	if len(out.Entries) != 1 || out.Total != 3 {
		t.Errorf("expected limit to apply, got %d of %d", len(out.Entries), out.Total)
	}
}
