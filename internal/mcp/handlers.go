package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/trustplane/internal/audit"
	"github.com/ppiankov/trustplane/internal/model"
	"github.com/ppiankov/trustplane/internal/penalty"
)

// --- Input/Output types ---

// StatusInput is empty; no parameters needed.
type StatusInput struct{}

// StatusOutput is the trust view.
type StatusOutput struct {
	Score           int             `json:"score"`
	Tier            string          `json:"tier"`
	Forecast        string          `json:"forecast"`
	Role            string          `json:"role"`
	Actor           string          `json:"actor"`
	Policies        map[string]bool `json:"policies"`
	ActiveCount     int             `json:"active_count"`
	ActiveIncidents []IncidentItem  `json:"active_incidents"`
}

// IncidentItem summarises one incident.
type IncidentItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
	TrustImpact int    `json:"trust_impact"`
}

// AddIncidentInput defines parameters for trust_add_incident.
type AddIncidentInput struct {
	ID              string   `json:"id" jsonschema:"unique incident id"`
	Title           string   `json:"title" jsonschema:"short incident title"`
	Severity        string   `json:"severity" jsonschema:"Critical, High, Medium or Low"`
	TrustImpact     int      `json:"trust_impact" jsonschema:"points subtracted from the trust score while active"`
	Trigger         string   `json:"trigger,omitempty" jsonschema:"what fired"`
	AffectedService string   `json:"affected_service,omitempty" jsonschema:"affected service or model"`
	MonitorName     string   `json:"monitor_name,omitempty" jsonschema:"monitor that detected the incident"`
	RootCause       string   `json:"root_cause,omitempty" jsonschema:"suspected root cause"`
	ActionsTaken    []string `json:"actions_taken,omitempty" jsonschema:"remediation steps already taken"`
}

// MutationOutput reports the state after a mutation.
type MutationOutput struct {
	Score   int    `json:"score"`
	Tier    string `json:"tier"`
	Changed bool   `json:"changed"`
	Stamp   string `json:"stamp,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResolveInput defines parameters for trust_resolve_incident.
type ResolveInput struct {
	ID string `json:"id" jsonschema:"incident id to resolve"`
}

// CheckInput is empty; the gate uses the current score.
type CheckInput struct{}

// CheckOutput contains the policy decision.
type CheckOutput struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	Score    int    `json:"score"`
	PolicyID string `json:"policy_id,omitempty"`
}

// SimulateInput describes an observed inference outcome.
type SimulateInput struct {
	StatusCode int    `json:"status_code" jsonschema:"HTTP status returned by the endpoint"`
	LatencyMS  int64  `json:"latency_ms,omitempty" jsonschema:"observed latency in milliseconds"`
	Model      string `json:"model,omitempty" jsonschema:"model name"`
}

// SimulateOutput reports whether an incident was raised.
type SimulateOutput struct {
	IncidentRaised bool   `json:"incident_raised"`
	IncidentID     string `json:"incident_id,omitempty"`
	Score          int    `json:"score"`
	Tier           string `json:"tier"`
	Error          string `json:"error,omitempty"`
}

// AuditLogInput limits the number of entries returned.
type AuditLogInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum entries to return, 0 for all"`
}

// AuditLogOutput lists ledger entries with verification.
type AuditLogOutput struct {
	Entries []audit.Entry `json:"entries"`
	Valid   bool          `json:"valid"`
	Total   int           `json:"total"`
	Error   string        `json:"error,omitempty"`
}

// --- Handlers ---

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, _ StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	v := s.plane.View()
	out := StatusOutput{
		Score:       v.Score,
		Tier:        string(v.Tier),
		Forecast:    string(v.Forecast),
		Role:        string(v.Role.Role),
		Actor:       v.Role.Actor,
		Policies:    v.Policy.Map(),
		ActiveCount: v.ActiveCount,
	}
	for _, inc := range v.Incidents {
		if inc.IsActive() {
			out.ActiveIncidents = append(out.ActiveIncidents, item(inc))
		}
	}
	return nil, out, nil
}

func (s *Server) handleAddIncident(ctx context.Context, req *mcpsdk.CallToolRequest, input AddIncidentInput) (*mcpsdk.CallToolResult, MutationOutput, error) {
	sev, err := model.ParseSeverity(input.Severity)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, MutationOutput{Error: err.Error()}, nil
	}
	res, err := s.plane.AddIncident(ctx, model.Incident{
		ID:              input.ID,
		Title:           input.Title,
		Severity:        sev,
		Status:          model.StatusActive,
		TrustImpact:     input.TrustImpact,
		Trigger:         input.Trigger,
		AffectedService: input.AffectedService,
		MonitorName:     input.MonitorName,
		RootCause:       input.RootCause,
		ActionsTaken:    input.ActionsTaken,
	})
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, MutationOutput{Error: err.Error()}, nil
	}
	return nil, mutation(res.State.Score, string(res.State.Tier), res.Changed, res.Entry), nil
}

func (s *Server) handleResolve(ctx context.Context, req *mcpsdk.CallToolRequest, input ResolveInput) (*mcpsdk.CallToolResult, MutationOutput, error) {
	res, err := s.plane.ResolveIncident(ctx, s.plane.Capability(), input.ID)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, MutationOutput{Error: err.Error()}, nil
	}
	return nil, mutation(res.State.Score, string(res.State.Tier), res.Changed, res.Entry), nil
}

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, _ CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	r := s.plane.GateRequest(ctx)
	return nil, CheckOutput{
		Decision: string(r.Decision),
		Reason:   r.Reason,
		Score:    r.Score,
		PolicyID: r.PolicyID,
	}, nil
}

func (s *Server) handleSimulate(ctx context.Context, req *mcpsdk.CallToolRequest, input SimulateInput) (*mcpsdk.CallToolResult, SimulateOutput, error) {
	res, raised, err := s.plane.RecordOutcome(ctx, penalty.Observation{
		StatusCode: input.StatusCode,
		Latency:    time.Duration(input.LatencyMS) * time.Millisecond,
		Model:      input.Model,
	})
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, SimulateOutput{Error: err.Error()}, nil
	}
	out := SimulateOutput{IncidentRaised: raised, Score: res.State.Score, Tier: string(res.State.Tier)}
	if raised && res.Entry != nil {
		out.IncidentID = s.plane.View().Incidents[0].ID
	}
	return nil, out, nil
}

func (s *Server) handleAuditLog(ctx context.Context, req *mcpsdk.CallToolRequest, input AuditLogInput) (*mcpsdk.CallToolResult, AuditLogOutput, error) {
	entries := s.plane.View().AuditLog
	v := audit.VerifyNewestFirst(entries)

	out := AuditLogOutput{Valid: v.Valid, Total: len(entries), Error: v.Error}
	if input.Limit > 0 && input.Limit < len(entries) {
		entries = entries[:input.Limit]
	}
	out.Entries = entries
	return nil, out, nil
}

func item(inc model.Incident) IncidentItem {
	return IncidentItem{
		ID:          inc.ID,
		Title:       inc.Title,
		Severity:    string(inc.Severity),
		Status:      string(inc.Status),
		TrustImpact: inc.TrustImpact,
	}
}

func mutation(score int, tier string, changed bool, e *audit.Entry) MutationOutput {
	out := MutationOutput{Score: score, Tier: tier, Changed: changed}
	if e != nil {
		out.Stamp = e.Hash
	}
	return out
}
