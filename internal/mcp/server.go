package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/trustplane/internal/controlplane"
)

// Version is reported in the MCP implementation info.
var Version = "0.1.0"

// Server exposes a control plane as MCP tools.
type Server struct {
	mcpServer *mcpsdk.Server
	plane     *controlplane.Plane
}

// New creates an MCP server over the given plane.
func New(plane *controlplane.Plane) *Server {
	s := &Server{plane: plane}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "trustplane",
			Version: Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all trustplane tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_status",
		Description: "Report the current trust score, tier, forecast, policy switches and active incidents.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_add_incident",
		Description: "Record a trust-affecting incident. Its trust impact is subtracted from the score while it stays active.",
	}, s.handleAddIncident)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_resolve_incident",
		Description: "Resolve an active incident as the current role. Auditors may not resolve.",
	}, s.handleResolve)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_check_request",
		Description: "Ask the policy gate whether an inference request may be dispatched at the current trust score.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_simulate",
		Description: "Apply the penalty rules to an observed inference outcome (status code and latency).",
	}, s.handleSimulate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trust_audit_log",
		Description: "List audit ledger entries, newest first, with an integrity verification result.",
	}, s.handleAuditLog)
}
