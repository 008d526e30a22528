package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	trustmcp "github.com/ppiankov/trustplane/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs trustplane as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: trust_status, trust_add_incident, trust_resolve_incident,\n" +
		"trust_check_request, trust_simulate, trust_audit_log.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer e.Close()

	srv := trustmcp.New(e.plane)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "trustplane MCP server running on stdio")
	fmt.Fprintln(os.Stderr)

	err = srv.Run(ctx)

	view := e.plane.View()
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "Session summary: score %d (%s), %d incidents, %d audit entries\n",
		view.Score, view.Tier, len(view.Incidents), len(view.AuditLog))

	return err
}
