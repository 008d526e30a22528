package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustplane/internal/config"
	"github.com/ppiankov/trustplane/internal/controlplane"
	"github.com/ppiankov/trustplane/internal/server"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "gRPC listen address (default from config, "+config.DefaultAddr+")")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC trust server",
	Long: "Runs trustplane as a long-lived gRPC server around a single control plane.\n" +
		"Agents query status and the policy gate remotely. Telemetry is sent in the\n" +
		"background and telemetry sinks hot-reload when the config file changes.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), os.Stderr, controlplane.WithAsyncTelemetry())
	if err != nil {
		return fmt.Errorf("failed to create control plane: %w", err)
	}
	defer e.Close()

	addr := serveAddr
	if addr == "" {
		addr = e.cfg.Server.Addr
	}
	srv := server.New(e.plane, server.Config{
		Addr:       addr,
		ConfigPath: configPath,
	})

	watchPath := configPath
	if watchPath == "" {
		watchPath = config.DefaultPath()
	}
	reloader, err := server.NewReloader(srv, []string{watchPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if reloader != nil {
		reloader.OnReload(func(err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: config reload failed: %v\n", err)
				return
			}
			fmt.Fprintln(os.Stderr, "Telemetry sinks reloaded.")
		})
		go reloader.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down trust server...")
		cancel()
		srv.GracefulStop()
	}()

	view := e.plane.View()
	fmt.Fprintf(os.Stderr, "trustplane server listening on %s\n", addr)
	fmt.Fprintf(os.Stderr, "Trust score: %d (%s), role %s\n", view.Score, view.Tier, view.Role.Role)
	if reloader != nil && len(reloader.Watched()) > 0 {
		fmt.Fprintf(os.Stderr, "Config: %s (hot-reload enabled)\n", watchPath)
	}
	fmt.Fprintln(os.Stderr)

	return srv.Serve()
}
