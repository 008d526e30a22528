package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ppiankov/trustplane/internal/audit"
	"github.com/ppiankov/trustplane/internal/config"
	"github.com/ppiankov/trustplane/internal/controlplane"
	"github.com/ppiankov/trustplane/internal/identity"
	"github.com/ppiankov/trustplane/internal/policy"
	"github.com/ppiankov/trustplane/internal/snapshot"
	"github.com/ppiankov/trustplane/internal/telemetry"
)

// env is a control plane assembled from the local configuration.
type env struct {
	cfg     *config.Config
	plane   *controlplane.Plane
	journal *audit.Journal
}

// openEnv loads the config named by --config and builds a plane on top of
// the configured snapshot store, journal, policy defaults, roles and
// telemetry sinks. Extra options are applied last.
func openEnv(ctx context.Context, warn io.Writer, extra ...controlplane.Option) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	defaults, _, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	store, err := snapshot.Open(ctx, cfg.State.Backend, cfg.State.Target())
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	ledgerOpts := []audit.Option{audit.WithWarnings(warn)}
	var journal *audit.Journal
	if cfg.Journal != "" {
		journal, err = audit.OpenJournal(cfg.Journal)
		if err != nil {
			fmt.Fprintf(warn, "audit: journal disabled: %v\n", err)
		} else {
			ledgerOpts = append(ledgerOpts, audit.WithJournal(journal))
		}
	}

	opts := []controlplane.Option{
		controlplane.WithStore(store),
		controlplane.WithLedger(audit.NewLedger(ledgerOpts...)),
		controlplane.WithDefaults(defaults),
		controlplane.WithRegistry(identity.NewRegistry(cfg.Roles, cfg.PIN)),
		controlplane.WithTelemetry(telemetry.FromConfigs(cfg.Telemetry, warn)),
		controlplane.WithWarnings(warn),
	}
	if cfg.Inference.Model != "" {
		opts = append(opts, controlplane.WithModel(cfg.Inference.Model))
	}
	opts = append(opts, extra...)

	return &env{
		cfg:     cfg,
		plane:   controlplane.New(ctx, opts...),
		journal: journal,
	}, nil
}

// Close releases the snapshot store and the journal.
func (e *env) Close() error {
	err := e.plane.Close()
	if e.journal != nil {
		if jerr := e.journal.Close(); err == nil {
			err = jerr
		}
	}
	return err
}
