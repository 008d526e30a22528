package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustplane/internal/inference"
	"github.com/ppiankov/trustplane/internal/telemetry"
)

var probePrompt string

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVar(&probePrompt, "prompt", "Reply with OK.", "Prompt sent to the inference endpoint")
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send one real request to the configured inference endpoint",
	Long: "Gates the request through the low-trust policy, sends it once without retry,\n" +
		"mirrors latency and cost to telemetry and records any penalty incident.",
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	gate := e.plane.GateRequest(ctx)
	if !gate.Allowed() {
		printDecision(cmd.OutOrStdout(), gate)
		return errRequestDenied
	}

	cfg := e.cfg.Inference
	cfg.Model = e.plane.Model()
	out := inference.Probe(ctx, cfg, probePrompt)

	latency := out.Latency.Milliseconds()
	state := e.plane.View().State
	ev := telemetry.Event{
		Kind:      telemetry.KindInference,
		Message:   fmt.Sprintf("AI Request: %s", out.Model),
		Score:     state.Score,
		State:     string(state.Tier),
		LatencyMS: &latency,
		CostUSD:   &out.CostUSD,
		ErrorType: out.ErrorType(),
		Model:     out.Model,
	}
	for _, f := range e.plane.Emit(ctx, ev).Failures() {
		warnColor.Fprint(cmd.ErrOrStderr(), "warning: ")
		fmt.Fprintf(cmd.ErrOrStderr(), "telemetry sink %s failed: %v\n", f.Sink, f.Err)
	}

	w := cmd.OutOrStdout()
	if out.Err != nil {
		errColor.Fprint(w, "✗ ")
		fmt.Fprintf(w, "%s after %dms: %v\n", out.Model, latency, out.Err)
	} else {
		okColor.Fprint(w, "✓ ")
		fmt.Fprintf(w, "%s answered in %dms, %d tokens, $%.6f\n", out.Model, latency, out.Tokens, out.CostUSD)
		if out.Text != "" {
			fmt.Fprintln(w, out.Text)
		}
	}

	res, recorded, err := e.plane.RecordOutcome(ctx, out.Observation())
	if err != nil {
		return err
	}
	if recorded {
		printMutation(w, cmd.ErrOrStderr(), res)
	}
	return nil
}
