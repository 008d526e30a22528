package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustplane/internal/penalty"
)

var simulateLatency time.Duration

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.AddCommand(simulateRateLimitCmd)
	simulateCmd.AddCommand(simulateLatencyCmd)
	simulateLatencyCmd.Flags().DurationVar(&simulateLatency, "latency", 9500*time.Millisecond, "Observed response latency")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate an inference failure and apply the penalty rules",
	Long: "Runs a simulated inference request through the policy gate, then records\n" +
		"the incident the penalty rules derive from the simulated outcome.",
}

var simulateRateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Simulate an HTTP 429 from the inference endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulate(cmd, penalty.Observation{StatusCode: http.StatusTooManyRequests})
	},
}

var simulateLatencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "Simulate a slow inference response",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulate(cmd, penalty.Observation{StatusCode: http.StatusOK, Latency: simulateLatency})
	},
}

func runSimulate(cmd *cobra.Command, obs penalty.Observation) error {
	e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	gate := e.plane.GateRequest(cmd.Context())
	if !gate.Allowed() {
		printDecision(cmd.OutOrStdout(), gate)
		return errRequestDenied
	}

	res, recorded, err := e.plane.RecordOutcome(cmd.Context(), obs)
	if err != nil {
		return err
	}
	if !recorded {
		fmt.Fprintf(cmd.OutOrStdout(), "Outcome within SLO (%s); no incident recorded.\n", obs.Latency)
	}
	printMutation(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	return nil
}
