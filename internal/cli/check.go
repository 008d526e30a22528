package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustplane/internal/client"
	"github.com/ppiankov/trustplane/internal/policy"
)

var errRequestDenied = errors.New("request denied by policy")

var checkRemote string

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkRemote, "remote", "", "Ask a running trustplane server instead of local state")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Ask the policy gate whether an inference request may be dispatched",
	Long: "Evaluates the low-trust policy against the current score.\n" +
		"Exit code 0 if the request is allowed, 1 if denied. A denied request is audited.\n" +
		"With --remote, an unreachable server is treated as a deny.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	var res policy.Result
	if checkRemote != "" {
		c, err := client.New(checkRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		res, err = c.CheckRequest()
		if err != nil {
			return err
		}
	} else {
		e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()
		res = e.plane.GateRequest(cmd.Context())
	}

	printDecision(cmd.OutOrStdout(), res)
	if !res.Allowed() {
		return errRequestDenied
	}
	return nil
}
