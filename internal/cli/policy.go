package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustplane/internal/policy"
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyToggleCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and toggle security policy switches",
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current policy switches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()

		m := e.plane.View().Policy.Map()
		for _, k := range policy.Keys() {
			labelColor.Fprintf(cmd.OutOrStdout(), "%-14s ", k)
			fmt.Fprintln(cmd.OutOrStdout(), m[k])
		}
		return nil
	},
}

var policyToggleCmd = &cobra.Command{
	Use:   "toggle <blockLowTrust|requireMFA>",
	Short: "Flip one policy switch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.plane.TogglePolicy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printMutation(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
		return nil
	},
}
