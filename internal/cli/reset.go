package cli

import (
	"github.com/spf13/cobra"
)

var resetYes bool

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm the reset")
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear incidents and the audit ledger and restore default policy",
	Long: "Clears all incidents and the in-memory ledger, restores the default policy\n" +
		"and records a single System Reset entry. The on-disk journal is kept.\n" +
		"Requires --yes.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.plane.ResetSystem(cmd.Context(), resetYes)
		if err != nil {
			return err
		}
		printMutation(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
		return nil
	},
}
