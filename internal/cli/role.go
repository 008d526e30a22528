package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustplane/internal/identity"
)

var rolePIN string

func init() {
	rootCmd.AddCommand(roleCmd)
	roleCmd.Flags().StringVar(&rolePIN, "pin", "", "PIN required to switch to a mutating role")
}

var roleCmd = &cobra.Command{
	Use:   "role [sre|auditor]",
	Short: "Show or switch the current role",
	Long: "Without arguments, prints the current role. Dropping to a read-only role\n" +
		"is always allowed; switching to SRE requires --pin.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRole,
}

func runRole(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	if len(args) == 0 {
		c := e.plane.Capability()
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) can_mutate=%t\n", c.Role, c.Actor, c.CanMutate)
		return nil
	}

	role, err := identity.ParseRole(args[0])
	if err != nil {
		return err
	}
	res, err := e.plane.SetRole(cmd.Context(), role, rolePIN)
	if err != nil {
		return err
	}
	if !res.Changed {
		fmt.Fprintf(cmd.OutOrStdout(), "Already acting as %s.\n", role)
		return nil
	}
	printMutation(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	return nil
}
