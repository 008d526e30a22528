package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustplane/internal/client"
	"github.com/ppiankov/trustplane/internal/controlplane"
)

var (
	statusRemote string
	statusJSON   bool
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusRemote, "remote", "", "Query a running trustplane server instead of local state")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the full view as JSON")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show trust score, tier, policy and incidents",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var view controlplane.View
	if statusRemote != "" {
		c, err := client.New(statusRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		if view, err = c.Status(); err != nil {
			return err
		}
	} else {
		e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()
		view = e.plane.View()
	}

	if statusJSON {
		out, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal view: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	printView(cmd.OutOrStdout(), view)
	return nil
}
