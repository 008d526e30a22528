package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "trustplane",
	Short: "Runtime trust control plane for an AI inference endpoint",
	Long: "Tracks incidents against an inference endpoint, derives a trust score and tier,\n" +
		"gates requests on low trust and keeps a tamper-evident audit ledger.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.trustplane/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
