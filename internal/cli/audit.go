package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustplane/internal/audit"
)

var (
	auditJSON  bool
	auditLines int
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditJournalVerifyCmd)
	auditListCmd.Flags().BoolVar(&auditJSON, "json", false, "Print entries as JSON")
	auditListCmd.Flags().IntVarP(&auditLines, "lines", "n", 0, "Number of most recent entries to show (0 for all)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit ledger operations",
	Long:  "Commands for listing and verifying the stamped audit ledger and its on-disk journal.",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show ledger entries, newest first",
	Args:  cobra.NoArgs,
	RunE:  runAuditList,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute the stamp of every ledger entry",
	Long:  "Walks the ledger in creation order and recomputes each entry's stamp.\nExits 0 if valid, 1 if any entry was altered.",
	Args:  cobra.NoArgs,
	RunE:  runAuditVerify,
}

var auditJournalVerifyCmd = &cobra.Command{
	Use:   "journal-verify [path]",
	Short: "Verify hash chain integrity of a JSONL journal",
	Long: "Walks the JSONL journal and validates that every line's prev_hash\n" +
		"matches the SHA-256 of the previous line and that every entry's stamp\n" +
		"matches its content. Defaults to the configured journal path.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditJournalVerify,
}

func runAuditList(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	entries := e.plane.View().AuditLog
	if auditLines > 0 && len(entries) > auditLines {
		entries = entries[:auditLines]
	}

	if auditJSON {
		out, err := audit.FormatJSON(entries)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), audit.FormatTable(entries))
	return nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	result := audit.VerifyNewestFirst(e.plane.View().AuditLog)
	if result.Valid {
		okColor.Fprint(cmd.OutOrStdout(), "OK: ")
		fmt.Fprintf(cmd.OutOrStdout(), "%d entries verified\n", result.Entries)
		return nil
	}
	errColor.Fprintf(cmd.ErrOrStderr(), "FAILED at entry %d: ", result.ErrorIndex)
	fmt.Fprintln(cmd.ErrOrStderr(), result.Error)
	return fmt.Errorf("audit ledger verification failed")
}

func runAuditJournalVerify(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		path = e.cfg.Journal
		e.Close()
		if path == "" {
			return fmt.Errorf("no journal configured; pass a path")
		}
	}

	result := audit.VerifyJournal(path)
	if result.Valid {
		okColor.Fprint(cmd.OutOrStdout(), "OK: ")
		fmt.Fprintf(cmd.OutOrStdout(), "%d entries verified\n", result.Lines)
		return nil
	}
	errColor.Fprintf(cmd.ErrOrStderr(), "FAILED at line %d: ", result.ErrorLine)
	fmt.Fprintln(cmd.ErrOrStderr(), result.Error)
	return fmt.Errorf("journal verification failed")
}
