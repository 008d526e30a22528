package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustplane/internal/model"
	"github.com/ppiankov/trustplane/internal/penalty"
)

var (
	incidentID        string
	incidentTitle     string
	incidentSeverity  string
	incidentImpact    int
	incidentTrigger   string
	incidentService   string
	incidentMonitor   string
	incidentRootCause string
	incidentActions   []string
)

func init() {
	rootCmd.AddCommand(incidentCmd)
	incidentCmd.AddCommand(incidentAddCmd)
	incidentCmd.AddCommand(incidentResolveCmd)
	incidentCmd.AddCommand(incidentListCmd)

	f := incidentAddCmd.Flags()
	f.StringVar(&incidentID, "id", "", "Incident id (generated when empty)")
	f.StringVar(&incidentTitle, "title", "", "Incident title (required)")
	f.StringVar(&incidentSeverity, "severity", string(model.SevMedium), "Severity (critical|high|medium|low)")
	f.IntVar(&incidentImpact, "impact", 10, "Trust impact subtracted from the score while active")
	f.StringVar(&incidentTrigger, "trigger", "Manual report", "What raised the incident")
	f.StringVar(&incidentService, "service", "inference-api", "Affected service")
	f.StringVar(&incidentMonitor, "monitor", "", "Monitor name")
	f.StringVar(&incidentRootCause, "root-cause", "", "Root cause summary")
	f.StringSliceVar(&incidentActions, "action", nil, "Action taken (repeatable)")
	incidentAddCmd.MarkFlagRequired("title")
}

var incidentCmd = &cobra.Command{
	Use:   "incident",
	Short: "Record, resolve and list incidents",
}

var incidentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a new incident",
	Args:  cobra.NoArgs,
	RunE:  runIncidentAdd,
}

var incidentResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Resolve an active incident as the current role",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentResolve,
}

var incidentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List incidents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runIncidentList,
}

func runIncidentAdd(cmd *cobra.Command, args []string) error {
	sev, err := model.ParseSeverity(incidentSeverity)
	if err != nil {
		return err
	}
	id := incidentID
	if id == "" {
		id = penalty.NewIncidentID(time.Now())
	}
	inc := model.Incident{
		ID:              id,
		Title:           incidentTitle,
		Severity:        sev,
		Status:          model.StatusActive,
		TrustImpact:     incidentImpact,
		Trigger:         incidentTrigger,
		AffectedService: incidentService,
		MonitorName:     incidentMonitor,
		RootCause:       incidentRootCause,
		ActionsTaken:    incidentActions,
	}

	e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.plane.AddIncident(cmd.Context(), inc)
	if err != nil {
		return err
	}
	printMutation(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	return nil
}

func runIncidentResolve(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.plane.ResolveIncident(cmd.Context(), e.plane.Capability(), args[0])
	if err != nil {
		return err
	}
	if !res.Changed {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already resolved.\n", args[0])
	}
	printMutation(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	return nil
}

func runIncidentList(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	printIncidents(cmd.OutOrStdout(), e.plane.View().Incidents)
	return nil
}
