package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ppiankov/trustplane/internal/controlplane"
	"github.com/ppiankov/trustplane/internal/model"
	"github.com/ppiankov/trustplane/internal/policy"
	"github.com/ppiankov/trustplane/internal/trust"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
	labelColor = color.New(color.FgCyan)
)

func tierColor(tier model.TrustState) *color.Color {
	switch tier {
	case model.Healthy:
		return okColor
	case model.Degraded:
		return warnColor
	default:
		return errColor
	}
}

func severityColor(sev model.Severity) *color.Color {
	switch sev {
	case model.SevCritical, model.SevHigh:
		return errColor
	case model.SevMedium:
		return warnColor
	default:
		return labelColor
	}
}

func printState(w io.Writer, s trust.State) {
	labelColor.Fprint(w, "Trust Score:  ")
	tierColor(s.Tier).Fprintf(w, "%d (%s)", s.Score, s.Tier)
	fmt.Fprintf(w, "  forecast %s\n", s.Forecast)
}

func printView(w io.Writer, v controlplane.View) {
	printState(w, v.State)
	labelColor.Fprint(w, "Role:         ")
	fmt.Fprintf(w, "%s (%s)\n", v.Role.Role, v.Role.Actor)
	labelColor.Fprint(w, "Model:        ")
	fmt.Fprintln(w, v.Model)
	labelColor.Fprint(w, "Policy:       ")
	fmt.Fprintln(w, formatPolicy(v.Policy))
	labelColor.Fprint(w, "Incidents:    ")
	fmt.Fprintf(w, "%d active / %d total\n", v.ActiveCount, len(v.Incidents))
	if len(v.Incidents) > 0 {
		fmt.Fprintln(w)
		printIncidents(w, v.Incidents)
	}
}

func printIncidents(w io.Writer, incidents []model.Incident) {
	if len(incidents) == 0 {
		fmt.Fprintln(w, "No incidents recorded.")
		return
	}
	fmt.Fprintf(w, "%-24s %-9s %-9s %-7s %s\n", "ID", "SEVERITY", "STATUS", "IMPACT", "TITLE")
	for _, inc := range incidents {
		fmt.Fprintf(w, "%-24s ", inc.ID)
		severityColor(inc.Severity).Fprintf(w, "%-9s", inc.Severity)
		status := fmt.Sprintf("%-9s", inc.Status)
		if inc.IsActive() {
			warnColor.Fprintf(w, " %s", status)
		} else {
			okColor.Fprintf(w, " %s", status)
		}
		fmt.Fprintf(w, " -%-6d %s\n", inc.TrustImpact, inc.Title)
	}
}

func formatPolicy(p policy.SecurityPolicy) string {
	m := p.Map()
	parts := make([]string, 0, len(m))
	for _, k := range policy.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%t", k, m[k]))
	}
	return strings.Join(parts, " ")
}

// printMutation reports a committed mutation. Telemetry failures go to
// errw; they never fail the command.
func printMutation(w, errw io.Writer, res controlplane.MutationResult) {
	if res.Entry != nil {
		okColor.Fprint(w, "✓ ")
		fmt.Fprintf(w, "%s: %s\n", res.Entry.Action, res.Entry.Details)
		labelColor.Fprint(w, "  stamp ")
		fmt.Fprintln(w, res.Entry.ShortHash())
	}
	printState(w, res.State)
	for _, f := range res.Telemetry.Failures() {
		warnColor.Fprint(errw, "warning: ")
		fmt.Fprintf(errw, "telemetry sink %s failed: %v\n", f.Sink, f.Err)
	}
}

func printDecision(w io.Writer, res policy.Result) {
	if res.Allowed() {
		okColor.Fprint(w, "ALLOW ")
	} else {
		errColor.Fprint(w, "DENY ")
	}
	fmt.Fprintf(w, "score %d: %s\n", res.Score, res.Reason)
}
