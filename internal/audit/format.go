package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTable renders entries (in the order given) as a text timeline.
func FormatTable(entries []Entry) string {
	if len(entries) == 0 {
		return "Audit ledger is empty.\n"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-10s %-18s %-24s %-29s %s\n", "TIME", "ACTION", "ACTOR", "STAMP", "DETAILS"))
	b.WriteString(separator + "\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%-10s %-18s %-24s %-29s %s\n",
			formatTimeOnly(e.Timestamp),
			truncate(e.Action, 18),
			truncate(e.Actor, 24),
			e.ShortHash(),
			e.Details))
	}
	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(entries))
	return b.String()
}

// FormatJSON renders entries as indented JSON.
func FormatJSON(entries []Entry) (string, error) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal audit entries: %w", err)
	}
	return string(data), nil
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(entries []Entry) string {
	counts := map[string]int{}
	var order []string
	for _, e := range entries {
		if counts[e.Action] == 0 {
			order = append(order, e.Action)
		}
		counts[e.Action]++
	}
	parts := make([]string, 0, len(order))
	for _, a := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[a], strings.ToLower(a)))
	}
	return fmt.Sprintf("Summary: %d entries | %s\n", len(entries), strings.Join(parts, ", "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
