package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event Event) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event Event) ([]byte, error) {
	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Score:* %d/100", event.Score)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*State:* %s", event.State)},
	}
	if event.Incident != nil {
		fields = append(fields,
			map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Incident:* %s", event.Incident.ID)},
			map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Trigger:* %s", event.Incident.Trigger)},
		)
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("trustplane: %s", event.Message),
				},
			},
			map[string]any{
				"type":   "section",
				"fields": fields,
			},
		},
	}
	return json.Marshal(payload)
}

// datadogLog merges the Datadog reserved attributes with the event fields.
func datadogLog(cfg SinkConfig, event Event) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	body["ddsource"] = cfg.Source
	body["ddtags"] = strings.Join(cfg.Tags, ",")
	body["service"] = cfg.Service
	body["status"] = event.Level()
	if event.Message == "" {
		body["message"] = "AI Telemetry"
	}
	return json.Marshal(body)
}

// datadogEvent builds a v1 events API payload. ok is false when the event
// does not warrant an entry in the event stream.
func datadogEvent(cfg SinkConfig, event Event) (body []byte, ok bool, err error) {
	var payload map[string]any
	switch {
	case event.Kind == KindResolution && event.Incident != nil:
		payload = map[string]any{
			"title":      "[RESOLVED] " + event.Incident.Title,
			"text":       fmt.Sprintf("Incident resolved. Context: %s %s", event.Incident.ID, event.Incident.RootCause),
			"priority":   "normal",
			"alert_type": "success",
			"tags":       append([]string{"source:ai_control_plane"}, cfg.Tags...),
		}
	case event.Kind == KindIncident && event.Incident != nil && (event.State == "Critical" || event.State == "Degraded"):
		alertType := "warning"
		if event.State == "Critical" {
			alertType = "error"
		}
		payload = map[string]any{
			"title": fmt.Sprintf("[%s] AI Trust Incident: Score dropped to %d", event.State, event.Score),
			"text": fmt.Sprintf("%%%%%% \n**Incident Detected**\n\n**Current Score:** %d/100\n**Status:** %s\n**Trigger:** %s\n**Root Cause:** %s\n**Affected Service:** %s\n %%%%%%",
				event.Score, event.State, event.Incident.Trigger, event.Incident.RootCause, event.Incident.Service),
			"alert_type":       alertType,
			"source_type_name": "ai-monitor",
			"tags": append([]string{
				"service:" + event.Incident.Service,
				"trust_state:" + event.State,
			}, cfg.Tags...),
		}
	default:
		return nil, false, nil
	}
	body, err = json.Marshal(payload)
	return body, true, err
}

