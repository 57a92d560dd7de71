package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/utils"
)

// TransformPayload transforms a webhook event into the specified format
func TransformPayload(event *Event, format Format) (string, error) {
	switch format {
	case FormatGotify:
		return transformToGotify(event)
	case FormatNtfy:
		return transformToNtfy(event)
	case FormatDiscord:
		return transformToDiscord(event)
	case FormatJSON, "":
		return event.ToJSON()
	default:
		return "", fmt.Errorf("unsupported webhook format: %s", format)
	}
}

func eventTitle(t EventType) string {
	switch t {
	case EventDeckCreated:
		return "Pitch deck registered"
	case EventDeckUploaded:
		return "Pitch deck uploaded"
	case EventDeckAccessed:
		return "Pitch deck opened"
	case EventDeckDeleted:
		return "Pitch deck deleted"
	default:
		return "deckvault event"
	}
}

func modeLabel(mode models.AccessMode) string {
	switch mode {
	case models.ModeExternal:
		return "external link"
	case models.ModeLocalPDF:
		return "hosted PDF"
	default:
		return "uploaded file"
	}
}

// sizeLabel omits the size when it is unknown
func sizeLabel(f FileData) string {
	if f.Size <= 0 {
		return modeLabel(f.Mode)
	}
	return fmt.Sprintf("%s, %s", modeLabel(f.Mode), utils.FormatBytes(uint64(f.Size)))
}

func transformToGotify(event *Event) (string, error) {
	message := fmt.Sprintf("**%s** (%s)", event.File.Name, sizeLabel(event.File))
	if event.Type == EventDeckAccessed {
		message += fmt.Sprintf("\n\n**Opened:** %d times", event.File.AccessCount)
	}

	payload := map[string]any{
		"title":    "deckvault: " + eventTitle(event.Type),
		"message":  message,
		"priority": gotifyPriority(event.Type),
		"extras": map[string]any{
			"client::display": map[string]string{"contentType": "text/markdown"},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Gotify payload: %w", err)
	}
	return string(data), nil
}

// gotifyPriority returns priority level for Gotify (0-10)
func gotifyPriority(t EventType) int {
	switch t {
	case EventDeckAccessed:
		return 7
	case EventDeckDeleted:
		return 3
	default:
		return 5
	}
}

func transformToNtfy(event *Event) (string, error) {
	message := fmt.Sprintf("%s (%s)", event.File.Name, sizeLabel(event.File))
	if event.Type == EventDeckAccessed {
		message += fmt.Sprintf("\nOpened %d times", event.File.AccessCount)
	}

	// the topic is taken from the endpoint URL path
	payload := map[string]any{
		"title":    eventTitle(event.Type),
		"message":  message,
		"tags":     ntfyTags(event.Type),
		"priority": ntfyPriority(event.Type),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ntfy payload: %w", err)
	}
	return string(data), nil
}

func ntfyTags(t EventType) []string {
	switch t {
	case EventDeckCreated:
		return []string{"link"}
	case EventDeckUploaded:
		return []string{"inbox"}
	case EventDeckAccessed:
		return []string{"eyes"}
	case EventDeckDeleted:
		return []string{"wastebasket"}
	default:
		return []string{"file_folder"}
	}
}

// ntfyPriority returns priority level for ntfy (1-5)
func ntfyPriority(t EventType) int {
	switch t {
	case EventDeckAccessed:
		return 4
	case EventDeckDeleted:
		return 2
	default:
		return 3
	}
}

func transformToDiscord(event *Event) (string, error) {
	fields := []map[string]any{
		{"name": "Type", "value": modeLabel(event.File.Mode), "inline": true},
		{"name": "File ID", "value": fmt.Sprintf("`%s`", event.File.ID), "inline": true},
	}
	if event.Type == EventDeckAccessed {
		fields = append(fields, map[string]any{
			"name":   "Opened",
			"value":  fmt.Sprintf("%d times", event.File.AccessCount),
			"inline": true,
		})
	}

	embed := map[string]any{
		"title":       eventTitle(event.Type),
		"description": fmt.Sprintf("**%s**", event.File.Name),
		"color":       discordColor(event.Type),
		"fields":      fields,
		"timestamp":   event.Timestamp.Format(time.RFC3339),
		"footer":      map[string]string{"text": "deckvault"},
	}

	data, err := json.Marshal(map[string]any{"embeds": []any{embed}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal Discord payload: %w", err)
	}
	return string(data), nil
}

// discordColor returns the embed color (decimal RGB)
func discordColor(t EventType) int {
	switch t {
	case EventDeckCreated, EventDeckUploaded:
		return 3066993 // green
	case EventDeckAccessed:
		return 3447003 // blue
	case EventDeckDeleted:
		return 15158332 // red
	default:
		return 9807270 // gray
	}
}
