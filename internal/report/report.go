package report

import (
	"fmt"
	"strings"
	"time"
)

// Format selects a daily report rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// GenerateDailyReport renders the digest of the given day's actions.
// All formats share the same counting and listing logic; only the
// rendering differs. Output is deterministic for a fixed store state.
func (t *Tracker) GenerateDailyReport(day time.Time, format Format) string {
	if day.IsZero() {
		day = t.now().AddDate(0, 0, -1)
	}

	actions := t.ActionsForDay(day)
	types, counts := countByType(actions)

	switch format {
	case FormatHTML:
		return renderHTML(day, actions, types, counts)
	case FormatMarkdown:
		return renderMarkdown(day, actions, types, counts)
	default:
		return renderText(day, actions, types, counts)
	}
}

// countByType tallies actions per type, preserving first-appearance
// order for stable rendering.
func countByType(actions []ActionRecord) ([]string, map[string]int) {
	var types []string
	counts := make(map[string]int)

	for _, action := range actions {
		if _, seen := counts[action.ActionType]; !seen {
			types = append(types, action.ActionType)
		}
		counts[action.ActionType]++
	}

	return types, counts
}

// pluralize returns the display plural of an action type, notably
// "Replies" rather than "Replys".
func pluralize(actionType string) string {
	if actionType == "reply" {
		return "Replies"
	}
	return capitalize(actionType) + "s"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// truncateReply shortens reply text for the listing.
func truncateReply(text string) string {
	if len(text) > 100 {
		return text[:100] + "..."
	}
	return text
}

// actionDetail returns the per-action detail line fragment shared by
// the renderers.
func actionDetail(action ActionRecord) string {
	switch action.ActionType {
	case "reply":
		if text, ok := action.Details["text"]; ok {
			return "Reply: " + truncateReply(text)
		}
	case "label":
		if label, ok := action.Details["label"]; ok {
			return "Label: " + label
		}
	}
	return ""
}

// renderText renders the plain-text report.
func renderText(
	day time.Time, actions []ActionRecord,
	types []string, counts map[string]int,
) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(
		"StopPls Daily Report for %s\n\n", day.Format("January 02, 2006"),
	))
	sb.WriteString(fmt.Sprintf("Total actions: %d\n", len(actions)))

	for _, actionType := range types {
		sb.WriteString(fmt.Sprintf(
			"%s: %d\n", pluralize(actionType), counts[actionType],
		))
	}

	if len(actions) == 0 {
		sb.WriteString("\nNo actions were taken on this day.\n")
		return sb.String()
	}

	sb.WriteString("\nDetailed Actions:\n")
	for _, action := range actions {
		sb.WriteString(fmt.Sprintf(
			"\n- %s: %s\n",
			strings.ToUpper(action.ActionType), action.MessageSubject,
		))
		sb.WriteString(fmt.Sprintf("  From: %s\n", action.Sender))
		sb.WriteString(fmt.Sprintf("  Rule: %s\n", action.RuleName))

		if detail := actionDetail(action); detail != "" {
			sb.WriteString("  " + detail + "\n")
		}
	}

	return sb.String()
}

// renderHTML renders the report with inline styling, suitable for the
// HTML body of the report email.
func renderHTML(
	day time.Time, actions []ActionRecord,
	types []string, counts map[string]int,
) string {
	var sb strings.Builder

	sb.WriteString(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
h1 { color: #333366; }
h2 { color: #666699; margin-top: 20px; }
table { border-collapse: collapse; width: 100%; margin-top: 10px; }
th, td { text-align: left; padding: 8px; }
th { background-color: #f2f2f2; }
tr:nth-child(even) { background-color: #f9f9f9; }
.summary { background-color: #eef; padding: 10px; border-radius: 5px; }
.no-actions { color: #666; font-style: italic; }
</style>
</head>
<body>
`)
	sb.WriteString(fmt.Sprintf(
		"<h1>StopPls Daily Report for %s</h1>\n",
		day.Format("January 02, 2006"),
	))

	sb.WriteString("<div class=\"summary\">\n<h2>Summary</h2>\n")
	sb.WriteString(fmt.Sprintf("<p>Total actions: %d</p>\n", len(actions)))
	for _, actionType := range types {
		sb.WriteString(fmt.Sprintf(
			"<p>%s: %d</p>\n", pluralize(actionType), counts[actionType],
		))
	}
	sb.WriteString("</div>\n")

	if len(actions) == 0 {
		sb.WriteString(
			"<p class=\"no-actions\">No actions were taken on this day.</p>\n",
		)
		sb.WriteString("</body></html>")
		return sb.String()
	}

	sb.WriteString("<h2>Detailed Actions</h2>\n<table>\n")
	sb.WriteString(
		"<tr><th>Action</th><th>Subject</th><th>From</th>" +
			"<th>Rule</th><th>Details</th></tr>\n",
	)

	for _, action := range actions {
		sb.WriteString("<tr>\n")
		sb.WriteString(fmt.Sprintf("<td>%s</td>\n", action.ActionType))
		sb.WriteString(fmt.Sprintf("<td>%s</td>\n", action.MessageSubject))
		sb.WriteString(fmt.Sprintf("<td>%s</td>\n", action.Sender))
		sb.WriteString(fmt.Sprintf("<td>%s</td>\n", action.RuleName))
		sb.WriteString(fmt.Sprintf("<td>%s</td>\n", actionDetail(action)))
		sb.WriteString("</tr>\n")
	}

	sb.WriteString("</table>\n</body>\n</html>")
	return sb.String()
}

// renderMarkdown renders the lightweight markup report.
func renderMarkdown(
	day time.Time, actions []ActionRecord,
	types []string, counts map[string]int,
) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(
		"# StopPls Daily Report for %s\n\n", day.Format("January 02, 2006"),
	))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("Total actions: %d\n\n", len(actions)))
	for _, actionType := range types {
		sb.WriteString(fmt.Sprintf(
			"%s: %d\n\n", pluralize(actionType), counts[actionType],
		))
	}

	if len(actions) == 0 {
		sb.WriteString("*No actions were taken on this day.*\n")
		return sb.String()
	}

	sb.WriteString("## Detailed Actions\n\n")
	sb.WriteString("| Action | Subject | Sender | Rule |\n")
	sb.WriteString("| --- | --- | --- | --- |\n")
	for _, action := range actions {
		sb.WriteString(fmt.Sprintf(
			"| %s | %s | %s | %s |\n",
			action.ActionType, action.MessageSubject,
			action.Sender, action.RuleName,
		))
	}

	sb.WriteString("\n## Action Details\n\n")
	for i, action := range actions {
		sb.WriteString(fmt.Sprintf(
			"### %d. %s: %s\n\n",
			i+1, strings.ToUpper(action.ActionType), action.MessageSubject,
		))

		switch action.ActionType {
		case "reply":
			if text, ok := action.Details["text"]; ok {
				sb.WriteString(fmt.Sprintf(
					"**Reply text:**\n\n```\n%s\n```\n\n", text,
				))
			}
		case "label":
			if label, ok := action.Details["label"]; ok {
				sb.WriteString(fmt.Sprintf("**Label:** %s\n\n", label))
			}
		}
	}

	return sb.String()
}
