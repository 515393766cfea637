package agent

import (
	"fmt"
	"strings"
)

// buildAnswer combines the model's final text with a rendered view of what
// the tools actually produced. Search results take precedence over
// summaries, summaries over sent emails; a task that used no result-bearing
// tool answers with the text alone.
func buildAnswer(text string, outcomes map[string][]map[string]any) string {
	if block := renderSearchResults(outcomes["searchDocuments"]); block != "" {
		return text + "\n\n" + block
	}
	if block := renderSummaries(outcomes["summarizeDocument"]); block != "" {
		return text + "\n\n" + block
	}
	if block := renderSentEmails(outcomes["sendEmail"]); block != "" {
		return text + "\n\n" + block
	}
	return text
}

func renderSearchResults(responses []map[string]any) string {
	var sb strings.Builder
	n := 0

	for _, resp := range responses {
		results, ok := resp["results"].([]map[string]any)
		if !ok {
			continue
		}
		for _, row := range results {
			n++
			if n > 1 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%d. 📁 %s — %s (<a href=\"%s\">Open</a>)",
				n, str(row, "folderPath"), str(row, "fileName"), str(row, "googleLink"))
		}
	}

	if n == 0 {
		return ""
	}
	return sb.String()
}

func renderSummaries(responses []map[string]any) string {
	var blocks []string

	for _, resp := range responses {
		if ok, _ := resp["success"].(bool); !ok {
			continue
		}

		name := str(resp, "documentName")
		if ext := str(resp, "extension"); ext != "" && !strings.HasSuffix(name, ext) {
			name += ext
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📄 %s", name)
		if folder := str(resp, "folderPath"); folder != "" {
			fmt.Fprintf(&sb, "\n📁 %s", folder)
		}
		fmt.Fprintf(&sb, "\n🔗 %s", str(resp, "googleLink"))
		blocks = append(blocks, sb.String())
	}

	return strings.Join(blocks, "\n\n")
}

func renderSentEmails(responses []map[string]any) string {
	var blocks []string

	for _, resp := range responses {
		if ok, _ := resp["success"].(bool); !ok {
			continue
		}
		sent, ok := resp["sentEmail"].(map[string]any)
		if !ok {
			continue
		}

		blocks = append(blocks, fmt.Sprintf("📧 %s\nSubject: %s\n%s",
			str(sent, "to"), str(sent, "subject"), str(sent, "body")))
	}

	return strings.Join(blocks, "\n\n")
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
