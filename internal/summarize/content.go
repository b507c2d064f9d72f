package summarize

import (
	"fmt"
	"strings"

	"mailbrief/internal/model"
)

const (
	maxBodyChars = 2000
	// ~4 chars per token; the whole prepared content is kept under this.
	maxContentTokens = 8000
)

// BuildThreadContent formats a thread for the summarizer: subject and
// participants up front, then each message numbered with sender, date, and
// body. Long bodies are truncated per message and the whole content is
// capped near the token limit, cutting at a message boundary when possible.
func BuildThreadContent(t model.EnrichedThread) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", t.Subject)
	fmt.Fprintf(&b, "Participants: %s\n", strings.Join(t.Participants, ", "))
	fmt.Fprintf(&b, "Total Messages: %d\n\n", len(t.Thread.Messages))
	b.WriteString("Thread Messages:\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")

	for i, msg := range t.Thread.Messages {
		from := msg.From
		if from == "" {
			from = "Unknown"
		}
		date := msg.Date
		if date == "" {
			date = "Unknown date"
		}
		body := strings.TrimSpace(msg.Body)
		if len(body) > maxBodyChars {
			body = body[:maxBodyChars-3] + "..."
		}
		fmt.Fprintf(&b, "\nMessage %d:\nFrom: %s\nDate: %s\nContent: %s\n", i+1, from, date, body)
		b.WriteString(strings.Repeat("-", 30) + "\n")
	}

	return truncateContent(b.String(), maxContentTokens)
}

func estimateTokens(text string) int {
	return len(text) / 4
}

func truncateContent(content string, maxTokens int) string {
	if estimateTokens(content) <= maxTokens {
		return content
	}
	charLimit := maxTokens * 4
	truncated := content[:charLimit-100]
	// Prefer cutting at a message boundary, unless it would drop too much.
	if idx := strings.LastIndex(truncated, "\nMessage "); idx > charLimit/2 {
		truncated = truncated[:idx]
	}
	return truncated + "\n\n[Content truncated due to length...]"
}
