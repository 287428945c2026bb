package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/reeltrip/reeltrip/internal/domain"
)

const summarizePrompt = `You maintain the memory of a travel planning session.
Condense the previous summary and the new interaction turns below into one short summary.
Keep every located city, country and stated traveler preference; drop filler.
Return plain text only, at most 120 words.`

// Summarize regenerates a session summary from the previous one plus the
// turns accumulated since. Backs session memory compaction.
func (c *Client) Summarize(ctx context.Context, previousSummary string, turns []domain.Interaction) (string, error) {
	var b strings.Builder
	b.WriteString(summarizePrompt)

	if previousSummary != "" {
		b.WriteString("\n\nPrevious summary:\n")
		b.WriteString(previousSummary)
	}

	b.WriteString("\n\nNew turns:\n")
	for _, turn := range turns {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(turn.Role)), turn.Text)
	}

	text, err := c.generate(ctx, []part{{Text: b.String()}}, false)
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(text)
	if summary == "" {
		return "", fmt.Errorf("summarizer returned empty text")
	}
	return summary, nil
}
