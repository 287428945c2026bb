package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/reeltrip/reeltrip/internal/domain"
)

const composePromptHeader = `You are a travel planner. Build a %d-day itinerary for %s in markdown.
Structure each day with morning, afternoon and evening sections.
Prioritize the detected landmarks, weave in the listed places by rating, and add local food suggestions.
Keep walking routes sensible so nearby sights land in the same half-day.
Return markdown only, starting with a top-level heading.`

// Compose asks the model for a day-by-day markdown itinerary built from
// the located estimate and the places found for it.
func (c *Client) Compose(ctx context.Context, estimate domain.MergedEstimate, places []domain.Place, memoryContext string, days int) (domain.Itinerary, error) {
	var b strings.Builder
	fmt.Fprintf(&b, composePromptHeader, days, estimate.DisplayName())

	b.WriteString("\n\nDetected landmarks:\n")
	if len(estimate.Landmarks) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, lm := range estimate.Landmarks {
		fmt.Fprintf(&b, "- %s (conf %.2f)\n", lm.Name, lm.Confidence)
	}

	b.WriteString("\nPlaces found nearby:\n")
	if len(places) == 0 {
		b.WriteString("- (none)\n")
	}
	for i, p := range places {
		if i >= 12 {
			break
		}
		fmt.Fprintf(&b, "- %s (rating %.1f) %s\n", p.Name, p.Rating, p.Address)
	}

	prompt := withMemoryContext(b.String(), memoryContext)
	text, err := c.generate(ctx, []part{{Text: prompt}}, false)
	if err != nil {
		return domain.Itinerary{}, err
	}

	markdown := strings.TrimSpace(text)
	if markdown == "" {
		return domain.Itinerary{}, fmt.Errorf("itinerary model returned empty markdown")
	}

	return domain.Itinerary{Days: days, Markdown: markdown}, nil
}
