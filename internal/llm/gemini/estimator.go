package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reeltrip/reeltrip/internal/domain"
)

const estimatePrompt = `You are a travel reel analyzer.
You will see multiple frames from a short travel video.
Infer the most likely CITY and COUNTRY, the REGION if you can tell, and up to 8 famous landmarks.
Report your overall confidence in the location as a number between 0.0 and 1.0.

Return STRICT JSON only. NO prose. NO markdown. NO surrounding fences.
The JSON schema must be:
{
  "city": "string",
  "country": "string",
  "region": "string or empty",
  "confidence": 0.0,
  "landmarks": [
    {"name": "string", "confidence": 0.0, "evidence": "short reason"}
  ]
}`

const refinePrompt = `You are a travel geolocation expert re-checking an earlier guess.
Given the current location estimate below, re-evaluate it against the listed landmarks and any session context.
Correct the city or country if the evidence points elsewhere, and report your updated confidence between 0.0 and 1.0.

Return STRICT JSON only, same schema as the input estimate:
{"city": "string", "country": "string", "region": "string or empty", "confidence": 0.0, "landmarks": [...]}`

// estimatePayload mirrors the JSON the model is instructed to return.
type estimatePayload struct {
	City       string            `json:"city"`
	Country    string            `json:"country"`
	Region     string            `json:"region"`
	Confidence float64           `json:"confidence"`
	Landmarks  []domain.Landmark `json:"landmarks"`
}

// Estimate sends the frames to the vision model and parses its location
// guess. Satisfies the estimator pool contract; each pool slot calls this
// independently.
func (c *Client) Estimate(ctx context.Context, frames []domain.Frame, memoryContext string) (domain.LocationEstimate, error) {
	parts := []part{{Text: withMemoryContext(estimatePrompt, memoryContext)}}
	for _, frame := range frames {
		mime := frame.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: mime,
			Data:     encodeFrame(frame.Data),
		}})
	}

	text, err := c.generate(ctx, parts, true)
	if err != nil {
		return domain.LocationEstimate{}, err
	}

	var payload estimatePayload
	if err := json.Unmarshal([]byte(stripFences(text)), &payload); err != nil {
		return domain.LocationEstimate{}, fmt.Errorf("vision model returned invalid JSON: %w", err)
	}

	return domain.LocationEstimate{
		City:       payload.City,
		Country:    payload.Country,
		Region:     payload.Region,
		Confidence: clamp(payload.Confidence),
		Landmarks:  payload.Landmarks,
	}, nil
}

// Refine re-evaluates a merged estimate and returns the model's updated
// candidate.
func (c *Client) Refine(ctx context.Context, current domain.MergedEstimate, memoryContext string) (domain.MergedEstimate, error) {
	currentJSON, err := json.Marshal(estimatePayload{
		City:       current.City,
		Country:    current.Country,
		Region:     current.Region,
		Confidence: current.AggregateConfidence,
		Landmarks:  current.Landmarks,
	})
	if err != nil {
		return domain.MergedEstimate{}, fmt.Errorf("failed to encode current estimate: %w", err)
	}

	prompt := withMemoryContext(refinePrompt, memoryContext) +
		"\n\nCurrent estimate:\n" + string(currentJSON)

	text, err := c.generate(ctx, []part{{Text: prompt}}, true)
	if err != nil {
		return domain.MergedEstimate{}, err
	}

	var payload estimatePayload
	if err := json.Unmarshal([]byte(stripFences(text)), &payload); err != nil {
		return domain.MergedEstimate{}, fmt.Errorf("refinement model returned invalid JSON: %w", err)
	}

	return domain.MergedEstimate{
		City:                payload.City,
		Country:             payload.Country,
		Region:              payload.Region,
		AggregateConfidence: clamp(payload.Confidence),
		ContributingSources: current.ContributingSources,
		Landmarks:           payload.Landmarks,
	}, nil
}

func withMemoryContext(prompt, memoryContext string) string {
	if memoryContext == "" {
		return prompt
	}
	return prompt + "\n\nSession context from earlier interactions:\n" + memoryContext
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
