package services

import (
	"context"
	"encoding/json"
	"fmt"

	"talent-matcher/internal/models"
)

// RatingAgent rates one resume against a rating schema, returning a
// numeric rating in [0,1] per schema category. A response that does not
// cover exactly the schema's categories is an error, never a
// default-filled map.
type RatingAgent interface {
	RateResume(ctx context.Context, schema models.RatingSchema, resumeText string) (map[string]float64, error)
}

type geminiRater struct {
	gemini        GeminiService
	promptBuilder *PromptBuilder
	maxRetries    int
}

func NewGeminiRater(gemini GeminiService, maxRetries int) RatingAgent {
	return &geminiRater{
		gemini:        gemini,
		promptBuilder: NewPromptBuilder(),
		maxRetries:    maxRetries,
	}
}

// RateResume implements RatingAgent.
func (r *geminiRater) RateResume(ctx context.Context, schema models.RatingSchema, resumeText string) (map[string]float64, error) {
	prompt := r.promptBuilder.BuildRatingPrompt(schema, resumeText)

	response, err := r.gemini.GenerateTextWithRetry(ctx, prompt, 0.2, r.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ratings: %w", err)
	}

	ratings, err := parseRatings(response, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ratings response: %w", err)
	}

	return ratings, nil
}

// parseRatings decodes an agent response and validates it against the
// schema: every category present, no unknown categories, every rating
// inside [0,1].
func parseRatings(response string, schema models.RatingSchema) (map[string]float64, error) {
	jsonStr := extractJSON(response)

	var ratings map[string]float64
	if err := json.Unmarshal([]byte(jsonStr), &ratings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w\nResponse: %s", err, response)
	}

	known := make(map[string]bool, len(schema.Categories))
	for _, c := range schema.Categories {
		known[c.Name] = true
		rating, ok := ratings[c.Name]
		if !ok {
			return nil, fmt.Errorf("rating for category %q is missing", c.Name)
		}
		if rating < 0 || rating > 1 {
			return nil, fmt.Errorf("rating for category %q is out of range [0,1]: %v", c.Name, rating)
		}
	}

	for name := range ratings {
		if !known[name] {
			return nil, fmt.Errorf("rating for unknown category %q", name)
		}
	}

	return ratings, nil
}
