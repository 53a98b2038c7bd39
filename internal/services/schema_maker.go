package services

import (
	"context"
	"encoding/json"
	"fmt"

	"talent-matcher/internal/models"
)

// SchemaAgent derives a rating schema from a free-form job description.
type SchemaAgent interface {
	GenerateSchema(ctx context.Context, jobDescription string) (models.RatingSchema, error)
}

type geminiSchemaAgent struct {
	gemini        GeminiService
	promptBuilder *PromptBuilder
	maxRetries    int
}

func NewGeminiSchemaAgent(gemini GeminiService, maxRetries int) SchemaAgent {
	return &geminiSchemaAgent{
		gemini:        gemini,
		promptBuilder: NewPromptBuilder(),
		maxRetries:    maxRetries,
	}
}

// GenerateSchema implements SchemaAgent.
func (a *geminiSchemaAgent) GenerateSchema(ctx context.Context, jobDescription string) (models.RatingSchema, error) {
	var schema models.RatingSchema

	prompt := a.promptBuilder.BuildSchemaPrompt(jobDescription)

	response, err := a.gemini.GenerateTextWithRetry(ctx, prompt, 0.4, a.maxRetries)
	if err != nil {
		return schema, fmt.Errorf("failed to generate rating schema: %w", err)
	}

	jsonStr := extractJSON(response)
	if err := json.Unmarshal([]byte(jsonStr), &schema); err != nil {
		return schema, fmt.Errorf("failed to parse rating schema response: %w\nResponse: %s", err, response)
	}

	if err := schema.Validate(); err != nil {
		return schema, fmt.Errorf("generated rating schema is invalid: %w", err)
	}

	return schema, nil
}
