package services

import (
	"fmt"
	"strings"

	"talent-matcher/internal/models"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildRatingPrompt creates the prompt that rates one resume against a
// job's rating schema. The response contract is a flat JSON object with
// one [0,1] rating per category, nothing else.
func (pb *PromptBuilder) BuildRatingPrompt(schema models.RatingSchema, resumeText string) string {
	var categories strings.Builder
	for i, c := range schema.Categories {
		if c.Description != "" {
			categories.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, c.Name, c.Description))
		} else {
			categories.WriteString(fmt.Sprintf("%d. %s\n", i+1, c.Name))
		}
	}

	var keys strings.Builder
	for i, c := range schema.Categories {
		if i > 0 {
			keys.WriteString(", ")
		}
		keys.WriteString(fmt.Sprintf("%q: <0.0-1.0>", c.Name))
	}

	return fmt.Sprintf(`You are an expert HR recruiter rating a candidate's resume.

RATING CATEGORIES:
%s
CANDIDATE RESUME:
%s

Rate how well the resume matches each category on a scale from 0.0 (no match) to 1.0 (perfect match).

Return ONLY a JSON object with exactly one entry per category and no other keys:
{%s}

Do not add commentary, explanations, or extra fields.`,
		categories.String(), resumeText, keys.String())
}

// BuildSchemaPrompt creates the prompt that derives a rating schema from a
// job description.
func (pb *PromptBuilder) BuildSchemaPrompt(jobDescription string) string {
	return fmt.Sprintf(`You are an expert HR recruiter designing an evaluation rubric for a job opening.

JOB DESCRIPTION:
%s

Derive 3 to 6 evaluation categories a recruiter should rate candidate resumes on for this job. Each category needs a short snake_case name and a one-sentence description of what a strong candidate looks like.

Return ONLY a JSON object in this format:
{
  "categories": [
    {"name": "<snake_case_name>", "description": "<one sentence>"}
  ]
}

Do not add commentary or extra fields.`, jobDescription)
}

// extractJSON tries to extract JSON from text that might contain markdown
// or other formatting around it.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	startObj := strings.Index(text, "{")
	endObj := strings.LastIndex(text, "}")
	if startObj != -1 && endObj != -1 && endObj > startObj {
		return text[startObj : endObj+1]
	}

	startArr := strings.Index(text, "[")
	endArr := strings.LastIndex(text, "]")
	if startArr != -1 && endArr != -1 && endArr > startArr {
		return text[startArr : endArr+1]
	}

	return text
}
