package models

import "fmt"

// RatingCategory is one named evaluation axis of a rating schema. The
// description is prompt context for the rating agent; the matching engine
// only ever looks at the name.
type RatingCategory struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RatingSchema is the ordered set of categories a job rates candidates on.
type RatingSchema struct {
	Categories []RatingCategory `json:"categories"`
}

// CategoryNames returns the category names in schema order.
func (s RatingSchema) CategoryNames() []string {
	names := make([]string, 0, len(s.Categories))
	for _, c := range s.Categories {
		names = append(names, c.Name)
	}
	return names
}

// Validate checks that the schema has at least one category and that
// category names are non-empty and unique.
func (s RatingSchema) Validate() error {
	if len(s.Categories) == 0 {
		return fmt.Errorf("rating schema has no categories")
	}
	seen := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		if c.Name == "" {
			return fmt.Errorf("rating schema contains a category with an empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("rating schema contains duplicate category %q", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// WeightMap assigns an employer-chosen importance multiplier to each
// rating category.
type WeightMap map[string]float64

// Validate rejects negative weights.
func (w WeightMap) Validate() error {
	for name, weight := range w {
		if weight < 0 {
			return fmt.Errorf("weight for category %q is negative: %v", name, weight)
		}
	}
	return nil
}

// DefaultWeights builds a weight map giving every schema category
// weight 1.0. Used when a job carries no explicit weight map.
func DefaultWeights(schema RatingSchema) WeightMap {
	weights := make(WeightMap, len(schema.Categories))
	for _, c := range schema.Categories {
		weights[c.Name] = 1.0
	}
	return weights
}
