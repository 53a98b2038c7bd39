package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Job struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title        string         `gorm:"type:text;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	RatingSchema datatypes.JSON `gorm:"type:jsonb" json:"rating_schema"`
	WeightMap    datatypes.JSON `gorm:"type:jsonb" json:"weight_map"`
	CreatedAt    time.Time      `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"type:timestamp;default:now()" json:"updated_at"`
}

func (j *Job) TableName() string {
	return "jobs"
}

// Schema decodes the stored rating schema.
func (j *Job) Schema() (RatingSchema, error) {
	var schema RatingSchema
	if len(j.RatingSchema) == 0 {
		return schema, fmt.Errorf("job %s has no rating schema", j.ID)
	}
	if err := json.Unmarshal(j.RatingSchema, &schema); err != nil {
		return schema, fmt.Errorf("failed to decode rating schema: %w", err)
	}
	return schema, nil
}

// Weights decodes the stored weight map. A job with no stored weight map
// yields a nil map; the matcher substitutes default weights in that case.
func (j *Job) Weights() (WeightMap, error) {
	if len(j.WeightMap) == 0 {
		return nil, nil
	}
	var weights WeightMap
	if err := json.Unmarshal(j.WeightMap, &weights); err != nil {
		return nil, fmt.Errorf("failed to decode weight map: %w", err)
	}
	return weights, nil
}

// SetSchema encodes and stores the rating schema.
func (j *Job) SetSchema(schema RatingSchema) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to encode rating schema: %w", err)
	}
	j.RatingSchema = raw
	return nil
}

// SetWeights encodes and stores the weight map.
func (j *Job) SetWeights(weights WeightMap) error {
	raw, err := json.Marshal(weights)
	if err != nil {
		return fmt.Errorf("failed to encode weight map: %w", err)
	}
	j.WeightMap = raw
	return nil
}
