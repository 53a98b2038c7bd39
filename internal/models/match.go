package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CandidateRecord is a resume pulled from the talent pool for one matching
// run. Transient: produced by retrieval, consumed by rating, never stored.
type CandidateRecord struct {
	ResumeID      string
	ResumeText    string
	CandidateName string
	Rank          int
}

// CandidateMatch is one scored candidate persisted for a job. The full set
// for a job is replaced on every recomputation.
type CandidateMatch struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	JobID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	ResumeID      string         `gorm:"type:text;not null" json:"resume_id"`
	CandidateName string         `gorm:"type:text" json:"candidate_name"`
	ResumeText    string         `gorm:"type:text" json:"resume_text"`
	Ratings       datatypes.JSON `gorm:"type:jsonb" json:"ratings"`
	Score         float64        `gorm:"not null" json:"score"`
	CreatedAt     time.Time      `gorm:"type:timestamp;default:now()" json:"created_at"`
}

func (m *CandidateMatch) TableName() string {
	return "candidate_matches"
}

// RatingsMap decodes the stored per-category ratings.
func (m *CandidateMatch) RatingsMap() (map[string]float64, error) {
	ratings := make(map[string]float64)
	if len(m.Ratings) == 0 {
		return ratings, nil
	}
	if err := json.Unmarshal(m.Ratings, &ratings); err != nil {
		return nil, fmt.Errorf("failed to decode ratings: %w", err)
	}
	return ratings, nil
}

// SetRatings encodes and stores the per-category ratings.
func (m *CandidateMatch) SetRatings(ratings map[string]float64) error {
	raw, err := json.Marshal(ratings)
	if err != nil {
		return fmt.Errorf("failed to encode ratings: %w", err)
	}
	m.Ratings = raw
	return nil
}
