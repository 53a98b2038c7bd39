package models

import (
	"time"

	"github.com/google/uuid"
)

// Resume records a talent-pool resume that has been ingested into the
// vector store. The resume text itself lives in the vector point payload.
type Resume struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CandidateName    string    `gorm:"type:text;not null" json:"candidate_name"`
	OriginalFileName string    `gorm:"type:text" json:"original_filename"`
	FilePath         string    `gorm:"type:text" json:"file_path"`
	CreatedAt        time.Time `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"type:timestamp;default:now()" json:"updated_at"`
}

func (r *Resume) TableName() string {
	return "resumes"
}
