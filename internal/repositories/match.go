package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"talent-matcher/internal/models"
)

// PersistenceError reports a failed match write. OldDataIntact tells the
// caller whether the previously stored match set survived: when false the
// old set was deleted but the new one was not written, and the caller must
// recompute or retry.
type PersistenceError struct {
	JobID         uuid.UUID
	OldDataIntact bool
	Err           error
}

func (e *PersistenceError) Error() string {
	if e.OldDataIntact {
		return fmt.Sprintf("failed to replace matches for job %s (previous matches intact): %v", e.JobID, e.Err)
	}
	return fmt.Sprintf("failed to replace matches for job %s (previous matches lost): %v", e.JobID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type MatchRepository interface {
	ReplaceForJob(jobID uuid.UUID, matches []models.CandidateMatch) error
	FindByJobID(jobID uuid.UUID) ([]models.CandidateMatch, error)
}

type matchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepository{db: db}
}

// ReplaceForJob deletes every stored match for the job and inserts the new
// set inside one transaction, so a failed insert rolls the delete back and
// the previous matches stay readable.
func (r *matchRepository) ReplaceForJob(jobID uuid.UUID, matches []models.CandidateMatch) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.CandidateMatch{}).Error; err != nil {
			return fmt.Errorf("failed to delete previous matches: %w", err)
		}
		if len(matches) == 0 {
			return nil
		}
		if err := tx.Create(&matches).Error; err != nil {
			return fmt.Errorf("failed to insert matches: %w", err)
		}
		return nil
	})
	if err != nil {
		// The transaction rolled back, so the old set is still there.
		return &PersistenceError{JobID: jobID, OldDataIntact: true, Err: err}
	}
	return nil
}

// FindByJobID implements MatchRepository. Results come back ranked.
func (r *matchRepository) FindByJobID(jobID uuid.UUID) ([]models.CandidateMatch, error) {
	var matches []models.CandidateMatch
	if err := r.db.
		Where("job_id = ?", jobID).
		Order("score DESC, resume_id ASC").
		Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("failed to find matches: %w", err)
	}
	return matches, nil
}
