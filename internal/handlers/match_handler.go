package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"talent-matcher/internal/models"
	"talent-matcher/internal/repositories"
	"talent-matcher/internal/services"
)

type MatchHandler struct {
	jobRepo repositories.JobRepository
	matcher services.MatcherService
}

func NewMatchHandler(jobRepo repositories.JobRepository, matcher services.MatcherService) *MatchHandler {
	return &MatchHandler{
		jobRepo: jobRepo,
		matcher: matcher,
	}
}

// HandleComputeMatches handles POST /jobs/:id/matches. Runs the full
// matching pipeline and replaces the job's persisted match set.
func (h *MatchHandler) HandleComputeMatches(c *fiber.Ctx) error {
	job, status := h.loadOwnedJob(c)
	if job == nil {
		return status
	}

	result, err := h.matcher.ComputeMatches(c.UserContext(), job.ID)
	if err != nil {
		return matchErrorResponse(c, err)
	}

	return c.JSON(buildMatchesResponse(job.ID, result.Matches, result.Skipped))
}

// HandleGetMatches handles GET /jobs/:id/matches. Pure read of the
// previously persisted matches.
func (h *MatchHandler) HandleGetMatches(c *fiber.Ctx) error {
	job, status := h.loadOwnedJob(c)
	if job == nil {
		return status
	}

	matches, err := h.matcher.GetMatches(c.UserContext(), job.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load matches",
		})
	}

	return c.JSON(buildMatchesResponse(job.ID, matches, nil))
}

// loadOwnedJob parses the job id, loads the job, and enforces ownership.
// On failure it returns nil and the already-written error response.
func (h *MatchHandler) loadOwnedJob(c *fiber.Ctx) (*models.Job, error) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job ID format",
		})
	}

	job, err := h.jobRepo.FindByID(jobID)
	if err != nil {
		if errors.Is(err, repositories.ErrJobNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Job not found",
			})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load job",
		})
	}

	if job.UserID != userID {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Job belongs to another user",
		})
	}

	return job, nil
}

func buildMatchesResponse(jobID uuid.UUID, matches []models.CandidateMatch, skipped []services.RatingFailure) models.MatchesResponse {
	response := models.MatchesResponse{
		JobID:   jobID.String(),
		Matches: make([]models.MatchEntry, 0, len(matches)),
	}

	for _, match := range matches {
		ratings, err := match.RatingsMap()
		if err != nil {
			ratings = nil
		}
		response.Matches = append(response.Matches, models.MatchEntry{
			ResumeID:      match.ResumeID,
			CandidateName: match.CandidateName,
			Ratings:       ratings,
			Score:         match.Score,
		})
	}

	for _, failure := range skipped {
		response.Skipped = append(response.Skipped, models.SkippedCandidate{
			ResumeID: failure.ResumeID,
			Reason:   failure.Err.Error(),
		})
	}

	return response
}

// matchErrorResponse maps the matcher error taxonomy to HTTP statuses:
// schema mismatches are client errors, retrieval and rating failures are
// upstream failures, persistence failures are server errors.
func matchErrorResponse(c *fiber.Ctx, err error) error {
	var mismatch *services.SchemaMismatchError
	if errors.As(err, &mismatch) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":       mismatch.Error(),
			"schema_keys": mismatch.SchemaKeys,
			"weight_keys": mismatch.WeightKeys,
		})
	}

	var retrieval *services.RetrievalError
	if errors.As(err, &retrieval) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": retrieval.Error(),
		})
	}

	var rating *services.RatingError
	if errors.As(err, &rating) {
		failed := make([]string, 0, len(rating.Failures))
		for _, failure := range rating.Failures {
			failed = append(failed, failure.ResumeID)
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":          rating.Error(),
			"failed_resumes": failed,
		})
	}

	var persistence *repositories.PersistenceError
	if errors.As(err, &persistence) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":           persistence.Error(),
			"old_data_intact": persistence.OldDataIntact,
		})
	}

	if errors.Is(err, repositories.ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}
