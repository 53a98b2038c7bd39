package handlers

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"talent-matcher/internal/models"
	"talent-matcher/internal/services"
)

type ResumeHandler struct {
	storageService services.StorageService
	ingestService  services.IngestService
	maxFileSize    int64
}

func NewResumeHandler(
	storageService services.StorageService,
	ingestService services.IngestService,
	maxFileSize int64,
) *ResumeHandler {
	return &ResumeHandler{
		storageService: storageService,
		ingestService:  ingestService,
		maxFileSize:    maxFileSize,
	}
}

// HandleUpload handles POST /resumes. Saves the PDF, extracts its text,
// and adds the resume to the talent pool.
func (h *ResumeHandler) HandleUpload(c *fiber.Ctx) error {
	candidateName := c.FormValue("candidate_name")
	if candidateName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "candidate_name is required",
		})
	}

	file, err := c.FormFile("resume")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resume file is required",
		})
	}

	if file.Size > h.maxFileSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Resume file too large. Max size: %d bytes", h.maxFileSize),
		})
	}

	filename, filePath, err := h.storageService.SaveFile(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to save resume file: %v", err),
		})
	}

	resume, err := h.ingestService.IngestResume(c.UserContext(), candidateName, file.Filename, filePath)
	if err != nil {
		// Cleanup the stored file if ingestion fails
		if delErr := h.storageService.DeleteFile(filename); delErr != nil {
			log.Printf("⚠️  Failed to remove stored resume file %s: %v", filename, delErr)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to ingest resume: %v", err),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(models.ResumeUploadResponse{
		ID:            resume.ID.String(),
		CandidateName: resume.CandidateName,
		OriginalName:  resume.OriginalFileName,
	})
}
