package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"talent-matcher/internal/models"
	"talent-matcher/internal/repositories"
)

// IngestService adds resumes to the talent pool: extract text from the
// PDF, embed it under both metrics, and upsert one point per resume into
// the vector store.
type IngestService interface {
	IngestResume(ctx context.Context, candidateName, originalFileName, filePath string) (*models.Resume, error)
	RemoveResume(ctx context.Context, resumeID uuid.UUID) error
}

type ingestService struct {
	resumeRepo repositories.ResumeRepository
	pdfParser  PDFParserService
	embedder   EmbeddingService
	store      VectorStore
}

func NewIngestService(
	resumeRepo repositories.ResumeRepository,
	pdfParser PDFParserService,
	embedder EmbeddingService,
	store VectorStore,
) IngestService {
	return &ingestService{
		resumeRepo: resumeRepo,
		pdfParser:  pdfParser,
		embedder:   embedder,
		store:      store,
	}
}

// IngestResume implements IngestService.
func (s *ingestService) IngestResume(ctx context.Context, candidateName, originalFileName, filePath string) (*models.Resume, error) {
	text, err := s.pdfParser.ExtractText(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to extract resume text: %w", err)
	}

	var sparse *SparseVector
	var dense []float32

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vector, err := s.embedder.EmbedSparse(gctx, text)
		if err != nil {
			return fmt.Errorf("failed to embed resume (sparse): %w", err)
		}
		sparse = vector
		return nil
	})
	g.Go(func() error {
		vector, err := s.embedder.EmbedDense(gctx, text)
		if err != nil {
			return fmt.Errorf("failed to embed resume (dense): %w", err)
		}
		dense = vector
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resume := &models.Resume{
		ID:               uuid.New(),
		CandidateName:    candidateName,
		OriginalFileName: originalFileName,
		FilePath:         filePath,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := s.store.UpsertResume(ctx, resume.ID.String(), candidateName, text, sparse, dense); err != nil {
		return nil, fmt.Errorf("failed to upsert resume into talent pool: %w", err)
	}

	if err := s.resumeRepo.Create(resume); err != nil {
		// Keep the store and the table consistent if the record write fails.
		if delErr := s.store.DeleteResume(ctx, resume.ID.String()); delErr != nil {
			return nil, fmt.Errorf("failed to record resume (%v) and to roll back talent-pool point: %w", err, delErr)
		}
		return nil, err
	}

	return resume, nil
}

// RemoveResume implements IngestService.
func (s *ingestService) RemoveResume(ctx context.Context, resumeID uuid.UUID) error {
	if err := s.store.DeleteResume(ctx, resumeID.String()); err != nil {
		return err
	}
	return s.resumeRepo.Delete(resumeID)
}
