package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"talent-matcher/internal/config"
	"talent-matcher/internal/models"
	"talent-matcher/internal/repositories"
)

// MatcherService is the candidate matching engine: it validates a job's
// schema/weight pairing, retrieves candidates from the talent pool with a
// hybrid RRF query, rates them against the schema with bounded
// parallelism, ranks them by weighted score, and replaces the job's
// persisted match set.
type MatcherService interface {
	ComputeMatches(ctx context.Context, jobID uuid.UUID) (*MatchResult, error)
	GetMatches(ctx context.Context, jobID uuid.UUID) ([]models.CandidateMatch, error)
}

// MatchResult is the outcome of one matching run: the ranked matches that
// were persisted and, under the skip-and-report policy, the candidates
// that could not be rated.
type MatchResult struct {
	Matches []models.CandidateMatch
	Skipped []RatingFailure
}

type matcherService struct {
	jobRepo   repositories.JobRepository
	matchRepo repositories.MatchRepository
	embedder  EmbeddingService
	store     VectorStore
	rater     RatingAgent
	topK      int
	workers   int
	policy    config.RatingPolicy
}

func NewMatcherService(
	jobRepo repositories.JobRepository,
	matchRepo repositories.MatchRepository,
	embedder EmbeddingService,
	store VectorStore,
	rater RatingAgent,
	cfg config.MatcherConfig,
) MatcherService {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	topK := cfg.TopK
	if topK < 1 {
		topK = 10
	}
	return &matcherService{
		jobRepo:   jobRepo,
		matchRepo: matchRepo,
		embedder:  embedder,
		store:     store,
		rater:     rater,
		topK:      topK,
		workers:   workers,
		policy:    cfg.RatingPolicy,
	}
}

// ComputeMatches implements MatcherService. The pipeline is
// validate -> retrieve -> rate -> score/rank -> persist; every stage
// fails fast and nothing partial is persisted.
func (m *matcherService) ComputeMatches(ctx context.Context, jobID uuid.UUID) (*MatchResult, error) {
	job, err := m.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}

	schema, err := job.Schema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	weights, err := job.Weights()
	if err != nil {
		return nil, err
	}
	if len(weights) == 0 {
		weights = models.DefaultWeights(schema)
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	// Validation runs before any embedding, store, or agent call so an
	// invalid pairing costs nothing.
	if err := validateSchemaWeights(schema, weights); err != nil {
		return nil, err
	}

	candidates, err := m.retrieve(ctx, schema.CategoryNames())
	if err != nil {
		return nil, err
	}

	rated, skipped, err := m.rateCandidates(ctx, candidates, schema)
	if err != nil {
		return nil, err
	}

	matches, excluded := scoreAndRank(jobID, rated, schema, weights)
	if len(excluded) > 0 && m.policy == config.PolicyFailFast {
		return nil, &RatingError{Failures: excluded}
	}
	skipped = append(skipped, excluded...)

	if err := m.matchRepo.ReplaceForJob(jobID, matches); err != nil {
		return nil, err
	}

	return &MatchResult{Matches: matches, Skipped: skipped}, nil
}

// GetMatches implements MatcherService. Pure read of the persisted match
// set; the pipeline is not touched.
func (m *matcherService) GetMatches(ctx context.Context, jobID uuid.UUID) ([]models.CandidateMatch, error) {
	return m.matchRepo.FindByJobID(jobID)
}

// validateSchemaWeights checks that the weight-map keys and the schema's
// category names are identical as sets, independent of order.
func validateSchemaWeights(schema models.RatingSchema, weights models.WeightMap) error {
	schemaKeys := schema.CategoryNames()

	match := len(schemaKeys) == len(weights)
	if match {
		for _, key := range schemaKeys {
			if _, ok := weights[key]; !ok {
				match = false
				break
			}
		}
	}
	if match {
		return nil
	}

	weightKeys := make([]string, 0, len(weights))
	for key := range weights {
		weightKeys = append(weightKeys, key)
	}
	sort.Strings(weightKeys)
	sortedSchemaKeys := append([]string(nil), schemaKeys...)
	sort.Strings(sortedSchemaKeys)

	return &SchemaMismatchError{SchemaKeys: sortedSchemaKeys, WeightKeys: weightKeys}
}

// retrieve embeds the schema's category names and issues one fused
// top-K query against the talent pool. The sparse and dense embedding
// calls have no ordering dependency and run concurrently.
func (m *matcherService) retrieve(ctx context.Context, categoryNames []string) ([]models.CandidateRecord, error) {
	queryText := strings.Join(categoryNames, ", ")

	var sparse *SparseVector
	var dense []float32

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vector, err := m.embedder.EmbedSparse(gctx, queryText)
		if err != nil {
			return &RetrievalError{Stage: "sparse embedding", Err: err}
		}
		sparse = vector
		return nil
	})
	g.Go(func() error {
		vector, err := m.embedder.EmbedDense(gctx, queryText)
		if err != nil {
			return &RetrievalError{Stage: "dense embedding", Err: err}
		}
		dense = vector
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	points, err := m.store.HybridSearch(ctx, sparse, dense, m.topK)
	if err != nil {
		return nil, &RetrievalError{Stage: "vector store query", Err: err}
	}

	records := make([]models.CandidateRecord, 0, len(points))
	for i, point := range points {
		records = append(records, models.CandidateRecord{
			ResumeID:      point.ID,
			ResumeText:    point.ResumeText,
			CandidateName: point.CandidateName,
			Rank:          i + 1,
		})
	}
	return records, nil
}

type ratedCandidate struct {
	record  models.CandidateRecord
	ratings map[string]float64
}

// rateCandidates fans the candidate list out over a fixed number of
// workers, each rating a contiguous chunk. Every worker accumulates into
// its own result slot; slots are merged only after all workers have
// joined, so no collection is ever written from two goroutines.
func (m *matcherService) rateCandidates(ctx context.Context, candidates []models.CandidateRecord, schema models.RatingSchema) ([]ratedCandidate, []RatingFailure, error) {
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	chunks := partitionCandidates(candidates, m.workers)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type workerResult struct {
		rated    []ratedCandidate
		failures []RatingFailure
	}

	results := make([]workerResult, len(chunks))
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		wg.Add(1)
		go func(slot int, chunk []models.CandidateRecord) {
			defer wg.Done()
			var out workerResult
			defer func() { results[slot] = out }()

			for _, candidate := range chunk {
				select {
				case <-runCtx.Done():
					return
				default:
				}

				ratings, err := m.rater.RateResume(runCtx, schema, candidate.ResumeText)
				if err != nil {
					out.failures = append(out.failures, RatingFailure{ResumeID: candidate.ResumeID, Err: err})
					if m.policy == config.PolicyFailFast {
						// Cancel in-flight sibling work; the run is over.
						cancel()
						return
					}
					continue
				}
				out.rated = append(out.rated, ratedCandidate{record: candidate, ratings: ratings})
			}
		}(i, chunk)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("candidate rating cancelled: %w", err)
	}

	var rated []ratedCandidate
	var failures []RatingFailure
	for _, result := range results {
		rated = append(rated, result.rated...)
		failures = append(failures, result.failures...)
	}

	if len(failures) > 0 && m.policy == config.PolicyFailFast {
		return nil, nil, &RatingError{Failures: failures}
	}
	return rated, failures, nil
}

// partitionCandidates splits candidates into workers contiguous chunks of
// near-equal size; the last chunk absorbs the remainder.
func partitionCandidates(candidates []models.CandidateRecord, workers int) [][]models.CandidateRecord {
	if workers < 1 {
		workers = 1
	}

	chunkSize := len(candidates) / workers
	chunks := make([][]models.CandidateRecord, 0, workers)
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if i == workers-1 {
			end = len(candidates)
		}
		chunks = append(chunks, candidates[start:end])
	}
	return chunks
}

// scoreAndRank computes each candidate's weighted aggregate score and
// imposes the final total order: score descending, resume id ascending on
// ties so repeated runs rank identically. A candidate whose rating map
// does not cover the full schema is excluded and reported, never scored
// as if the missing category were zero.
func scoreAndRank(jobID uuid.UUID, rated []ratedCandidate, schema models.RatingSchema, weights models.WeightMap) ([]models.CandidateMatch, []RatingFailure) {
	matches := make([]models.CandidateMatch, 0, len(rated))
	var excluded []RatingFailure

	for _, candidate := range rated {
		missing := ""
		for _, category := range schema.Categories {
			if _, ok := candidate.ratings[category.Name]; !ok {
				missing = category.Name
				break
			}
		}
		if missing != "" {
			excluded = append(excluded, RatingFailure{
				ResumeID: candidate.record.ResumeID,
				Err:      fmt.Errorf("rating map is missing category %q", missing),
			})
			continue
		}

		score := 0.0
		for name, rating := range candidate.ratings {
			score += rating * weights[name]
		}

		match := models.CandidateMatch{
			JobID:         jobID,
			ResumeID:      candidate.record.ResumeID,
			CandidateName: candidate.record.CandidateName,
			ResumeText:    candidate.record.ResumeText,
			Score:         score,
		}
		if err := match.SetRatings(candidate.ratings); err != nil {
			excluded = append(excluded, RatingFailure{ResumeID: candidate.record.ResumeID, Err: err})
			continue
		}
		matches = append(matches, match)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ResumeID < matches[j].ResumeID
	})

	return matches, excluded
}
