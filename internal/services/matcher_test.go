package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talent-matcher/internal/config"
	"talent-matcher/internal/models"
	"talent-matcher/internal/repositories"
)

// mockJobRepo serves a single job.
type mockJobRepo struct {
	job *models.Job
}

func (m *mockJobRepo) Create(job *models.Job) error { return nil }

func (m *mockJobRepo) FindByID(id uuid.UUID) (*models.Job, error) {
	if m.job != nil && m.job.ID == id {
		return m.job, nil
	}
	return nil, repositories.ErrJobNotFound
}

func (m *mockJobRepo) FindByUserID(userID uuid.UUID) ([]models.Job, error) { return nil, nil }

func (m *mockJobRepo) Update(job *models.Job) error { return nil }

// mockMatchRepo stores match sets in memory with replace semantics.
type mockMatchRepo struct {
	mu           sync.Mutex
	stored       map[uuid.UUID][]models.CandidateMatch
	replaceCalls int
	replaceErr   error
}

func (m *mockMatchRepo) ReplaceForJob(jobID uuid.UUID, matches []models.CandidateMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	if m.stored == nil {
		m.stored = make(map[uuid.UUID][]models.CandidateMatch)
	}
	m.stored[jobID] = append([]models.CandidateMatch(nil), matches...)
	return nil
}

func (m *mockMatchRepo) FindByJobID(jobID uuid.UUID) ([]models.CandidateMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stored[jobID], nil
}

// mockEmbedder returns fixed vectors and counts calls.
type mockEmbedder struct {
	mu        sync.Mutex
	sparse    *SparseVector
	dense     []float32
	sparseErr error
	denseErr  error
	calls     int
}

func (m *mockEmbedder) EmbedSparse(ctx context.Context, text string) (*SparseVector, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.sparseErr != nil {
		return nil, m.sparseErr
	}
	return m.sparse, nil
}

func (m *mockEmbedder) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.denseErr != nil {
		return nil, m.denseErr
	}
	return m.dense, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockVectorStore serves a fixed candidate list and records the query.
type mockVectorStore struct {
	points      []ResumePoint
	searchErr   error
	searchCalls int
	gotLimit    int
	gotSparse   *SparseVector
	gotDense    []float32
}

func (m *mockVectorStore) EnsureCollection(ctx context.Context) error { return nil }

func (m *mockVectorStore) UpsertResume(ctx context.Context, resumeID, candidateName, resumeText string, sparse *SparseVector, dense []float32) error {
	return nil
}

func (m *mockVectorStore) HybridSearch(ctx context.Context, sparse *SparseVector, dense []float32, limit int) ([]ResumePoint, error) {
	m.searchCalls++
	m.gotLimit = limit
	m.gotSparse = sparse
	m.gotDense = dense
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.points, nil
}

func (m *mockVectorStore) DeleteResume(ctx context.Context, resumeID string) error { return nil }

// mockRater rates every category 0.5 unless rateFn overrides it. Safe for
// concurrent use.
type mockRater struct {
	mu     sync.Mutex
	calls  int
	rateFn func(schema models.RatingSchema, resumeText string) (map[string]float64, error)
}

func (m *mockRater) RateResume(ctx context.Context, schema models.RatingSchema, resumeText string) (map[string]float64, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.rateFn != nil {
		return m.rateFn(schema, resumeText)
	}
	ratings := make(map[string]float64, len(schema.Categories))
	for _, c := range schema.Categories {
		ratings[c.Name] = 0.5
	}
	return ratings, nil
}

func (m *mockRater) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testJob(t *testing.T, categories []string, weights models.WeightMap) *models.Job {
	t.Helper()
	job := &models.Job{ID: uuid.New(), UserID: uuid.New(), Title: "Backend Engineer"}
	schema := models.RatingSchema{}
	for _, name := range categories {
		schema.Categories = append(schema.Categories, models.RatingCategory{Name: name})
	}
	require.NoError(t, job.SetSchema(schema))
	if weights != nil {
		require.NoError(t, job.SetWeights(weights))
	}
	return job
}

func testPoints(n int) []ResumePoint {
	points := make([]ResumePoint, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, ResumePoint{
			ID:            fmt.Sprintf("resume-%02d", i),
			CandidateName: fmt.Sprintf("Candidate %02d", i),
			ResumeText:    fmt.Sprintf("resume text %02d", i),
		})
	}
	return points
}

func newTestMatcher(job *models.Job, store *mockVectorStore, rater *mockRater, policy config.RatingPolicy, workers int) (*matcherService, *mockMatchRepo, *mockEmbedder) {
	matchRepo := &mockMatchRepo{}
	embedder := &mockEmbedder{
		sparse: &SparseVector{Indices: []uint32{3, 17}, Values: []float32{0.4, 0.6}},
		dense:  []float32{0.1, 0.2, 0.3},
	}
	m := NewMatcherService(
		&mockJobRepo{job: job},
		matchRepo,
		embedder,
		store,
		rater,
		config.MatcherConfig{TopK: 10, Workers: workers, RatingPolicy: policy},
	).(*matcherService)
	return m, matchRepo, embedder
}

func TestValidateSchemaWeights(t *testing.T) {
	schema := models.RatingSchema{Categories: []models.RatingCategory{
		{Name: "skills"}, {Name: "experience"}, {Name: "education"},
	}}

	t.Run("matching sets pass regardless of order", func(t *testing.T) {
		weights := models.WeightMap{"education": 1, "skills": 2, "experience": 0.5}
		assert.NoError(t, validateSchemaWeights(schema, weights))
	})

	t.Run("mismatch names both key sets", func(t *testing.T) {
		small := models.RatingSchema{Categories: []models.RatingCategory{{Name: "a"}, {Name: "b"}}}
		err := validateSchemaWeights(small, models.WeightMap{"a": 1, "c": 1})
		require.Error(t, err)

		var mismatch *SchemaMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, []string{"a", "b"}, mismatch.SchemaKeys)
		assert.Equal(t, []string{"a", "c"}, mismatch.WeightKeys)
	})

	t.Run("missing weight key fails", func(t *testing.T) {
		err := validateSchemaWeights(schema, models.WeightMap{"skills": 1, "experience": 1})
		assert.Error(t, err)
	})

	t.Run("extra weight key fails", func(t *testing.T) {
		weights := models.WeightMap{"skills": 1, "experience": 1, "education": 1, "charisma": 1}
		assert.Error(t, validateSchemaWeights(schema, weights))
	})
}

func TestComputeMatchesSchemaMismatchSpendsNothing(t *testing.T) {
	job := testJob(t, []string{"a", "b"}, models.WeightMap{"a": 1, "c": 1})
	store := &mockVectorStore{points: testPoints(3)}
	rater := &mockRater{}
	m, matchRepo, embedder := newTestMatcher(job, store, rater, config.PolicyFailFast, 2)

	_, err := m.ComputeMatches(context.Background(), job.ID)

	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 0, embedder.callCount(), "no embedding call before validation passes")
	assert.Equal(t, 0, store.searchCalls, "no retrieval before validation passes")
	assert.Equal(t, 0, rater.callCount(), "no rating before validation passes")
	assert.Equal(t, 0, matchRepo.replaceCalls, "nothing persisted on a failed run")
}

func TestComputeMatchesWeightedScore(t *testing.T) {
	job := testJob(t, []string{"skills", "experience"}, models.WeightMap{"skills": 2.0, "experience": 1.0})
	store := &mockVectorStore{points: testPoints(1)}
	rater := &mockRater{rateFn: func(schema models.RatingSchema, resumeText string) (map[string]float64, error) {
		return map[string]float64{"skills": 0.8, "experience": 0.5}, nil
	}}
	m, _, _ := newTestMatcher(job, store, rater, config.PolicyFailFast, 2)

	result, err := m.ComputeMatches(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.InDelta(t, 2.1, result.Matches[0].Score, 1e-9)
	assert.Equal(t, 10, store.gotLimit)
}

func TestComputeMatchesDefaultWeights(t *testing.T) {
	// No weight map stored at all: every category weighs 1.0.
	job := testJob(t, []string{"skills", "experience", "education"}, nil)
	store := &mockVectorStore{points: testPoints(1)}
	rater := &mockRater{rateFn: func(schema models.RatingSchema, resumeText string) (map[string]float64, error) {
		return map[string]float64{"skills": 0.4, "experience": 0.6, "education": 0.9}, nil
	}}
	m, _, _ := newTestMatcher(job, store, rater, config.PolicyFailFast, 2)

	result, err := m.ComputeMatches(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.InDelta(t, 1.9, result.Matches[0].Score, 1e-9)
}

func TestComputeMatchesRanking(t *testing.T) {
	job := testJob(t, []string{"skills"}, models.WeightMap{"skills": 1.0})
	store := &mockVectorStore{points: testPoints(4)}
	ratings := map[string]float64{
		"resume text 00": 0.2,
		"resume text 01": 0.9,
		"resume text 02": 0.5,
		"resume text 03": 0.5,
	}
	rater := &mockRater{rateFn: func(schema models.RatingSchema, resumeText string) (map[string]float64, error) {
		return map[string]float64{"skills": ratings[resumeText]}, nil
	}}
	m, _, _ := newTestMatcher(job, store, rater, config.PolicyFailFast, 2)

	result, err := m.ComputeMatches(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, result.Matches, 4)

	assert.Equal(t, "resume-01", result.Matches[0].ResumeID)
	// Tied scores rank by resume id ascending.
	assert.Equal(t, "resume-02", result.Matches[1].ResumeID)
	assert.Equal(t, "resume-03", result.Matches[2].ResumeID)
	assert.Equal(t, "resume-00", result.Matches[3].ResumeID)

	for i := 1; i < len(result.Matches); i++ {
		assert.GreaterOrEqual(t, result.Matches[i-1].Score, result.Matches[i].Score)
	}
}

func TestRateCandidatesMergeCompleteness(t *testing.T) {
	schema := models.RatingSchema{Categories: []models.RatingCategory{{Name: "skills"}}}
	candidates := make([]models.CandidateRecord, 0, 7)
	for i := 0; i < 7; i++ {
		candidates = append(candidates, models.CandidateRecord{
			ResumeID:   fmt.Sprintf("resume-%02d", i),
			ResumeText: fmt.Sprintf("resume text %02d", i),
			Rank:       i + 1,
		})
	}

	for _, workers := range []int{1, 2, 5, 9} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			rater := &mockRater{}
			m, _, _ := newTestMatcher(nil, &mockVectorStore{}, rater, config.PolicyFailFast, workers)

			rated, failures, err := m.rateCandidates(context.Background(), candidates, schema)
			require.NoError(t, err)
			assert.Empty(t, failures)
			require.Len(t, rated, len(candidates), "exactly one result per input candidate")
			assert.Equal(t, len(candidates), rater.callCount())

			seen := make(map[string]bool)
			for _, r := range rated {
				assert.False(t, seen[r.record.ResumeID], "no duplicate results")
				seen[r.record.ResumeID] = true
			}
		})
	}
}

// stallingRater fails one specific resume and blocks on every other until
// its context is cancelled.
type stallingRater struct{}

func (r *stallingRater) RateResume(ctx context.Context, schema models.RatingSchema, resumeText string) (map[string]float64, error) {
	if resumeText == "resume text 02" {
		return nil, fmt.Errorf("agent returned garbage")
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRateCandidatesFailFastCancelsSiblings(t *testing.T) {
	schema := models.RatingSchema{Categories: []models.RatingCategory{{Name: "skills"}}}
	candidates := make([]models.CandidateRecord, 0, 4)
	for i := 0; i < 4; i++ {
		candidates = append(candidates, models.CandidateRecord{
			ResumeID:   fmt.Sprintf("resume-%02d", i),
			ResumeText: fmt.Sprintf("resume text %02d", i),
			Rank:       i + 1,
		})
	}

	m := NewMatcherService(
		&mockJobRepo{},
		&mockMatchRepo{},
		&mockEmbedder{},
		&mockVectorStore{},
		&stallingRater{},
		config.MatcherConfig{TopK: 10, Workers: 2, RatingPolicy: config.PolicyFailFast},
	).(*matcherService)

	var rated []ratedCandidate
	var err error
	done := make(chan struct{})
	go func() {
		rated, _, err = m.rateCandidates(context.Background(), candidates, schema)
		close(done)
	}()

	// The blocked sibling worker only unblocks if the failure cancels it.
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fan-out did not unblock after a rating failure")
	}

	var ratingErr *RatingError
	require.ErrorAs(t, err, &ratingErr)
	assert.Empty(t, rated)

	found := false
	for _, failure := range ratingErr.Failures {
		if failure.ResumeID == "resume-02" {
			found = true
		}
	}
	assert.True(t, found, "the failing resume is attributed in the error")
}

func TestPartitionCandidates(t *testing.T) {
	for _, tc := range []struct {
		candidates int
		workers    int
	}{
		{10, 2}, {10, 3}, {7, 5}, {3, 5}, {1, 1}, {0, 2},
	} {
		candidates := make([]models.CandidateRecord, tc.candidates)
		for i := range candidates {
			candidates[i].ResumeID = fmt.Sprintf("r%d", i)
		}

		chunks := partitionCandidates(candidates, tc.workers)
		assert.Len(t, chunks, tc.workers)

		total := 0
		next := 0
		for _, chunk := range chunks {
			total += len(chunk)
			for _, c := range chunk {
				// Chunks are contiguous and in order.
				assert.Equal(t, fmt.Sprintf("r%d", next), c.ResumeID)
				next++
			}
		}
		assert.Equal(t, tc.candidates, total)
	}
}

func TestComputeMatchesReplaceSemantics(t *testing.T) {
	job := testJob(t, []string{"skills", "experience"}, models.WeightMap{"skills": 1.0, "experience": 1.0})
	store := &mockVectorStore{points: testPoints(5)}
	rater := &mockRater{}
	m, matchRepo, _ := newTestMatcher(job, store, rater, config.PolicyFailFast, 2)

	first, err := m.ComputeMatches(context.Background(), job.ID)
	require.NoError(t, err)
	second, err := m.ComputeMatches(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, matchRepo.replaceCalls)

	stored, err := m.GetMatches(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, stored, 5, "old set fully superseded, no accumulation")

	require.Len(t, second.Matches, len(first.Matches))
	for i := range first.Matches {
		assert.Equal(t, first.Matches[i].ResumeID, second.Matches[i].ResumeID)
		assert.Equal(t, first.Matches[i].Score, second.Matches[i].Score)
		assert.JSONEq(t, string(first.Matches[i].Ratings), string(second.Matches[i].Ratings))
	}
}

func TestComputeMatchesFailFast(t *testing.T) {
	job := testJob(t, []string{"skills"}, models.WeightMap{"skills": 1.0})
	store := &mockVectorStore{points: testPoints(6)}
	rater := &mockRater{rateFn: func(schema models.RatingSchema, resumeText string) (map[string]float64, error) {
		if resumeText == "resume text 03" {
			return nil, fmt.Errorf("agent returned garbage")
		}
		return map[string]float64{"skills": 0.5}, nil
	}}
	m, matchRepo, _ := newTestMatcher(job, store, rater, config.PolicyFailFast, 2)

	_, err := m.ComputeMatches(context.Background(), job.ID)

	var ratingErr *RatingError
	require.ErrorAs(t, err, &ratingErr)
	require.NotEmpty(t, ratingErr.Failures)
	assert.Equal(t, "resume-03", ratingErr.Failures[0].ResumeID)
	assert.Equal(t, 0, matchRepo.replaceCalls, "failed run persists nothing")
}

func TestComputeMatchesSkipAndReport(t *testing.T) {
	job := testJob(t, []string{"skills"}, models.WeightMap{"skills": 1.0})
	store := &mockVectorStore{points: testPoints(6)}
	rater := &mockRater{rateFn: func(schema models.RatingSchema, resumeText string) (map[string]float64, error) {
		if resumeText == "resume text 03" {
			return nil, fmt.Errorf("agent returned garbage")
		}
		return map[string]float64{"skills": 0.5}, nil
	}}
	m, matchRepo, _ := newTestMatcher(job, store, rater, config.PolicySkipAndReport, 2)

	result, err := m.ComputeMatches(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Len(t, result.Matches, 5)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "resume-03", result.Skipped[0].ResumeID)
	for _, match := range result.Matches {
		assert.NotEqual(t, "resume-03", match.ResumeID)
	}
	assert.Equal(t, 1, matchRepo.replaceCalls, "successful subset is persisted")
}

func TestComputeMatchesRetrievalErrors(t *testing.T) {
	t.Run("vector store failure", func(t *testing.T) {
		job := testJob(t, []string{"skills"}, models.WeightMap{"skills": 1.0})
		store := &mockVectorStore{searchErr: fmt.Errorf("connection refused")}
		m, matchRepo, _ := newTestMatcher(job, store, &mockRater{}, config.PolicyFailFast, 2)

		_, err := m.ComputeMatches(context.Background(), job.ID)

		var retrievalErr *RetrievalError
		require.ErrorAs(t, err, &retrievalErr)
		assert.Equal(t, "vector store query", retrievalErr.Stage)
		assert.Equal(t, 0, matchRepo.replaceCalls)
	})

	t.Run("embedding failure", func(t *testing.T) {
		job := testJob(t, []string{"skills"}, models.WeightMap{"skills": 1.0})
		store := &mockVectorStore{points: testPoints(2)}
		m, matchRepo, embedder := newTestMatcher(job, store, &mockRater{}, config.PolicyFailFast, 2)
		embedder.sparseErr = fmt.Errorf("sidecar down")

		_, err := m.ComputeMatches(context.Background(), job.ID)

		var retrievalErr *RetrievalError
		require.ErrorAs(t, err, &retrievalErr)
		assert.Equal(t, "sparse embedding", retrievalErr.Stage)
		assert.Equal(t, 0, store.searchCalls, "no query on a failed embedding")
		assert.Equal(t, 0, matchRepo.replaceCalls)
	})
}

func TestComputeMatchesPersistenceError(t *testing.T) {
	job := testJob(t, []string{"skills"}, models.WeightMap{"skills": 1.0})
	store := &mockVectorStore{points: testPoints(2)}
	m, matchRepo, _ := newTestMatcher(job, store, &mockRater{}, config.PolicyFailFast, 2)
	matchRepo.replaceErr = &repositories.PersistenceError{JobID: job.ID, OldDataIntact: true, Err: fmt.Errorf("insert failed")}

	_, err := m.ComputeMatches(context.Background(), job.ID)

	var persistenceErr *repositories.PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
	assert.True(t, persistenceErr.OldDataIntact)
}

func TestComputeMatchesEmptyTalentPool(t *testing.T) {
	job := testJob(t, []string{"skills"}, models.WeightMap{"skills": 1.0})
	store := &mockVectorStore{}
	rater := &mockRater{}
	m, matchRepo, _ := newTestMatcher(job, store, rater, config.PolicyFailFast, 2)

	result, err := m.ComputeMatches(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Equal(t, 0, rater.callCount())
	assert.Equal(t, 1, matchRepo.replaceCalls, "empty set still replaces the old one")
}
