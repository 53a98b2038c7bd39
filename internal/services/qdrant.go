package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

const (
	sparseVectorName = "bm42"
	denseVectorName  = "dense"

	// Gemini text-embedding-004 dimension.
	denseVectorSize = 768
)

// ResumePoint is one talent-pool point returned from a hybrid search,
// already unpacked from the Qdrant payload.
type ResumePoint struct {
	ID            string
	CandidateName string
	ResumeText    string
}

// VectorStore is the talent pool: one point per resume carrying a sparse
// and a dense named vector plus the resume text and candidate name.
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	UpsertResume(ctx context.Context, resumeID, candidateName, resumeText string, sparse *SparseVector, dense []float32) error
	HybridSearch(ctx context.Context, sparse *SparseVector, dense []float32, limit int) ([]ResumePoint, error)
	DeleteResume(ctx context.Context, resumeID string) error
}

type qdrantStore struct {
	client         *qdrant.Client
	collectionName string
}

func NewQdrantStore(urlStr, apiKey, collectionName string) (VectorStore, error) {
	// Parse URL to extract host, port, and TLS usage
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// For gRPC client, use port 6334 by default (gRPC port)
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantStore{
		client:         client,
		collectionName: collectionName,
	}, nil
}

// EnsureCollection implements VectorStore.
func (q *qdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		log.Println("✅ Collection already exists")
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     denseVectorSize,
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("✅ Qdrant collection '%s' created successfully\n", q.collectionName)
	return nil
}

// UpsertResume implements VectorStore.
func (q *qdrantStore) UpsertResume(ctx context.Context, resumeID, candidateName, resumeText string, sparse *SparseVector, dense []float32) error {
	point := &qdrant.PointStruct{
		Id: qdrant.NewID(resumeID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			sparseVectorName: qdrant.NewVectorSparse(sparse.Indices, sparse.Values),
			denseVectorName:  qdrant.NewVectorDense(dense),
		}),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"candidate_name": candidateName,
			"resume_text":    resumeText,
		}),
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert resume point: %w", err)
	}

	return nil
}

// HybridSearch implements VectorStore. It prefetches the top candidates
// under the sparse and dense metrics independently and lets Qdrant fuse
// the two ranked lists with reciprocal rank fusion.
func (q *qdrantStore) HybridSearch(ctx context.Context, sparse *SparseVector, dense []float32, limit int) ([]ResumePoint, error) {
	prefetchLimit := uint64(limit)

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Prefetch: []*qdrant.PrefetchQuery{
			{
				Query: qdrant.NewQuerySparse(sparse.Indices, sparse.Values),
				Using: qdrant.PtrOf(sparseVectorName),
				Limit: qdrant.PtrOf(prefetchLimit),
			},
			{
				Query: qdrant.NewQueryDense(dense),
				Using: qdrant.PtrOf(denseVectorName),
				Limit: qdrant.PtrOf(prefetchLimit),
			},
		},
		Query:       qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:       qdrant.PtrOf(uint64(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}

	results := make([]ResumePoint, 0, len(points))
	for _, point := range points {
		result := ResumePoint{}

		if id := point.GetId(); id != nil {
			result.ID = id.GetUuid()
		}

		payload := point.GetPayload()
		if name, ok := payload["candidate_name"]; ok {
			if val, ok := name.GetKind().(*qdrant.Value_StringValue); ok {
				result.CandidateName = val.StringValue
			}
		}
		if text, ok := payload["resume_text"]; ok {
			if val, ok := text.GetKind().(*qdrant.Value_StringValue); ok {
				result.ResumeText = val.StringValue
			}
		}

		results = append(results, result)
	}

	return results, nil
}

// DeleteResume implements VectorStore.
func (q *qdrantStore) DeleteResume(ctx context.Context, resumeID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Points:         qdrant.NewPointsSelector(qdrant.NewID(resumeID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete resume point: %w", err)
	}

	return nil
}
