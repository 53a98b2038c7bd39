package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedSparse(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req sparseEmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "skills, experience", req.Text)

			json.NewEncoder(w).Encode(sparseEmbedResponse{
				Indices: []uint32{12, 901, 4087},
				Values:  []float32{0.7, 0.2, 0.1},
			})
		}))
		defer server.Close()

		embedder := NewEmbeddingService(&mockGemini{}, server.URL, 5*time.Second)
		vector, err := embedder.EmbedSparse(context.Background(), "skills, experience")
		require.NoError(t, err)
		assert.Equal(t, []uint32{12, 901, 4087}, vector.Indices)
		assert.Equal(t, []float32{0.7, 0.2, 0.1}, vector.Values)
	})

	t.Run("sidecar error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		embedder := NewEmbeddingService(&mockGemini{}, server.URL, 5*time.Second)
		_, err := embedder.EmbedSparse(context.Background(), "skills")
		assert.ErrorContains(t, err, "503")
	})

	t.Run("mismatched indices and values", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(sparseEmbedResponse{
				Indices: []uint32{1, 2},
				Values:  []float32{0.5},
			})
		}))
		defer server.Close()

		embedder := NewEmbeddingService(&mockGemini{}, server.URL, 5*time.Second)
		_, err := embedder.EmbedSparse(context.Background(), "skills")
		assert.Error(t, err)
	})

	t.Run("unreachable sidecar", func(t *testing.T) {
		embedder := NewEmbeddingService(&mockGemini{}, "http://127.0.0.1:1/embed", time.Second)
		_, err := embedder.EmbedSparse(context.Background(), "skills")
		assert.Error(t, err)
	})
}

func TestEmbedDenseDelegatesToGemini(t *testing.T) {
	embedder := NewEmbeddingService(&mockGemini{}, "http://unused", time.Second)
	vector, err := embedder.EmbedDense(context.Background(), "skills")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vector)
}
