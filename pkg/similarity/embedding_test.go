package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedEmbedder(vectors map[string][]float32) Embedder {
	return func(_ context.Context, text string) ([]float32, error) {
		v, ok := vectors[text]
		if !ok {
			return nil, errors.New("no vector for text")
		}
		return v, nil
	}
}

func TestEmbeddingBackendIdenticalVectors(t *testing.T) {
	e := NewEmbeddingBackend(fixedEmbedder(map[string][]float32{
		"a": {1, 0, 0},
		"b": {1, 0, 0},
	}))
	score, err := e.Similarity(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestEmbeddingBackendOrthogonalVectors(t *testing.T) {
	e := NewEmbeddingBackend(fixedEmbedder(map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
	}))
	score, err := e.Similarity(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-9)
}

func TestEmbeddingBackendZeroVectorYieldsZero(t *testing.T) {
	e := NewEmbeddingBackend(fixedEmbedder(map[string][]float32{
		"a": {0, 0, 0},
		"b": {1, 2, 3},
	}))
	score, err := e.Similarity(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestEmbeddingBackendPropagatesEmbedError(t *testing.T) {
	e := NewEmbeddingBackend(fixedEmbedder(map[string][]float32{}))
	_, err := e.Similarity(context.Background(), "a", "b")
	require.Error(t, err)
}

func TestEmbeddingBackendNegativeCosineClampedToZero(t *testing.T) {
	e := NewEmbeddingBackend(fixedEmbedder(map[string][]float32{
		"a": {1, 0},
		"b": {-1, 0},
	}))
	score, err := e.Similarity(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}
