package similarity

import (
	"context"
	"math"

	"github.com/blueman82/go-counsel/internal/errs"
)

// Embedder resolves a text into a dense vector representation. Callers
// wire in a concrete implementation (e.g. an HTTP call to a hosted
// embeddings endpoint); none is bundled here since no such client
// ships in the dependency set.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// EmbeddingBackend is the highest-quality similarity tier: cosine
// similarity over embedding vectors. Service.New selects it whenever it
// is passed as a non-nil candidate; its Embedder is not checked there.
type EmbeddingBackend struct {
	embed Embedder
}

func NewEmbeddingBackend(embed Embedder) *EmbeddingBackend {
	return &EmbeddingBackend{embed: embed}
}

func (e *EmbeddingBackend) Name() string { return "embedding" }

func (e *EmbeddingBackend) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := e.embed(ctx, a)
	if err != nil {
		return 0, errs.Retrieval(err, "embed first text")
	}
	vb, err := e.embed(ctx, b)
	if err != nil {
		return 0, errs.Retrieval(err, "embed second text")
	}
	return cosineSimilarity(va, vb), nil
}

// cosineSimilarity mirrors the dot-product-over-norms formula used for
// decision-graph semantic matching; zero vectors yield 0 rather than
// NaN.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
