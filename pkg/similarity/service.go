// Package similarity implements the pluggable pairwise text-similarity
// contract used by the Convergence Detector, the Decision-Graph
// Retriever, and vote-option grouping.
package similarity

import "context"

// Backend computes a single similarity score in [0,1] between two
// texts. Identical inputs must yield 1.0; empty inputs must yield 0.0.
type Backend interface {
	Name() string
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Service exposes similarity(a, b) -> [0,1] over one backend chosen
// once by New. Empty and identical inputs are answered without calling
// the backend; a backend error is returned as is, with no fallback to
// another backend.
type Service struct {
	backend Backend
}

// New selects the first non-nil candidate in the order given,
// defaulting to Lexical if none was supplied. Candidates are not probed
// for availability.
func New(candidates ...Backend) *Service {
	for _, c := range candidates {
		if c != nil {
			return &Service{backend: c}
		}
	}
	return &Service{backend: NewLexical()}
}

func (s *Service) BackendName() string { return s.backend.Name() }

func (s *Service) Similarity(ctx context.Context, a, b string) (float64, error) {
	if a == "" || b == "" {
		return 0, nil
	}
	if a == b {
		return 1, nil
	}
	return s.backend.Similarity(ctx, a, b)
}
