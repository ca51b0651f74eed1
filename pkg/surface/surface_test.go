package surface

import (
	"context"
	"time"

	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/graph"
)

// fakeStore is a minimal in-memory graph.Store for surface-level tests.
type fakeStore struct {
	decisions map[string]domain.DecisionNode
	order     []string
	stances   map[string][]domain.ParticipantStance
	edges     map[string][]domain.DecisionSimilarity
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		decisions: make(map[string]domain.DecisionNode),
		stances:   make(map[string][]domain.ParticipantStance),
		edges:     make(map[string][]domain.DecisionSimilarity),
	}
}

func (f *fakeStore) InsertDecision(_ context.Context, node domain.DecisionNode) error {
	f.decisions[node.ID] = node
	f.order = append([]string{node.ID}, f.order...)
	return nil
}

func (f *fakeStore) InsertStance(_ context.Context, stance domain.ParticipantStance) error {
	f.stances[stance.DecisionID] = append(f.stances[stance.DecisionID], stance)
	return nil
}

func (f *fakeStore) UpsertSimilarity(_ context.Context, edge domain.DecisionSimilarity) error {
	f.edges[edge.SourceID] = append(f.edges[edge.SourceID], edge)
	return nil
}

func (f *fakeStore) GetDecision(_ context.Context, id string) (*domain.DecisionNode, error) {
	node, ok := f.decisions[id]
	if !ok {
		return nil, errDecisionNotFound{}
	}
	return &node, nil
}

func (f *fakeStore) ListRecentDecisions(_ context.Context, limit, offset int) ([]domain.DecisionNode, error) {
	var out []domain.DecisionNode
	for i, id := range f.order {
		if i < offset {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, f.decisions[id])
	}
	return out, nil
}

func (f *fakeStore) ListStances(_ context.Context, decisionID string) ([]domain.ParticipantStance, error) {
	return f.stances[decisionID], nil
}

func (f *fakeStore) ListSimilarDecisions(_ context.Context, sourceID string, minScore float64, limit int) ([]domain.DecisionSimilarity, error) {
	var out []domain.DecisionSimilarity
	for _, e := range f.edges[sourceID] {
		if e.Score >= minScore {
			out = append(out, e)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) Health(_ context.Context, window time.Duration) (graph.HealthReport, error) {
	return graph.HealthReport{DecisionCount: int64(len(f.decisions)), GrowthWindow: window}, nil
}

func (f *fakeStore) Close() error { return nil }

type errDecisionNotFound struct{}

func (errDecisionNotFound) Error() string { return "decision not found" }

var _ graph.Store = (*fakeStore)(nil)
