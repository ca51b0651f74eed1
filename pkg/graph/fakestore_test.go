package graph

import (
	"context"
	"time"

	"github.com/blueman82/go-counsel/pkg/domain"
)

// fakeStore is an in-memory Store used by tests that exercise
// Retriever/Persister logic without a real database.
type fakeStore struct {
	decisions   map[string]domain.DecisionNode
	order       []string
	stances     map[string][]domain.ParticipantStance
	similarities map[string][]domain.DecisionSimilarity

	getDecisionErr error
	listStancesErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		decisions:    make(map[string]domain.DecisionNode),
		stances:      make(map[string][]domain.ParticipantStance),
		similarities: make(map[string][]domain.DecisionSimilarity),
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
	f.similarities[edge.SourceID] = append(f.similarities[edge.SourceID], edge)
	return nil
}

func (f *fakeStore) GetDecision(_ context.Context, id string) (*domain.DecisionNode, error) {
	if f.getDecisionErr != nil {
		return nil, f.getDecisionErr
	}
	node, ok := f.decisions[id]
	if !ok {
		return nil, errNotFound
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
	if f.listStancesErr != nil {
		return nil, f.listStancesErr
	}
	return f.stances[decisionID], nil
}

func (f *fakeStore) ListSimilarDecisions(_ context.Context, sourceID string, minScore float64, limit int) ([]domain.DecisionSimilarity, error) {
	var out []domain.DecisionSimilarity
	for _, e := range f.similarities[sourceID] {
		if e.Score >= minScore {
			out = append(out, e)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) Health(_ context.Context, window time.Duration) (HealthReport, error) {
	return HealthReport{DecisionCount: int64(len(f.decisions)), GrowthWindow: window}, nil
}

func (f *fakeStore) Close() error { return nil }

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

var errNotFound = notFoundErr{}
