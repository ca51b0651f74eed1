package main

import (
	"context"
	"testing"
	"time"

	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/graph"
)

type fakeHealthStore struct {
	report graph.HealthReport
}

func (f *fakeHealthStore) InsertDecision(context.Context, domain.DecisionNode) error { return nil }
func (f *fakeHealthStore) InsertStance(context.Context, domain.ParticipantStance) error {
	return nil
}
func (f *fakeHealthStore) UpsertSimilarity(context.Context, domain.DecisionSimilarity) error {
	return nil
}
func (f *fakeHealthStore) GetDecision(context.Context, string) (*domain.DecisionNode, error) {
	return nil, nil
}
func (f *fakeHealthStore) ListRecentDecisions(context.Context, int, int) ([]domain.DecisionNode, error) {
	return nil, nil
}
func (f *fakeHealthStore) ListStances(context.Context, string) ([]domain.ParticipantStance, error) {
	return nil, nil
}
func (f *fakeHealthStore) ListSimilarDecisions(context.Context, string, float64, int) ([]domain.DecisionSimilarity, error) {
	return nil, nil
}
func (f *fakeHealthStore) Health(context.Context, time.Duration) (graph.HealthReport, error) {
	return f.report, nil
}
func (f *fakeHealthStore) Close() error { return nil }

var _ graph.Store = (*fakeHealthStore)(nil)

func TestRunHealthCheck_ReturnsErrorOnOrphanStances(t *testing.T) {
	store := &fakeHealthStore{report: graph.HealthReport{DecisionCount: 5, OrphanStanceCount: 2}}
	if err := runHealthCheck(context.Background(), store); err == nil {
		t.Fatalf("expected error when orphan stances are present")
	}
}

func TestRunHealthCheck_NoErrorWhenClean(t *testing.T) {
	store := &fakeHealthStore{report: graph.HealthReport{DecisionCount: 5}}
	if err := runHealthCheck(context.Background(), store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
