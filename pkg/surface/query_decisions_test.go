package surface

import (
	"context"
	"testing"
	"time"

	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/similarity"
)

func newQuerySurface(store *fakeStore) *Surface {
	return &Surface{Store: store, Sim: similarity.New(nil), ResponseRoundCap: 3}
}

func TestQueryDecisions_RejectsMultipleModes(t *testing.T) {
	s := newQuerySurface(newFakeStore())
	q := "x"
	_, err := s.QueryDecisions(context.Background(), QueryDecisionsRequest{QueryText: &q, FindContradictions: true})
	if err == nil {
		t.Fatalf("expected validation error when more than one mode is selected")
	}
}

func TestQueryDecisions_RejectsNoMode(t *testing.T) {
	s := newQuerySurface(newFakeStore())
	_, err := s.QueryDecisions(context.Background(), QueryDecisionsRequest{})
	if err == nil {
		t.Fatalf("expected validation error when no mode is selected")
	}
}

func TestQueryDecisions_SimilarDecisionsOrderedByScoreDesc(t *testing.T) {
	store := newFakeStore()
	store.InsertDecision(context.Background(), domain.DecisionNode{ID: "d1", Question: "Should we adopt TypeScript now?", Timestamp: time.Now()})
	store.InsertDecision(context.Background(), domain.DecisionNode{ID: "d2", Question: "What is the weather?", Timestamp: time.Now()})

	s := newQuerySurface(store)
	query := "Should we migrate to TypeScript?"
	resp, err := s.QueryDecisions(context.Background(), QueryDecisionsRequest{QueryText: &query, Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.SimilarDecisions) != 2 {
		t.Fatalf("expected 2 scored decisions, got %d", len(resp.SimilarDecisions))
	}
	if resp.SimilarDecisions[0].Score < resp.SimilarDecisions[1].Score {
		t.Fatalf("expected descending score order, got %+v", resp.SimilarDecisions)
	}
	if resp.SimilarDecisions[0].Decision.ID != "d1" {
		t.Fatalf("expected the TypeScript question to rank first, got %s", resp.SimilarDecisions[0].Decision.ID)
	}
}

func TestQueryDecisions_FindContradictions(t *testing.T) {
	store := newFakeStore()
	store.InsertDecision(context.Background(), domain.DecisionNode{ID: "d1", Question: "Use Postgres?", WinningOption: "yes"})
	store.InsertDecision(context.Background(), domain.DecisionNode{ID: "d2", Question: "Use Postgres again?", WinningOption: "no"})
	store.UpsertSimilarity(context.Background(), domain.DecisionSimilarity{SourceID: "d1", TargetID: "d2", Score: 0.9})

	s := newQuerySurface(store)
	resp, err := s.QueryDecisions(context.Background(), QueryDecisionsRequest{FindContradictions: true, Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Contradictions) != 1 {
		t.Fatalf("expected 1 contradiction, got %d", len(resp.Contradictions))
	}
}

func TestQueryDecisions_EvolutionWalksChain(t *testing.T) {
	store := newFakeStore()
	store.InsertDecision(context.Background(), domain.DecisionNode{ID: "new", Question: "q-new"})
	store.InsertDecision(context.Background(), domain.DecisionNode{ID: "old", Question: "q-old"})
	store.UpsertSimilarity(context.Background(), domain.DecisionSimilarity{SourceID: "new", TargetID: "old", Score: 0.8})

	s := newQuerySurface(store)
	id := "new"
	resp, err := s.QueryDecisions(context.Background(), QueryDecisionsRequest{DecisionID: &id, Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Evolution) != 2 {
		t.Fatalf("expected 2-entry evolution chain, got %d", len(resp.Evolution))
	}
	if resp.Evolution[0].ID != "old" || resp.Evolution[1].ID != "new" {
		t.Fatalf("expected oldest-first ordering, got %+v", resp.Evolution)
	}
}

func TestQueryDecisions_EvolutionUnknownIDIsError(t *testing.T) {
	s := newQuerySurface(newFakeStore())
	id := "missing"
	_, err := s.QueryDecisions(context.Background(), QueryDecisionsRequest{DecisionID: &id})
	if err == nil {
		t.Fatalf("expected error for unknown decision id")
	}
}
