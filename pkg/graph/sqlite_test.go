package graph

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blueman82/go-counsel/pkg/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decisions.db")
	store, err := NewSQLiteStore(context.Background(), SQLiteConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreInsertAndGetDecision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	node := domain.DecisionNode{
		ID:                "dec-1",
		Question:          "should we adopt postgres",
		Timestamp:         time.Now(),
		Consensus:         "yes",
		WinningOption:     "adopt",
		ConvergenceStatus: domain.StatusConverged,
		Participants:      []string{"a@x", "b@x"},
		Metadata:          map[string]string{"tag": "infra"},
	}
	require.NoError(t, store.InsertDecision(ctx, node))

	got, err := store.GetDecision(ctx, "dec-1")
	require.NoError(t, err)
	assert.Equal(t, "should we adopt postgres", got.Question)
	assert.Equal(t, []string{"a@x", "b@x"}, got.Participants)
	assert.Equal(t, "infra", got.Metadata["tag"])
}

func TestSQLiteStoreGetDecisionNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetDecision(context.Background(), "missing")
	require.Error(t, err)
}

func TestSQLiteStoreInsertStanceAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	node := domain.DecisionNode{ID: "dec-1", Question: "q", Timestamp: time.Now(), Consensus: "c"}
	require.NoError(t, store.InsertDecision(ctx, node))

	option := "adopt"
	confidence := 0.9
	rationale := "scales better"
	require.NoError(t, store.InsertStance(ctx, domain.ParticipantStance{
		DecisionID: "dec-1", Participant: "a@x", VoteOption: &option, Confidence: &confidence, Rationale: &rationale, FinalPosition: "final text",
	}))

	stances, err := store.ListStances(ctx, "dec-1")
	require.NoError(t, err)
	require.Len(t, stances, 1)
	assert.Equal(t, "adopt", *stances[0].VoteOption)
	assert.Equal(t, 0.9, *stances[0].Confidence)
}

func TestSQLiteStoreUpsertSimilarityReplacesScore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertDecision(ctx, domain.DecisionNode{ID: "a", Question: "q1", Timestamp: time.Now(), Consensus: "c"}))
	require.NoError(t, store.InsertDecision(ctx, domain.DecisionNode{ID: "b", Question: "q2", Timestamp: time.Now(), Consensus: "c"}))

	now := time.Now()
	require.NoError(t, store.UpsertSimilarity(ctx, domain.DecisionSimilarity{SourceID: "a", TargetID: "b", Score: 0.6, ComputedAt: now}))
	require.NoError(t, store.UpsertSimilarity(ctx, domain.DecisionSimilarity{SourceID: "a", TargetID: "b", Score: 0.8, ComputedAt: now}))

	edges, err := store.ListSimilarDecisions(ctx, "a", 0.5, 10)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 0.8, edges[0].Score)
}

func TestSQLiteStoreListRecentDecisionsOrdersByTimestampDesc(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := domain.DecisionNode{ID: "older", Question: "q", Timestamp: time.Now().Add(-time.Hour), Consensus: "c"}
	newer := domain.DecisionNode{ID: "newer", Question: "q", Timestamp: time.Now(), Consensus: "c"}
	require.NoError(t, store.InsertDecision(ctx, older))
	require.NoError(t, store.InsertDecision(ctx, newer))

	list, err := store.ListRecentDecisions(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
}

func TestSQLiteStoreHealthReportsCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertDecision(ctx, domain.DecisionNode{ID: "a", Question: "q", Timestamp: time.Now(), Consensus: "c"}))

	report, err := store.Health(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.DecisionCount)
	assert.Equal(t, int64(0), report.OrphanStanceCount)
}
