package graph

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/similarity"
)

func TestPersisterStoresDecisionAndStances(t *testing.T) {
	store := newFakeStore()
	p := NewPersister(store, similarity.New(similarity.NewLexical()), NewQueryCache(time.Minute, 10))

	err := p.Persist(context.Background(), PersistInput{
		Node: domain.DecisionNode{Question: "should we adopt postgres", Timestamp: time.Now(), Consensus: "yes"},
		FinalResponses: map[string]domain.RoundResponse{
			"a@x": {Participant: "a@x", Text: "adopt postgres"},
		},
		FinalVotes: map[string]domain.Vote{
			"a@x": {Option: "adopt", Confidence: 0.9, Rationale: "scales"},
		},
	})
	require.NoError(t, err)
	require.Len(t, store.decisions, 1)

	var stances []domain.ParticipantStance
	for _, s := range store.stances {
		stances = append(stances, s...)
	}
	require.Len(t, stances, 1)
	assert.Equal(t, "adopt", *stances[0].VoteOption)
}

func TestPersisterTruncatesFinalPosition(t *testing.T) {
	store := newFakeStore()
	p := NewPersister(store, similarity.New(similarity.NewLexical()), NewQueryCache(time.Minute, 10))

	longText := strings.Repeat("a", domain.MaxFinalPositionLen+50)
	err := p.Persist(context.Background(), PersistInput{
		Node: domain.DecisionNode{Question: "q", Timestamp: time.Now(), Consensus: "c"},
		FinalResponses: map[string]domain.RoundResponse{
			"a@x": {Participant: "a@x", Text: longText},
		},
	})
	require.NoError(t, err)

	var stance domain.ParticipantStance
	for _, list := range store.stances {
		stance = list[0]
	}
	assert.Len(t, stance.FinalPosition, domain.MaxFinalPositionLen)
}

func TestPersisterLinksSimilarPriorDecisions(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.InsertDecision(context.Background(), domain.DecisionNode{
		ID: "prior", Question: "should we adopt postgres for storage", Timestamp: time.Now(), Consensus: "yes",
	}))

	p := NewPersister(store, similarity.New(similarity.NewLexical()), NewQueryCache(time.Minute, 10))
	err := p.Persist(context.Background(), PersistInput{
		Node: domain.DecisionNode{ID: "new", Question: "should we adopt postgres for storage now", Timestamp: time.Now(), Consensus: "yes"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, store.similarities["new"])
}

func TestPersisterClearsQueryCache(t *testing.T) {
	store := newFakeStore()
	cache := NewQueryCache(time.Minute, 10)
	cache.Put("k", []string{"x"})

	p := NewPersister(store, similarity.New(similarity.NewLexical()), cache)
	require.NoError(t, p.Persist(context.Background(), PersistInput{
		Node: domain.DecisionNode{Question: "q", Timestamp: time.Now(), Consensus: "c"},
	}))

	_, ok := cache.Get("k")
	assert.False(t, ok)
}

type failingInsertStore struct {
	*fakeStore
	err error
}

func (f *failingInsertStore) InsertDecision(_ context.Context, _ domain.DecisionNode) error {
	return f.err
}

func TestPersisterPropagatesDecisionInsertError(t *testing.T) {
	boom := notFoundErr{}
	store := &failingInsertStore{fakeStore: newFakeStore(), err: boom}
	p := NewPersister(store, similarity.New(similarity.NewLexical()), NewQueryCache(time.Minute, 10))

	err := p.Persist(context.Background(), PersistInput{
		Node: domain.DecisionNode{Question: "q", Timestamp: time.Now(), Consensus: "c"},
	})
	require.ErrorIs(t, err, boom)
}
