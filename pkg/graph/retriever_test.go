package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/similarity"
)

func TestRetrieverReturnsEmptyStringWhenNoCandidatesAboveThreshold(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.InsertDecision(context.Background(), domain.DecisionNode{
		ID: "1", Question: "completely unrelated topic about gardening", Timestamp: time.Now(), Consensus: "c",
	}))

	r := NewRetriever(store, similarity.New(similarity.NewLexical()), NewQueryCache(time.Minute, 10), DefaultRetrieverConfig())
	md := r.Retrieve(context.Background(), "should we adopt postgres for storage")
	assert.Empty(t, md)
}

func TestRetrieverFindsSimilarPriorDecision(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.InsertDecision(context.Background(), domain.DecisionNode{
		ID: "1", Question: "should we adopt postgres for storage", Timestamp: time.Now(), Consensus: "yes, adopt it",
	}))

	r := NewRetriever(store, similarity.New(similarity.NewLexical()), NewQueryCache(time.Minute, 10), DefaultRetrieverConfig())
	md := r.Retrieve(context.Background(), "should we adopt postgres for storage now")
	assert.Contains(t, md, "postgres")
}

func TestRetrieverUsesCacheOnSecondCall(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.InsertDecision(context.Background(), domain.DecisionNode{
		ID: "1", Question: "should we adopt postgres for storage", Timestamp: time.Now(), Consensus: "yes",
	}))

	cache := NewQueryCache(time.Minute, 10)
	r := NewRetriever(store, similarity.New(similarity.NewLexical()), cache, DefaultRetrieverConfig())
	question := "should we adopt postgres for storage today"

	first := r.Retrieve(context.Background(), question)
	key := CacheKey(question, r.cfg.Threshold, r.cfg.MaxResults)
	_, hit := cache.Get(key)
	require.True(t, hit)

	second := r.Retrieve(context.Background(), question)
	assert.Equal(t, first, second)
}

func TestRetrieverSkipsMissingCachedDecision(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.InsertDecision(context.Background(), domain.DecisionNode{
		ID: "1", Question: "should we adopt postgres for storage", Timestamp: time.Now(), Consensus: "yes",
	}))

	cache := NewQueryCache(time.Minute, 10)
	r := NewRetriever(store, similarity.New(similarity.NewLexical()), cache, DefaultRetrieverConfig())
	question := "should we adopt postgres for storage today"
	r.Retrieve(context.Background(), question)

	delete(store.decisions, "1")

	md := r.Retrieve(context.Background(), question)
	assert.Empty(t, md)
}

func TestRetrieverGracefullyDegradesOnStoreFailure(t *testing.T) {
	store := &failingListStore{fakeStore: newFakeStore()}
	r := NewRetriever(store, similarity.New(similarity.NewLexical()), NewQueryCache(time.Minute, 10), DefaultRetrieverConfig())
	md := r.Retrieve(context.Background(), "anything")
	assert.Empty(t, md)
}

type failingListStore struct {
	*fakeStore
}

func (f *failingListStore) ListRecentDecisions(_ context.Context, _, _ int) ([]domain.DecisionNode, error) {
	return nil, notFoundErr{}
}
