package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermWeightedIdenticalTexts(t *testing.T) {
	tw := NewTermWeighted()
	score, err := tw.Similarity(context.Background(), "adopt postgres for storage", "adopt postgres for storage")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestTermWeightedEmptyTexts(t *testing.T) {
	tw := NewTermWeighted()
	score, err := tw.Similarity(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestTermWeightedDisjointTexts(t *testing.T) {
	tw := NewTermWeighted()
	score, err := tw.Similarity(context.Background(), "red blue green", "north south east")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestTermWeightedScoresMoreSharedTermsHigher(t *testing.T) {
	tw := NewTermWeighted()
	// The first pair shares "use the"; the second shares "use the sqlite".
	scoreDistinct, err := tw.Similarity(context.Background(), "use the sqlite store", "use the kafka queue")
	require.NoError(t, err)
	scoreShared, err := tw.Similarity(context.Background(), "use the sqlite store", "use the sqlite cache")
	require.NoError(t, err)
	assert.Greater(t, scoreShared, scoreDistinct)
}

func TestTermWeightedBounded(t *testing.T) {
	tw := NewTermWeighted()
	score, err := tw.Similarity(context.Background(), "a lengthy deliberation about backend adapters", "a short note")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}
