package convergence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/similarity"
)

func resp(participant, text string) domain.RoundResponse {
	return domain.RoundResponse{Participant: participant, Text: text, Timestamp: time.Unix(0, 0)}
}

func TestDetectorConvergedWhenAllAboveThreshold(t *testing.T) {
	d := NewDetector(similarity.New(similarity.NewLexical()), DefaultThresholds())
	prev := []domain.RoundResponse{
		resp("a@x", "we should use postgres for storage because it scales"),
		resp("b@x", "postgres for storage seems right given our query patterns"),
	}
	cur := []domain.RoundResponse{
		resp("a@x", "we should use postgres for storage because it scales well"),
		resp("b@x", "postgres for storage seems right given our query patterns today"),
	}

	info, err := d.Evaluate(context.Background(), 2, prev, cur)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConverged, info.Status)
	assert.True(t, info.Detected)
	require.NotNil(t, info.DetectionRound)
	assert.Equal(t, 2, *info.DetectionRound)
}

func TestDetectorImpasseWhenAllBelowDivergence(t *testing.T) {
	d := NewDetector(similarity.New(similarity.NewLexical()), DefaultThresholds())
	prev := []domain.RoundResponse{resp("a@x", "apples oranges bananas"), resp("b@x", "trucks planes trains")}
	cur := []domain.RoundResponse{resp("a@x", "xylophone zebra yarn"), resp("b@x", "quartz ruby sapphire")}

	info, err := d.Evaluate(context.Background(), 2, prev, cur)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusImpasse, info.Status)
	assert.False(t, info.Detected)
}

func TestDetectorIgnoresParticipantsAbsentFromPreviousRound(t *testing.T) {
	d := NewDetector(similarity.New(similarity.NewLexical()), DefaultThresholds())
	prev := []domain.RoundResponse{resp("a@x", "use postgres")}
	cur := []domain.RoundResponse{resp("a@x", "use postgres"), resp("c@x", "brand new participant")}

	info, err := d.Evaluate(context.Background(), 2, prev, cur)
	require.NoError(t, err)
	_, tracked := info.PerParticipant["c@x"]
	assert.False(t, tracked)
	assert.Contains(t, info.PerParticipant, "a@x")
}

func TestDetectorNoOverlapYieldsUnknownStatus(t *testing.T) {
	d := NewDetector(similarity.New(similarity.NewLexical()), DefaultThresholds())
	prev := []domain.RoundResponse{resp("a@x", "use postgres")}
	cur := []domain.RoundResponse{resp("b@x", "use sqlite")}

	info, err := d.Evaluate(context.Background(), 2, prev, cur)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnknown, info.Status)
	assert.Empty(t, info.PerParticipant)
}

func TestDetectorRefiningWhenAverageIncreases(t *testing.T) {
	d := NewDetector(similarity.New(similarity.NewLexical()), DefaultThresholds())

	round1 := []domain.RoundResponse{resp("a@x", "red green"), resp("b@x", "blue yellow")}
	round2 := []domain.RoundResponse{resp("a@x", "red green blue"), resp("b@x", "blue yellow red")}
	_, err := d.Evaluate(context.Background(), 2, round1, round2)
	require.NoError(t, err)

	round3 := []domain.RoundResponse{resp("a@x", "red green blue yellow"), resp("b@x", "blue yellow red green")}
	info, err := d.Evaluate(context.Background(), 3, round2, round3)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefining, info.Status)
}
