package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueman82/go-counsel/pkg/domain"
)

func decisionAt(id, question, consensus string) domain.DecisionNode {
	return domain.DecisionNode{ID: id, Question: question, Consensus: consensus, Timestamp: time.Unix(0, 0)}
}

func TestFormatTieredClassifiesStrongTier(t *testing.T) {
	candidates := []ScoredDecision{{Node: decisionAt("1", "should we use postgres", "yes, adopt postgres"), Score: 0.9}}
	result := FormatTiered(candidates, nil, DefaultTierBoundaries(), DefaultContextTokenBudget)
	assert.Equal(t, 1, result.TierCounts["strong"])
	assert.Contains(t, result.Markdown, "should we use postgres")
}

func TestFormatTieredClassifiesModerateTier(t *testing.T) {
	candidates := []ScoredDecision{{Node: decisionAt("1", "q", "c"), Score: 0.65}}
	result := FormatTiered(candidates, nil, DefaultTierBoundaries(), DefaultContextTokenBudget)
	assert.Equal(t, 1, result.TierCounts["moderate"])
}

func TestFormatTieredClassifiesBriefTier(t *testing.T) {
	candidates := []ScoredDecision{{Node: decisionAt("1", "q", "c"), Score: 0.45}}
	result := FormatTiered(candidates, nil, DefaultTierBoundaries(), DefaultContextTokenBudget)
	assert.Equal(t, 1, result.TierCounts["brief"])
}

func TestFormatTieredDropsBelowNoiseFloor(t *testing.T) {
	candidates := []ScoredDecision{{Node: decisionAt("1", "q", "c"), Score: 0.1}}
	result := FormatTiered(candidates, nil, DefaultTierBoundaries(), DefaultContextTokenBudget)
	assert.Equal(t, 0, result.TierCounts["strong"]+result.TierCounts["moderate"]+result.TierCounts["brief"])
	assert.Empty(t, result.Markdown)
}

func TestFormatTieredStopsAtTokenBudget(t *testing.T) {
	var candidates []ScoredDecision
	for i := 0; i < 50; i++ {
		candidates = append(candidates, ScoredDecision{
			Node:  decisionAt("id", "a moderately long repeated question about architecture choices", "a long consensus paragraph describing the decision in detail"),
			Score: 0.9,
		})
	}
	result := FormatTiered(candidates, nil, DefaultTierBoundaries(), 100)
	require.LessOrEqual(t, result.EstimatedTokens, 140)
	assert.Less(t, result.TierCounts["strong"], 50)
}

func TestFormatTieredIncludesStancesOnlyForStrongTier(t *testing.T) {
	stances := map[string][]domain.ParticipantStance{
		"1": {{DecisionID: "1", Participant: "a@x", FinalPosition: "we should do it"}},
	}
	candidates := []ScoredDecision{{Node: decisionAt("1", "q", "c"), Score: 0.9}}
	result := FormatTiered(candidates, stances, DefaultTierBoundaries(), DefaultContextTokenBudget)
	assert.Contains(t, result.Markdown, "a@x")
}
