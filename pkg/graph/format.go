package graph

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/blueman82/go-counsel/pkg/domain"
)

// TierBoundaries configures the strong/moderate/brief formatting tiers.
type TierBoundaries struct {
	Strong   float64
	Moderate float64
}

func DefaultTierBoundaries() TierBoundaries {
	return TierBoundaries{Strong: 0.75, Moderate: 0.60}
}

const briefNoiseFloor = 0.40

// DefaultContextTokenBudget bounds total emitted context size.
const DefaultContextTokenBudget = 1500

type tier int

const (
	tierBrief tier = iota
	tierModerate
	tierStrong
)

func classifyTier(score float64, b TierBoundaries) (tier, bool) {
	switch {
	case score >= b.Strong:
		return tierStrong, true
	case score >= b.Moderate:
		return tierModerate, true
	case score >= briefNoiseFloor:
		return tierBrief, true
	default:
		return 0, false
	}
}

// estimateTokens approximates token count as bytes/4, the cheap
// heuristic the budget loop runs on; preciseTokens (backed by
// tiktoken-go) is used only as an auxiliary metric in the returned
// summary, never to gate emission.
func estimateTokens(s string) int {
	return len(s) / 4
}

var tiktokenEncoding, _ = tiktoken.GetEncoding("cl100k_base")

func preciseTokens(s string) int {
	if tiktokenEncoding == nil {
		return estimateTokens(s)
	}
	return len(tiktokenEncoding.Encode(s, nil, nil))
}

// FormatResult is the retriever's output: concatenated markdown plus a
// budget-usage summary.
type FormatResult struct {
	Markdown        string
	EstimatedTokens int
	PreciseTokens   int
	TierCounts      map[string]int
}

// FormatTiered renders scored candidates in descending-score order,
// stopping as soon as the estimated running token total would exceed
// budget.
func FormatTiered(candidates []ScoredDecision, stances map[string][]domain.ParticipantStance, boundaries TierBoundaries, budget int) FormatResult {
	if budget <= 0 {
		budget = DefaultContextTokenBudget
	}
	result := FormatResult{TierCounts: map[string]int{"strong": 0, "moderate": 0, "brief": 0}}

	var b strings.Builder
	for _, c := range candidates {
		t, ok := classifyTier(c.Score, boundaries)
		if !ok {
			continue
		}
		block := formatOne(c, t, stances[c.Node.ID])
		blockTokens := estimateTokens(block)
		if result.EstimatedTokens+blockTokens > budget {
			break
		}
		b.WriteString(block)
		result.EstimatedTokens += blockTokens
		switch t {
		case tierStrong:
			result.TierCounts["strong"]++
		case tierModerate:
			result.TierCounts["moderate"]++
		case tierBrief:
			result.TierCounts["brief"]++
		}
	}

	result.Markdown = b.String()
	result.PreciseTokens = preciseTokens(result.Markdown)
	return result
}

func formatOne(c ScoredDecision, t tier, stances []domain.ParticipantStance) string {
	switch t {
	case tierStrong:
		var sb strings.Builder
		fmt.Fprintf(&sb, "### %s (similarity %.2f)\n", c.Node.Question, c.Score)
		fmt.Fprintf(&sb, "Consensus: %s\n", c.Node.Consensus)
		if c.Node.WinningOption != "" {
			fmt.Fprintf(&sb, "Winning option: %s\n", c.Node.WinningOption)
		}
		for _, st := range stances {
			option := "none"
			if st.VoteOption != nil {
				option = *st.VoteOption
			}
			confidence := 0.0
			if st.Confidence != nil {
				confidence = *st.Confidence
			}
			rationale := ""
			if st.Rationale != nil {
				rationale = *st.Rationale
			}
			fmt.Fprintf(&sb, "- %s voted %s (confidence %.2f): %s\n", st.Participant, option, confidence, rationale)
		}
		sb.WriteString("\n")
		return sb.String()
	case tierModerate:
		return fmt.Sprintf("### %s\nConsensus: %s\nWinning option: %s\n\n", c.Node.Question, c.Node.Consensus, c.Node.WinningOption)
	default:
		return fmt.Sprintf("- %s → %s\n", c.Node.Question, c.Node.Consensus)
	}
}
