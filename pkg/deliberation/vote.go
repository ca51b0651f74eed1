// Package deliberation implements the Vote Subprotocol and the
// Deliberation Engine that orchestrates rounds of participant
// invocations, convergence detection, and post-processing.
package deliberation

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/similarity"
)

var voteMarkerRe = regexp.MustCompile(`VOTE:\s*(\{.*\})`)

// VoteInstructions is appended to every question before invocation so
// each participant knows the exact marker format a vote must use.
const VoteInstructions = `
VOTE: {"option": "...", "confidence": 0.0-1.0, "rationale": "...", "continue_debate": true|false}`

// voteWire mirrors domain.Vote but leaves continue_debate as a pointer
// so a wire payload that omits the field can be told apart from one
// that sets it false; an omitted field defaults to true.
type voteWire struct {
	Option         string   `json:"option"`
	Confidence     float64  `json:"confidence"`
	Rationale      string   `json:"rationale"`
	ContinueDebate *bool    `json:"continue_debate"`
}

// ParseVote extracts and strictly validates a Vote from response text.
// A malformed or missing vote is not an error: ok is false.
func ParseVote(text string) (domain.Vote, bool) {
	m := voteMarkerRe.FindStringSubmatch(text)
	if m == nil {
		return domain.Vote{}, false
	}
	var w voteWire
	if err := json.Unmarshal([]byte(m[1]), &w); err != nil {
		return domain.Vote{}, false
	}
	v := domain.Vote{Option: w.Option, Confidence: w.Confidence, Rationale: w.Rationale, ContinueDebate: true}
	if w.ContinueDebate != nil {
		v.ContinueDebate = *w.ContinueDebate
	}
	if strings.TrimSpace(v.Option) == "" {
		return domain.Vote{}, false
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return domain.Vote{}, false
	}
	return v, true
}

// GroupingConfig controls the optional vote-option grouping pass.
// Grouping defaults off; when enabled the threshold is hard-floored at
// 0.85 regardless of caller input, per the documented 0.70-threshold
// regression.
type GroupingConfig struct {
	Enabled   bool
	Threshold float64
}

const MinGroupingThreshold = 0.85

func (g GroupingConfig) effectiveThreshold() float64 {
	if g.Threshold < MinGroupingThreshold {
		return MinGroupingThreshold
	}
	return g.Threshold
}

// TallyVotes aggregates parsed votes across all rounds into a
// VotingResult, optionally grouping near-duplicate option labels first.
func TallyVotes(ctx context.Context, sim *similarity.Service, votesByRound [][]domain.Vote, grouping GroupingConfig) domain.VotingResult {
	result := domain.VotingResult{
		FinalTally:   make(map[string]int),
		VotesByRound: votesByRound,
	}

	canonical := map[string]string{}
	firstSeen := []string{}

	labelFor := func(option string) string {
		if !grouping.Enabled || sim == nil {
			return option
		}
		if c, ok := canonical[option]; ok {
			return c
		}
		threshold := grouping.effectiveThreshold()
		for _, seen := range firstSeen {
			score, err := sim.Similarity(ctx, option, seen)
			if err == nil && score >= threshold {
				canonical[option] = seen
				return seen
			}
		}
		canonical[option] = option
		firstSeen = append(firstSeen, option)
		return option
	}

	for _, round := range votesByRound {
		for _, v := range round {
			result.FinalTally[labelFor(v.Option)]++
		}
	}

	var winner string
	var winnerCount int
	tie := false
	for option, count := range result.FinalTally {
		switch {
		case count > winnerCount:
			winner, winnerCount, tie = option, count, false
		case count == winnerCount && winnerCount > 0:
			tie = true
		}
	}

	if winnerCount > 0 && !tie {
		w := winner
		result.WinningOption = &w
		result.ConsensusReached = true
	}

	return result
}
