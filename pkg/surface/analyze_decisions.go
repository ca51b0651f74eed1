package surface

import (
	"context"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/pkg/domain"
)

// AnalyzeDecisionsRequest optionally scopes the analysis to one
// participant's voting record.
type AnalyzeDecisionsRequest struct {
	Participant *string
}

// ParticipantPattern is one participant's aggregate voting behavior.
type ParticipantPattern struct {
	Participant       string         `json:"participant"`
	TotalVotes        int            `json:"total_votes"`
	AverageConfidence float64        `json:"average_confidence"`
	PreferredOptions  map[string]int `json:"preferred_options"`
}

// AnalyzeDecisionsResponse aggregates the decision graph's history:
// totals, per-participant voting patterns, convergence statistics and
// participation metrics.
type AnalyzeDecisionsResponse struct {
	TotalDecisions        int                              `json:"total_decisions"`
	TotalParticipants     int                              `json:"total_participants"`
	VotingPatterns        map[string]ParticipantPattern    `json:"voting_patterns"`
	ConvergenceStatistics map[domain.ConvergenceStatus]int `json:"convergence_statistics"`
	ParticipationCounts   map[string]int                   `json:"participation_counts"`
}

// AnalyzeDecisions scans the decision graph's recent history and
// aggregates per-participant and whole-graph statistics. There is no
// RPC-level pagination here; analysis runs over at most maxQueryWindow
// recent decisions, a fixed cap independent of the retriever's
// configured query window.
func (s *Surface) AnalyzeDecisions(ctx context.Context, req AnalyzeDecisionsRequest) (AnalyzeDecisionsResponse, error) {
	if s.Store == nil {
		return AnalyzeDecisionsResponse{}, errs.Validation("decision graph is disabled")
	}
	decisions, err := s.Store.ListRecentDecisions(ctx, maxQueryWindow, 0)
	if err != nil {
		return AnalyzeDecisionsResponse{}, errs.Retrieval(err, "listing recent decisions")
	}

	resp := AnalyzeDecisionsResponse{
		TotalDecisions:        len(decisions),
		VotingPatterns:        make(map[string]ParticipantPattern),
		ConvergenceStatistics: make(map[domain.ConvergenceStatus]int),
		ParticipationCounts:   make(map[string]int),
	}

	participantSet := make(map[string]bool)
	sums := make(map[string]float64)

	for _, d := range decisions {
		resp.ConvergenceStatistics[d.ConvergenceStatus]++
		for _, p := range d.Participants {
			participantSet[p] = true
			resp.ParticipationCounts[p]++
		}

		stances, err := s.Store.ListStances(ctx, d.ID)
		if err != nil {
			continue
		}
		for _, st := range stances {
			if req.Participant != nil && st.Participant != *req.Participant {
				continue
			}
			pattern := resp.VotingPatterns[st.Participant]
			pattern.Participant = st.Participant
			if st.VoteOption != nil {
				pattern.TotalVotes++
				if pattern.PreferredOptions == nil {
					pattern.PreferredOptions = make(map[string]int)
				}
				pattern.PreferredOptions[*st.VoteOption]++
			}
			if st.Confidence != nil {
				sums[st.Participant] += *st.Confidence
			}
			resp.VotingPatterns[st.Participant] = pattern
		}
	}

	for participant, pattern := range resp.VotingPatterns {
		if pattern.TotalVotes > 0 {
			pattern.AverageConfidence = sums[participant] / float64(pattern.TotalVotes)
			resp.VotingPatterns[participant] = pattern
		}
	}

	resp.TotalParticipants = len(participantSet)
	return resp, nil
}
