package surface

import (
	"context"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/pkg/domain"
)

// QueryDecisionsRequest is the validated input to query_decisions.
// Exactly one of QueryText, FindContradictions, DecisionID selects the
// active mode.
type QueryDecisionsRequest struct {
	QueryText          *string
	FindContradictions bool
	DecisionID         *string
	Limit              int
	Format             string
}

// QueryDecisionsResponse carries whichever result shape the active
// mode produced; exactly one field is populated.
type QueryDecisionsResponse struct {
	SimilarDecisions []SimilarDecision     `json:"similar_decisions,omitempty"`
	Contradictions   []Contradiction       `json:"contradictions,omitempty"`
	Evolution        []domain.DecisionNode `json:"evolution,omitempty"`
}

// SimilarDecision pairs a decision with its similarity score against
// the query.
type SimilarDecision struct {
	Decision domain.DecisionNode `json:"decision"`
	Score    float64             `json:"score"`
}

// Contradiction is a pair of decisions whose participants disagreed on
// an overlapping question (a decision-similarity edge whose source and
// target winning options differ).
type Contradiction struct {
	Source domain.DecisionNode `json:"source"`
	Target domain.DecisionNode `json:"target"`
	Score  float64             `json:"score"`
}

const maxQueryWindow = 1000

// QueryDecisions dispatches to the single active mode implied by req.
func (s *Surface) QueryDecisions(ctx context.Context, req QueryDecisionsRequest) (QueryDecisionsResponse, error) {
	if s.Store == nil {
		return QueryDecisionsResponse{}, errs.Validation("decision graph is disabled")
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}

	modes := 0
	if req.QueryText != nil {
		modes++
	}
	if req.FindContradictions {
		modes++
	}
	if req.DecisionID != nil {
		modes++
	}
	if modes > 1 {
		return QueryDecisionsResponse{}, errs.Validation("exactly one of query_text, find_contradictions, decision_id may be set")
	}

	switch {
	case req.QueryText != nil:
		return s.querySimilar(ctx, *req.QueryText, req.Limit)
	case req.FindContradictions:
		return s.queryContradictions(ctx, req.Limit)
	case req.DecisionID != nil:
		return s.queryEvolution(ctx, *req.DecisionID, req.Limit)
	default:
		return QueryDecisionsResponse{}, errs.Validation("one of query_text, find_contradictions, decision_id is required")
	}
}

func (s *Surface) querySimilar(ctx context.Context, queryText string, limit int) (QueryDecisionsResponse, error) {
	recent, err := s.Store.ListRecentDecisions(ctx, maxQueryWindow, 0)
	if err != nil {
		return QueryDecisionsResponse{}, errs.Retrieval(err, "listing recent decisions")
	}

	var scored []SimilarDecision
	for _, d := range recent {
		score, err := s.Sim.Similarity(ctx, queryText, d.Question)
		if err != nil {
			continue
		}
		scored = append(scored, SimilarDecision{Decision: d, Score: score})
	}
	sortSimilarDesc(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return QueryDecisionsResponse{SimilarDecisions: scored}, nil
}

func sortSimilarDesc(scored []SimilarDecision) {
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].Score > scored[j-1].Score; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
}

// queryContradictions surfaces similarity edges above a relatedness
// floor whose endpoints reached different winning options, i.e. the
// decision graph recorded disagreement across related questions.
func (s *Surface) queryContradictions(ctx context.Context, limit int) (QueryDecisionsResponse, error) {
	recent, err := s.Store.ListRecentDecisions(ctx, maxQueryWindow, 0)
	if err != nil {
		return QueryDecisionsResponse{}, errs.Retrieval(err, "listing recent decisions")
	}

	byID := make(map[string]domain.DecisionNode, len(recent))
	for _, d := range recent {
		byID[d.ID] = d
	}

	const relatednessFloor = 0.5
	var out []Contradiction
	for _, d := range recent {
		edges, err := s.Store.ListSimilarDecisions(ctx, d.ID, relatednessFloor, limit)
		if err != nil {
			continue
		}
		for _, e := range edges {
			target, ok := byID[e.TargetID]
			if !ok {
				continue
			}
			if d.WinningOption != "" && target.WinningOption != "" && d.WinningOption != target.WinningOption {
				out = append(out, Contradiction{Source: d, Target: target, Score: e.Score})
			}
		}
		if len(out) >= limit {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return QueryDecisionsResponse{Contradictions: out}, nil
}

// queryEvolution walks the similarity edges from decisionID backward
// through TargetID, building the chain of decisions it descends from,
// oldest first.
func (s *Surface) queryEvolution(ctx context.Context, decisionID string, limit int) (QueryDecisionsResponse, error) {
	root, err := s.Store.GetDecision(ctx, decisionID)
	if err != nil {
		return QueryDecisionsResponse{}, errs.Retrieval(err, "decision %q not found", decisionID)
	}

	chain := []domain.DecisionNode{*root}
	currentID := decisionID
	for len(chain) < limit {
		edges, err := s.Store.ListSimilarDecisions(ctx, currentID, 0, 1)
		if err != nil || len(edges) == 0 {
			break
		}
		next, err := s.Store.GetDecision(ctx, edges[0].TargetID)
		if err != nil || next == nil {
			break
		}
		chain = append(chain, *next)
		currentID = next.ID
	}

	reversed := make([]domain.DecisionNode, len(chain))
	for i, d := range chain {
		reversed[len(chain)-1-i] = d
	}
	return QueryDecisionsResponse{Evolution: reversed}, nil
}
