package graph

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/blueman82/go-counsel/internal/log"
	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/similarity"
)

// DefaultQueryWindow bounds how many recent decisions are scored per
// retrieval.
const DefaultQueryWindow = 1000

// ScoredDecision pairs a stored decision with its similarity to the
// query question.
type ScoredDecision struct {
	Node  domain.DecisionNode
	Score float64
}

// RetrieverConfig configures the three-step retrieval pipeline.
type RetrieverConfig struct {
	QueryWindow        int
	Threshold          float64
	MaxResults         int
	TierBoundaries     TierBoundaries
	ContextTokenBudget int
}

func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		QueryWindow:        DefaultQueryWindow,
		Threshold:          briefNoiseFloor,
		MaxResults:         10,
		TierBoundaries:     DefaultTierBoundaries(),
		ContextTokenBudget: DefaultContextTokenBudget,
	}
}

// Retriever produces a markdown context block for a new question from
// the decision graph's history.
type Retriever struct {
	store Store
	sim   *similarity.Service
	cache *QueryCache
	cfg   RetrieverConfig
}

func NewRetriever(store Store, sim *similarity.Service, cache *QueryCache, cfg RetrieverConfig) *Retriever {
	if cfg.QueryWindow <= 0 {
		cfg.QueryWindow = DefaultQueryWindow
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &Retriever{store: store, sim: sim, cache: cache, cfg: cfg}
}

// Retrieve runs the cache -> candidate-retrieval -> tiered-formatting
// pipeline. Any internal failure is swallowed and the empty string is
// returned, so deliberation proceeds without context.
func (r *Retriever) Retrieve(ctx context.Context, question string) string {
	result, err := r.retrieve(ctx, question)
	if err != nil {
		log.Warn("decision graph retrieval failed, proceeding without context", zap.Error(err))
		return ""
	}
	return result.Markdown
}

func (r *Retriever) retrieve(ctx context.Context, question string) (FormatResult, error) {
	key := CacheKey(question, r.cfg.Threshold, r.cfg.MaxResults)

	var scored []ScoredDecision
	if ids, hit := r.cache.Get(key); hit {
		for _, id := range ids {
			node, err := r.store.GetDecision(ctx, id)
			if err != nil {
				log.Warn("cached decision missing, likely deleted", zap.String("decision_id", id))
				continue
			}
			score, err := r.sim.Similarity(ctx, question, node.Question)
			if err != nil {
				return FormatResult{}, err
			}
			scored = append(scored, ScoredDecision{Node: *node, Score: score})
		}
	} else {
		recent, err := r.store.ListRecentDecisions(ctx, r.cfg.QueryWindow, 0)
		if err != nil {
			return FormatResult{}, err
		}
		for _, node := range recent {
			score, err := r.sim.Similarity(ctx, question, node.Question)
			if err != nil {
				return FormatResult{}, err
			}
			if score < r.cfg.Threshold {
				continue
			}
			scored = append(scored, ScoredDecision{Node: node, Score: score})
		}
		sortByScoreDesc(scored)
		if len(scored) > r.cfg.MaxResults {
			scored = scored[:r.cfg.MaxResults]
		}
		ids := make([]string, len(scored))
		for i, s := range scored {
			ids[i] = s.Node.ID
		}
		r.cache.Put(key, ids)
	}

	stances := make(map[string][]domain.ParticipantStance, len(scored))
	for _, s := range scored {
		if s.Score < r.cfg.TierBoundaries.Strong {
			continue
		}
		st, err := r.store.ListStances(ctx, s.Node.ID)
		if err != nil {
			return FormatResult{}, err
		}
		stances[s.Node.ID] = st
	}

	return FormatTiered(scored, stances, r.cfg.TierBoundaries, r.cfg.ContextTokenBudget), nil
}

func sortByScoreDesc(scored []ScoredDecision) {
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
}
