package graph

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blueman82/go-counsel/internal/log"
	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/similarity"
)

// SimilarityLookbackCount bounds how many prior decisions are scored
// against a freshly stored one.
const SimilarityLookbackCount = 100

// MinSimilarityEdgeScore is the floor above which a similarity edge
// is persisted.
const MinSimilarityEdgeScore = 0.5

// Persister writes a completed deliberation into the decision graph:
// the DecisionNode first (its failure surfaces to the caller), then
// stances and similarity edges, whose failures are logged but never
// roll back the node.
type Persister struct {
	store Store
	sim   *similarity.Service
	cache *QueryCache
}

func NewPersister(store Store, sim *similarity.Service, cache *QueryCache) *Persister {
	return &Persister{store: store, sim: sim, cache: cache}
}

// PersistInput carries everything needed to build the DecisionNode and
// its ParticipantStance rows from a completed deliberation.
type PersistInput struct {
	Node           domain.DecisionNode
	FinalResponses map[string]domain.RoundResponse
	FinalVotes     map[string]domain.Vote
}

// Persist stores the deliberation. If the DecisionNode insert itself
// fails, the error is surfaced to the caller; every step after that is
// best-effort and only logged on failure.
func (p *Persister) Persist(ctx context.Context, in PersistInput) error {
	if in.Node.ID == "" {
		in.Node.ID = uuid.NewString()
	}

	if err := p.store.InsertDecision(ctx, in.Node); err != nil {
		return err
	}

	for participant, response := range in.FinalResponses {
		stance := domain.ParticipantStance{
			DecisionID:    in.Node.ID,
			Participant:   participant,
			FinalPosition: truncate(response.Text, domain.MaxFinalPositionLen),
		}
		if vote, ok := in.FinalVotes[participant]; ok {
			option := vote.Option
			confidence := vote.Confidence
			rationale := vote.Rationale
			stance.VoteOption = &option
			stance.Confidence = &confidence
			stance.Rationale = &rationale
		}
		if err := p.store.InsertStance(ctx, stance); err != nil {
			log.Warn("failed to persist participant stance", zap.String("decision_id", in.Node.ID), zap.String("participant", participant), zap.Error(err))
		}
	}

	p.persistSimilarities(ctx, in.Node)

	p.cache.Clear()

	return nil
}

func (p *Persister) persistSimilarities(ctx context.Context, node domain.DecisionNode) {
	recent, err := p.store.ListRecentDecisions(ctx, SimilarityLookbackCount, 0)
	if err != nil {
		log.Warn("failed to list recent decisions for similarity linking", zap.Error(err))
		return
	}
	for _, other := range recent {
		if other.ID == node.ID {
			continue
		}
		score, err := p.sim.Similarity(ctx, node.Question, other.Question)
		if err != nil {
			log.Warn("similarity computation failed for decision pair", zap.String("source", node.ID), zap.String("target", other.ID), zap.Error(err))
			continue
		}
		if score < MinSimilarityEdgeScore {
			continue
		}
		edge := domain.DecisionSimilarity{
			SourceID:   node.ID,
			TargetID:   other.ID,
			Score:      score,
			ComputedAt: node.Timestamp,
		}
		if err := p.store.UpsertSimilarity(ctx, edge); err != nil {
			log.Warn("failed to persist similarity edge", zap.String("source", node.ID), zap.String("target", other.ID), zap.Error(err))
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
