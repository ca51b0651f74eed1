// Package graph implements the Decision-Graph Store and Retriever: a
// persistent, indexed record of past deliberations plus a
// budget-aware retrieval pipeline that injects relevant history into
// new questions.
package graph

import (
	"context"
	"time"

	"github.com/blueman82/go-counsel/pkg/domain"
)

// Store is the persistence contract for decisions, stances, and the
// similarity edges between decisions.
type Store interface {
	InsertDecision(ctx context.Context, node domain.DecisionNode) error
	InsertStance(ctx context.Context, stance domain.ParticipantStance) error
	UpsertSimilarity(ctx context.Context, edge domain.DecisionSimilarity) error

	GetDecision(ctx context.Context, id string) (*domain.DecisionNode, error)
	ListRecentDecisions(ctx context.Context, limit, offset int) ([]domain.DecisionNode, error)
	ListStances(ctx context.Context, decisionID string) ([]domain.ParticipantStance, error)
	ListSimilarDecisions(ctx context.Context, sourceID string, minScore float64, limit int) ([]domain.DecisionSimilarity, error)

	Health(ctx context.Context, growthWindow time.Duration) (HealthReport, error)

	Close() error
}

// HealthReport is the store's maintenance/health surface.
type HealthReport struct {
	DecisionCount      int64
	StanceCount        int64
	SimilarityCount    int64
	DatabaseSizeBytes  int64
	OrphanStanceCount  int64
	InvalidScoreCount  int64
	DecisionsInWindow  int64
	GrowthWindow       time.Duration
}
