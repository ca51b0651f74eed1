// Package convergence implements the Convergence Detector: per-round
// semantic-similarity classification of how a deliberation's
// participants are trending.
package convergence

import (
	"context"

	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/similarity"
)

// Thresholds configures the single-pass status classification. Zero
// values are replaced with the defaults by NewDetector.
type Thresholds struct {
	SemanticSimilarity float64
	Divergence         float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{SemanticSimilarity: 0.85, Divergence: 0.40}
}

// Detector computes ConvergenceInfo from one round to the next. It is
// authoritative for stop decisions driven by semantic similarity; the
// Vote Subprotocol may still override the final reported status.
type Detector struct {
	sim        *similarity.Service
	thresholds Thresholds

	prevAvg float64
	haveAvg bool
}

func NewDetector(sim *similarity.Service, thresholds Thresholds) *Detector {
	if thresholds.SemanticSimilarity == 0 {
		thresholds.SemanticSimilarity = DefaultThresholds().SemanticSimilarity
	}
	if thresholds.Divergence == 0 {
		thresholds.Divergence = DefaultThresholds().Divergence
	}
	return &Detector{sim: sim, thresholds: thresholds}
}

// Evaluate compares current round responses against the previous
// round's, keyed by participant identity. It is meaningless for round
// 1 and callers must not invoke it before round 2.
func (d *Detector) Evaluate(ctx context.Context, round int, previous, current []domain.RoundResponse) (domain.ConvergenceInfo, error) {
	prevByParticipant := make(map[string]string, len(previous))
	for _, r := range previous {
		prevByParticipant[r.Participant] = r.Text
	}

	perParticipant := make(map[string]float64)
	var sum float64
	var n int
	for _, r := range current {
		prevText, ok := prevByParticipant[r.Participant]
		if !ok {
			continue
		}
		score, err := d.sim.Similarity(ctx, prevText, r.Text)
		if err != nil {
			return domain.ConvergenceInfo{}, err
		}
		perParticipant[r.Participant] = score
		sum += score
		n++
	}

	info := domain.ConvergenceInfo{
		PerParticipant: perParticipant,
		Status:         domain.StatusUnknown,
	}
	if n == 0 {
		d.haveAvg = false
		return info, nil
	}

	avg := sum / float64(n)
	info.FinalSimilarity = avg
	info.Status = d.classify(perParticipant, avg)
	if info.Status == domain.StatusConverged {
		info.Detected = true
		r := round
		info.DetectionRound = &r
	}

	d.prevAvg = avg
	d.haveAvg = true
	return info, nil
}

func (d *Detector) classify(perParticipant map[string]float64, avg float64) domain.ConvergenceStatus {
	allAbove := true
	allBelow := true
	for _, s := range perParticipant {
		if s < d.thresholds.SemanticSimilarity {
			allAbove = false
		}
		if s > d.thresholds.Divergence {
			allBelow = false
		}
	}
	switch {
	case allAbove:
		return domain.StatusConverged
	case allBelow:
		return domain.StatusImpasse
	case d.haveAvg && avg > d.prevAvg:
		return domain.StatusRefining
	default:
		return domain.StatusDiverging
	}
}
