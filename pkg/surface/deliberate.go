package surface

import (
	"context"
	"fmt"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/pkg/domain"
)

// DeliberateResponse wraps the engine's result with the warnings
// collected during request validation.
type DeliberateResponse struct {
	domain.DeliberationResult
	Warnings []string `json:"warnings,omitempty"`
}

// Deliberate validates req, invokes the engine, and truncates
// full_debate for the response if it exceeds ResponseRoundCap.
func (s *Surface) Deliberate(ctx context.Context, req domain.DeliberateRequest) (DeliberateResponse, error) {
	if req.Rounds == 0 {
		req.Rounds = 2
	}
	if req.Mode == "" {
		req.Mode = domain.ModeQuick
	}

	warnings, err := s.validateDeliberate(req)
	if err != nil {
		return DeliberateResponse{}, err
	}

	result, err := s.Engine.Deliberate(ctx, req)
	if err != nil {
		return DeliberateResponse{}, err
	}

	truncateFullDebate(&result, s.effectiveRoundCap())

	return DeliberateResponse{DeliberationResult: result, Warnings: warnings}, nil
}

func (s *Surface) effectiveRoundCap() int {
	if s.ResponseRoundCap <= 0 {
		return 3
	}
	return s.ResponseRoundCap
}

func (s *Surface) validateDeliberate(req domain.DeliberateRequest) ([]string, error) {
	if len(req.Question) < domain.MinQuestionLen {
		return nil, errs.Validation("question must be at least %d characters", domain.MinQuestionLen)
	}
	if len(req.Participants) < domain.MinParticipants {
		return nil, errs.Validation("at least %d participants are required", domain.MinParticipants)
	}
	if req.Rounds < 1 || req.Rounds > domain.MaxRounds {
		return nil, errs.Validation("rounds must be in [1, %d]", domain.MaxRounds)
	}
	if req.Mode != domain.ModeQuick && req.Mode != domain.ModeConference {
		return nil, errs.Validation("mode must be %q or %q", domain.ModeQuick, domain.ModeConference)
	}

	var warnings []string
	for i, p := range req.Participants {
		if s.AllowedBackends != nil && !s.AllowedBackends[p.BackendID] {
			return nil, errs.Validation("participant %d: backend %q is not configured", i, p.BackendID)
		}
		if p.ModelID == "" {
			return nil, errs.Validation("participant %d: model is required", i)
		}
		switch p.Stance {
		case domain.StanceNeutral, domain.StanceFor, domain.StanceAgainst:
		default:
			return nil, errs.Validation("participant %d: stance %q is invalid", i, p.Stance)
		}
		if known, ok := s.KnownModels[p.BackendID]; ok && !contains(known, p.ModelID) {
			warnings = append(warnings, fmt.Sprintf("participant %d: model %q is not a recognized model for backend %q", i, p.ModelID, p.BackendID))
		}
	}
	return warnings, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// truncateFullDebate keeps only the responses belonging to the last
// cap rounds. The full transcript on disk is unaffected.
func truncateFullDebate(result *domain.DeliberationResult, roundCap int) {
	if result.RoundsCompleted <= roundCap {
		return
	}
	cutoff := result.RoundsCompleted - roundCap
	kept := result.FullDebate[:0:0]
	for _, r := range result.FullDebate {
		if r.Round > cutoff {
			kept = append(kept, r)
		}
	}
	result.TotalRounds = result.RoundsCompleted
	result.FullDebate = kept
	result.FullDebateTruncated = true
}
