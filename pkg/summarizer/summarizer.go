// Package summarizer implements the Deliberation Engine's secondary
// backend call that produces the final consensus/agreements/
// disagreements/recommendation summary for a completed debate.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/internal/log"
	"github.com/blueman82/go-counsel/pkg/backend"
	"github.com/blueman82/go-counsel/pkg/domain"
)

// Preference pins a model id to a backend for the summarization call.
// The model matters: a backend's adapter may serve many models, and an
// empty model id is rejected outright by most HTTP endpoints.
type Preference struct {
	BackendID string
	Model     string
}

// Summarizer invokes a backend adapter to turn a completed debate into
// a structured Summary. It implements pkg/deliberation.Summarizer
// without that package needing to import this one. The summarizer is
// just another adapter invocation over the same uniform interface,
// with the response parsed back into a Summary.
type Summarizer struct {
	adapters map[string]backend.Adapter
	chosen   Preference
}

// New selects the summarizer's backend and model once, at
// construction, taking the first preference entry whose adapter is
// present and logging the choice, matching the deterministic-
// decision-table spirit of pkg/backend.Factory.
func New(adapters map[string]backend.Adapter, preference []Preference) (*Summarizer, error) {
	for _, p := range preference {
		if _, ok := adapters[p.BackendID]; ok {
			log.Info("summarizer backend selected",
				zap.String("backend", p.BackendID),
				zap.String("model", p.Model))
			return &Summarizer{adapters: adapters, chosen: p}, nil
		}
	}
	return nil, errs.Summarizer(nil, "no configured backend among preference list is available")
}

const summaryPrompt = `Summarize the deliberation below. Respond with a single JSON object
matching exactly: {"consensus": "...", "key_agreements": ["..."], "key_disagreements": ["..."], "final_recommendation": "..."}
Do not include any text outside the JSON object.

Question: %s

Debate transcript:
%s
`

// Summarize calls the chosen summarizer adapter and strictly parses its
// JSON response into a Summary. Failure is a SummarizerError, which
// pkg/deliberation.Engine catches and substitutes a placeholder for.
func (s *Summarizer) Summarize(ctx context.Context, req domain.DeliberateRequest, debate []domain.RoundResponse, voting *domain.VotingResult) (domain.Summary, error) {
	adapter, ok := s.adapters[s.chosen.BackendID]
	if !ok {
		return domain.Summary{}, errs.Summarizer(nil, "summarizer backend %q no longer available", s.chosen.BackendID)
	}

	transcript := renderTranscript(debate)
	prompt := fmt.Sprintf(summaryPrompt, req.Question, transcript)
	if voting != nil && voting.WinningOption != nil {
		prompt += fmt.Sprintf("\nVote tally: %v (winning option: %s)\n", voting.FinalTally, *voting.WinningOption)
	}

	text, err := adapter.Invoke(ctx, prompt, s.chosen.Model, backend.InvokeOptions{IsDeliberation: false})
	if err != nil {
		return domain.Summary{}, errs.Summarizer(err, "summarizer invocation failed")
	}

	summary, err := parseSummary(text)
	if err != nil {
		return domain.Summary{}, errs.Summarizer(err, "summarizer response was not valid JSON")
	}
	return summary, nil
}

func renderTranscript(debate []domain.RoundResponse) string {
	var b strings.Builder
	for _, r := range debate {
		fmt.Fprintf(&b, "Round %d — %s (%s): %s\n\n", r.Round, r.Participant, r.Stance, r.Text)
	}
	return strings.TrimSpace(b.String())
}

// parseSummary extracts the first JSON object in text (models
// sometimes wrap it in prose or a code fence despite instructions) and
// decodes it into a Summary.
func parseSummary(text string) (domain.Summary, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return domain.Summary{}, fmt.Errorf("no JSON object found in response")
	}
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	var summary domain.Summary
	if err := dec.Decode(&summary); err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
}
