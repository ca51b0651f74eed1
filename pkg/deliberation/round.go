package deliberation

import (
	"fmt"
	"strings"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/pkg/domain"
)

// buildRoundContext renders every accumulated response as
// "Round k - participant (stance): text".
func buildRoundContext(responses []domain.RoundResponse) string {
	if len(responses) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range responses {
		fmt.Fprintf(&b, "Round %d — %s (%s): %s\n\n", r.Round, r.Participant, r.Stance, r.Text)
	}
	return strings.TrimSpace(b.String())
}

// combineContext prepends graph-retrieved context (round 1 only) to
// the running round context.
func combineContext(graphContext, roundContext string) string {
	switch {
	case graphContext == "":
		return roundContext
	case roundContext == "":
		return graphContext
	default:
		return graphContext + "\n\n" + roundContext
	}
}

// errorEntry renders a caught adapter error as the synthetic response
// text that takes that participant's slot for the round.
func errorEntry(err error) string {
	var e *errs.Error
	if as, ok := err.(*errs.Error); ok {
		e = as
	}
	if e != nil {
		return fmt.Sprintf("[ERROR: %s: %s]", e.Kind, e.Message)
	}
	return fmt.Sprintf("[ERROR: backend_invocation: %s]", err.Error())
}

// roundsOf filters responses down to one round.
func roundsOf(responses []domain.RoundResponse, round int) []domain.RoundResponse {
	out := make([]domain.RoundResponse, 0, len(responses))
	for _, r := range responses {
		if r.Round == round {
			out = append(out, r)
		}
	}
	return out
}
