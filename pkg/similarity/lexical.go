package similarity

import (
	"context"
	"regexp"

	"golang.org/x/text/cases"
)

var wordRe = regexp.MustCompile(`[A-Za-z0-9']+`)

// caseFold applies Unicode case folding to tokens, so a participant
// writing "API" and one writing "api" land in the same token.
var caseFold = cases.Fold()

func tokenSet(s string) map[string]struct{} {
	words := wordRe.FindAllString(caseFold.String(s), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Lexical is the always-available floor backend: word-set Jaccard
// similarity.
type Lexical struct{}

func NewLexical() *Lexical { return &Lexical{} }

func (l *Lexical) Name() string { return "lexical" }

func (l *Lexical) Similarity(_ context.Context, a, b string) (float64, error) {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0, nil
	}
	intersection := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			intersection++
		}
	}
	union := len(sa) + len(sb) - intersection
	if union == 0 {
		return 0, nil
	}
	return float64(intersection) / float64(union), nil
}
