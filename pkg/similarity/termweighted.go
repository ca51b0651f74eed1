package similarity

import (
	"context"
	"math"
	"strings"
)

// TermWeighted scores similarity via TF-IDF cosine over the two
// compared texts treated as a 2-document corpus. This
// keeps the contract stateless (similarity(a,b) -> score) while still
// down-weighting terms common to both inputs relative to terms unique
// to one, unlike plain Jaccard.
type TermWeighted struct{}

func NewTermWeighted() *TermWeighted { return &TermWeighted{} }

func (t *TermWeighted) Name() string { return "term-weighted" }

func (t *TermWeighted) Similarity(_ context.Context, a, b string) (float64, error) {
	docA := wordRe.FindAllString(strings.ToLower(a), -1)
	docB := wordRe.FindAllString(strings.ToLower(b), -1)
	if len(docA) == 0 && len(docB) == 0 {
		return 0, nil
	}

	tfA := termFrequency(docA)
	tfB := termFrequency(docB)

	vocab := make(map[string]struct{}, len(tfA)+len(tfB))
	for w := range tfA {
		vocab[w] = struct{}{}
	}
	for w := range tfB {
		vocab[w] = struct{}{}
	}

	var dot, normA, normB float64
	for w := range vocab {
		wa := tfidf(tfA[w], w, tfA, tfB)
		wb := tfidf(tfB[w], w, tfA, tfB)
		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

func termFrequency(doc []string) map[string]float64 {
	tf := make(map[string]float64, len(doc))
	for _, w := range doc {
		tf[w]++
	}
	total := float64(len(doc))
	if total == 0 {
		return tf
	}
	for w := range tf {
		tf[w] /= total
	}
	return tf
}

// tfidf computes a term's weight using inverse document frequency over
// the 2-document corpus {tfA, tfB}: idf = log(2 / docsContainingTerm) + 1.
func tfidf(tf float64, term string, tfA, tfB map[string]float64) float64 {
	docsContaining := 0
	if _, ok := tfA[term]; ok {
		docsContaining++
	}
	if _, ok := tfB[term]; ok {
		docsContaining++
	}
	if docsContaining == 0 {
		return 0
	}
	idf := math.Log(2.0/float64(docsContaining)) + 1
	return tf * idf
}
