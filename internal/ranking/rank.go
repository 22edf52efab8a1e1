package ranking

import (
	"sort"
)

// fractionThreshold is the largest confidence value read as a fraction of 1.
const fractionThreshold = 1.0

// Candidate is one raw recognition result before display normalization.
type Candidate struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"` // [0,1] or [0,100], see NormalizeConfidence
	Genre      *string `json:"genre,omitempty"`
	Cached     *bool   `json:"cached,omitempty"`
	Model      *string `json:"model,omitempty"`
}

// RankedResult is a Candidate with its confidence expressed as a percentage
// and a 1-based rank assigned by descending confidence.
type RankedResult struct {
	Rank int `json:"rank"`
	Candidate
}

// NormalizeConfidence converts a confidence value to the 0-100 percentage scale.
// Values <= 1 are treated as fractions and multiplied by 100; larger values are
// returned unchanged. No rounding or clamping is applied.
func NormalizeConfidence(confidence float64) float64 {
	if confidence <= fractionThreshold {
		return confidence * 100
	}
	return confidence
}

// Rank normalizes every candidate's confidence and returns them ordered by
// descending percentage, ties kept in input order. The input slice is not
// modified. An empty or nil input yields an empty, non-nil slice.
func Rank(candidates []Candidate) []RankedResult {
	results := make([]RankedResult, len(candidates))
	for i, c := range candidates {
		c.Confidence = NormalizeConfidence(c.Confidence)
		results[i] = RankedResult{Candidate: c}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})

	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// Top returns at most k ranked results. A non-positive k returns all of them.
func Top(results []RankedResult, k int) []RankedResult {
	if k <= 0 || len(results) <= k {
		return results
	}
	return results[:k]
}
