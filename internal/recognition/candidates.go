package recognition

import (
	"github.com/4ier/logodeth/internal/ranking"
)

// Candidates converts a Result into ranking input. A Result carries a single
// answer, so the slice has one element.
func Candidates(r *Result) []ranking.Candidate {
	if r == nil {
		return []ranking.Candidate{}
	}
	c := ranking.Candidate{
		Label:      r.BandName,
		Confidence: r.Confidence,
	}
	if r.Genre != "" {
		genre := r.Genre
		c.Genre = &genre
	}
	cached := r.Cached
	c.Cached = &cached
	if r.AIModel != "" {
		model := r.AIModel
		c.Model = &model
	}
	return []ranking.Candidate{c}
}

// Ranked ranks a Result together with any alternates.
func Ranked(r *Result, alternates ...ranking.Candidate) []ranking.RankedResult {
	return ranking.Rank(append(Candidates(r), alternates...))
}
