package client

import (
	"fmt"
	"time"

	"github.com/4ier/logodeth/internal/ranking"
)

// CacheAge renders how long ago cachedAt was, relative to now.
func CacheAge(cachedAt, now time.Time) string {
	if cachedAt.IsZero() {
		return "unknown age"
	}
	d := now.Sub(cachedAt)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

// Percent renders a ranked confidence, already on the 0-100 scale, with one
// decimal. Out of range values are clamped.
func Percent(pct float64) string {
	return fmt.Sprintf("%.1f%%", max(0, min(pct, 100)))
}

// SuccessMessage describes where a result came from.
func SuccessMessage(r *Result, now time.Time) string {
	if r.CacheMetadata != nil && !r.CacheMetadata.CachedAt.IsZero() {
		return fmt.Sprintf("Result retrieved from cache (%s)!", CacheAge(r.CacheMetadata.CachedAt, now))
	}
	model := r.AIModel
	if model == "" {
		model = "AI"
	}
	return fmt.Sprintf("Analyzed using %s!", model)
}

// Candidates returns the ranked list to display. Responses without one are
// ranked from the primary answer alone.
func (r *Result) Candidates() []ranking.RankedResult {
	if len(r.Ranked) > 0 {
		return r.Ranked
	}
	label := r.BandName
	if label == "" {
		label = "Unknown"
	}
	c := ranking.Candidate{Label: label, Confidence: r.Confidence}
	if r.Genre != "" {
		genre := r.Genre
		c.Genre = &genre
	}
	if r.AIModel != "" {
		model := r.AIModel
		c.Model = &model
	}
	cached := r.Cached
	c.Cached = &cached
	return ranking.Rank([]ranking.Candidate{c})
}
