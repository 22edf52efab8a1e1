package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/4ier/logodeth/internal/client"
)

const barWidth = 24

func printResult(w io.Writer, r *client.Result, now time.Time) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	for _, c := range r.Candidates() {
		primary := c.Label == r.BandName

		_, _ = bold.Fprintf(w, "%d. %s\n", c.Rank, c.Label)

		details := []string{"Confidence: " + client.Percent(c.Confidence)}
		if c.Genre != nil && *c.Genre != "" {
			details = append(details, *c.Genre)
		}
		if (c.Cached != nil && *c.Cached) || (primary && r.Cached) {
			marker := "Cached"
			if primary && r.CacheMetadata != nil {
				marker = fmt.Sprintf("Cached (%s)", client.CacheAge(r.CacheMetadata.CachedAt, now))
			}
			details = append(details, marker)
		}
		fmt.Fprintf(w, "   %s\n", strings.Join(details, " • "))

		if primary && r.Description != "" {
			_, _ = dim.Fprintf(w, "   %s\n", r.Description)
		}

		var meta []string
		model := r.AIModel
		if c.Model != nil {
			model = *c.Model
		}
		if model != "" && (primary || c.Model != nil) {
			meta = append(meta, "Model: "+model)
		}
		if primary && r.ProcessingTimeMS > 0 {
			meta = append(meta, fmt.Sprintf("%dms", r.ProcessingTimeMS))
		}
		if len(meta) > 0 {
			_, _ = dim.Fprintf(w, "   %s\n", strings.Join(meta, " • "))
		}

		printConfidenceBar(w, c.Confidence)
		fmt.Fprintln(w)
	}
}

// printConfidenceBar draws pct, a 0-100 ranked confidence.
func printConfidenceBar(w io.Writer, pct float64) {
	pct = max(0, min(pct, 100))
	filled := int(pct * barWidth / 100)
	filled = max(0, min(filled, barWidth))

	var barColor *color.Color
	switch {
	case pct >= 80:
		barColor = color.New(color.FgGreen)
	case pct >= 40:
		barColor = color.New(color.FgYellow)
	default:
		barColor = color.New(color.FgRed)
	}

	fmt.Fprint(w, "   ")
	_, _ = barColor.Fprint(w, strings.Repeat("█", filled)+strings.Repeat("░", barWidth-filled))
	fmt.Fprintln(w)
}

func printHealth(w io.Writer, h client.Health) {
	statusColor := color.New(color.FgGreen)
	if !h.Healthy() {
		statusColor = color.New(color.FgRed)
	}
	fmt.Fprint(w, "API status: ")
	_, _ = statusColor.Fprintln(w, h.Status)
	if h.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", h.Error)
	}

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name+":", h.Checks[name])
	}
}

func printStats(w io.Writer, s *client.Stats) {
	fmt.Fprintf(w, "Backend:  %s\n", s.Backend)
	fmt.Fprintf(w, "Keys:     %d\n", s.Keys)
	fmt.Fprintf(w, "Hits:     %d\n", s.Hits)
	fmt.Fprintf(w, "Misses:   %d\n", s.Misses)
	fmt.Fprintf(w, "Hit rate: %.1f%%\n", s.HitRate*100)
	fmt.Fprintf(w, "TTL:      %s\n", time.Duration(s.TTLSeconds)*time.Second)
}
