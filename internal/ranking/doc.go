// Package ranking turns raw recognition candidates into a display-ready,
// ranked result list.
//
// Basic Usage:
//
//	candidates := []ranking.Candidate{
//		{Label: "Emperor", Confidence: 0.92},
//		{Label: "Mayhem", Confidence: 85},
//	}
//	for _, r := range ranking.Rank(candidates) {
//		fmt.Printf("%d. %s %.1f%%\n", r.Rank, r.Label, r.Confidence)
//	}
//
// Confidence Scale:
//
// Upstream providers report confidence either as a fraction in [0, 1] or as a
// percentage in [0, 100], and the payload does not say which. The scale is
// inferred per value: anything <= 1 is a fraction and is multiplied by 100,
// anything above 1 is taken as a percentage as-is. This means an input of
// exactly 1.0 always reads as 100%, never as 1%. Callers that know their scale
// should convert before ranking.
//
// Ordering:
//
// Results are ordered by descending normalized confidence. The sort is stable,
// so candidates with equal normalized confidence keep their input order.
package ranking
