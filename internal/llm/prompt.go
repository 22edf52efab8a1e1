package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RecognitionPrompt is sent alongside every logo image.
const RecognitionPrompt = `You are an expert in metal music and band logos. Analyze this metal band logo and provide:

1. The band name (be as accurate as possible)
2. The music genre/subgenre (e.g., Black Metal, Death Metal, Doom Metal, etc.)
3. Your confidence level (0-100)
4. A brief description of the logo style

Respond in JSON format:
{
    "band_name": "Band Name",
    "genre": "Genre",
    "confidence": 85,
    "description": "Brief description of the logo"
}

If you cannot identify the band, still provide your best guess with low confidence.`

// Defaults used when an answer cannot be parsed.
const (
	unknownBand        = "Unknown"
	fallbackGenre      = "Metal"
	fallbackConfidence = 50
	fallbackDesc       = "Could not parse response properly"
)

// flexNumber accepts a JSON number or a numeric string.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = flexNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return err
	}
	*n = flexNumber(f)
	return nil
}

type answer struct {
	BandName    *string    `json:"band_name"`
	Genre       string     `json:"genre"`
	Confidence  flexNumber `json:"confidence"`
	Description string     `json:"description"`
}

// ParseAnswer extracts a Recognition from model output. The text between the
// first '{' and the last '}' is decoded as JSON; anything else goes through
// the line-oriented fallback parser.
func ParseAnswer(text string) Recognition {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return parseText(text)
	}

	var a answer
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return parseText(text)
	}

	rec := Recognition{
		BandName:    unknownBand,
		Genre:       a.Genre,
		Confidence:  float64(a.Confidence),
		Description: a.Description,
	}
	if a.BandName != nil {
		rec.BandName = *a.BandName
	}
	return rec
}

// parseText scans "band: X", "genre: Y", "confidence: 80%" style lines.
// The last matching line for each field wins.
func parseText(text string) Recognition {
	rec := Recognition{
		BandName:    unknownBand,
		Genre:       fallbackGenre,
		Confidence:  fallbackConfidence,
		Description: fallbackDesc,
	}

	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, ":") {
			continue
		}
		lower := strings.ToLower(line)
		value := strings.TrimSpace(line[strings.LastIndex(line, ":")+1:])

		switch {
		case strings.Contains(lower, "band"):
			rec.BandName = value
		case strings.Contains(lower, "genre"):
			rec.Genre = value
		case strings.Contains(lower, "confidence"):
			if c, ok := digitsOf(value); ok {
				rec.Confidence = float64(min(100, max(0, c)))
			}
		}
	}
	return rec
}

// digitsOf concatenates every digit in s, so "about 8.5/10" reads as 8510
// before clamping.
func digitsOf(s string) (int, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		// Too many digits for an int: clamp as a large value.
		return 100, true
	}
	return n, true
}
