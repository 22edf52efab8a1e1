package recognition

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/4ier/logodeth/internal/llm"
	"github.com/4ier/logodeth/internal/ranking"
)

//go:embed mock_candidates.yaml
var defaultMockCandidates []byte

// MockModel is reported as the model of every mock answer.
const MockModel = "mock"

type mockFile struct {
	Candidates []mockCandidate `yaml:"candidates"`
}

type mockCandidate struct {
	Label      string  `yaml:"label"`
	Confidence float64 `yaml:"confidence"`
	Genre      string  `yaml:"genre"`
}

// ParseMockCandidates decodes a YAML candidate list.
func ParseMockCandidates(data []byte) ([]ranking.Candidate, error) {
	var f mockFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse mock candidates: %w", err)
	}
	if len(f.Candidates) == 0 {
		return nil, fmt.Errorf("mock candidates: list is empty")
	}

	model := MockModel
	out := make([]ranking.Candidate, len(f.Candidates))
	for i, c := range f.Candidates {
		if c.Label == "" {
			return nil, fmt.Errorf("mock candidates: entry %d has no label", i)
		}
		out[i] = ranking.Candidate{Label: c.Label, Confidence: c.Confidence, Model: &model}
		if c.Genre != "" {
			genre := c.Genre
			out[i].Genre = &genre
		}
	}
	return out, nil
}

// LoadMockCandidates reads candidates from path, or the built-in list when
// path is empty.
func LoadMockCandidates(path string) ([]ranking.Candidate, error) {
	if path == "" {
		return ParseMockCandidates(defaultMockCandidates)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mock candidates: %w", err)
	}
	return ParseMockCandidates(data)
}

// MockRecognizer answers from a fixed candidate list without calling any
// model. It stands in for the fallback chain in mock mode.
type MockRecognizer struct {
	candidates []ranking.Candidate
	delay      time.Duration
}

// NewMockRecognizer creates a recognizer over candidates. delay simulates
// model latency and may be zero.
func NewMockRecognizer(candidates []ranking.Candidate, delay time.Duration) *MockRecognizer {
	return &MockRecognizer{candidates: candidates, delay: delay}
}

// Ranked returns every candidate ranked by normalized confidence.
func (m *MockRecognizer) Ranked() []ranking.RankedResult {
	return ranking.Rank(m.candidates)
}

// Alternates returns every candidate except those labelled label, for
// ranking next to a result that already carries label.
func (m *MockRecognizer) Alternates(label string) []ranking.Candidate {
	out := make([]ranking.Candidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		if c.Label != label {
			out = append(out, c)
		}
	}
	return out
}

// Recognize returns the top-ranked candidate.
func (m *MockRecognizer) Recognize(ctx context.Context, _ llm.Image, _ []llm.Provider) (*llm.Response, error) {
	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	ranked := m.Ranked()
	if len(ranked) == 0 {
		return nil, llm.ErrNoProviders
	}
	top := ranked[0]
	resp := &llm.Response{
		Recognition: llm.Recognition{
			BandName:    top.Label,
			Confidence:  top.Confidence,
			Description: fmt.Sprintf("Mock answer, best of %d candidates", len(ranked)),
		},
		Provider: "mock",
		Model:    MockModel,
	}
	if top.Genre != nil {
		resp.Genre = *top.Genre
	}
	return resp, nil
}
