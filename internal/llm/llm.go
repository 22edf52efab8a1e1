// Package llm talks to multimodal chat models and turns their answers about a
// band logo into a structured Recognition.
package llm

import (
	"context"
	"errors"
)

// Provider identifies a model vendor.
type Provider string

// Supported providers
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Sentinel errors returned by clients and the fallback chain.
var (
	ErrNoProviders     = errors.New("no available providers configured")
	ErrNotConfigured   = errors.New("provider not configured")
	ErrEmptyResponse   = errors.New("empty response from model")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Image is an encoded image sent to a model.
type Image struct {
	Data     []byte
	MIMEType string
}

// Recognition is the model's structured answer about a logo.
type Recognition struct {
	BandName    string  `json:"band_name"`
	Genre       string  `json:"genre,omitempty"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
}

// Response is a parsed model answer with call metadata.
type Response struct {
	Recognition
	Raw          string
	Provider     Provider
	Model        string
	InputTokens  int
	OutputTokens int
}

// VisionClient is a model that can look at a logo.
type VisionClient interface {
	Recognize(ctx context.Context, img Image) (*Response, error)
	// Ping issues the cheapest possible call to check credentials and reachability.
	Ping(ctx context.Context) error
	Provider() Provider
	Model() string
}

// ParseProvider maps a user-supplied provider name to a Provider.
func ParseProvider(name string) (Provider, error) {
	switch Provider(name) {
	case ProviderOpenAI, ProviderAnthropic:
		return Provider(name), nil
	}
	return "", ErrUnknownProvider
}
