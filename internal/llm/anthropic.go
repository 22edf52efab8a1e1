package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultAnthropicBaseURL is the Anthropic API root.
const DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"

const anthropicVersion = "2023-06-01"

// AnthropicConfig configures an Anthropic client.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

// AnthropicClient implements VisionClient for Anthropic Claude
type AnthropicClient struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &AnthropicClient{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(orDefault(cfg.BaseURL, DefaultAnthropicBaseURL), "/"),
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		httpClient:  httpClient,
	}
}

// Anthropic API request/response types
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []anthropicBlock
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Content []anthropicContent `json:"content"`
	Model   string             `json:"model"`
	Usage   anthropicUsage     `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Recognize sends the logo as a base64 image block.
func (c *AnthropicClient) Recognize(ctx context.Context, img Image) (*Response, error) {
	temperature := c.temperature
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicBlock{
				{Type: "text", Text: RecognitionPrompt},
				{Type: "image", Source: &anthropicSource{
					Type:      "base64",
					MediaType: orDefault(img.MIMEType, "image/jpeg"),
					Data:      base64.StdEncoding.EncodeToString(img.Data),
				}},
			},
		}},
		Temperature: &temperature,
	}

	resp, err := c.complete(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	// Extract text content
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	return &Response{
		Recognition:  ParseAnswer(content.String()),
		Raw:          content.String(),
		Provider:     ProviderAnthropic,
		Model:        orDefault(resp.Model, c.model),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// Ping sends a one-token message.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	_, err := c.complete(ctx, anthropicRequest{
		Model:     c.model,
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: "user", Content: "test"}},
	})
	return err
}

func (c *AnthropicClient) complete(ctx context.Context, reqBody anthropicRequest) (*anthropicResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrNotConfigured)
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/messages", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var anthropicResp anthropicResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &anthropicResp, nil
}

// Provider returns the provider name
func (c *AnthropicClient) Provider() Provider {
	return ProviderAnthropic
}

// Model returns the model name
func (c *AnthropicClient) Model() string {
	return c.model
}
