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

// Base URLs for OpenAI-compatible endpoints.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	OpenRouterBaseURL    = "https://openrouter.ai/api/v1"
	defaultSiteURL       = "https://github.com/4ier/LOGODETH"
	defaultAppName       = "LOGODETH"
)

// openRouterModels maps bare model names to OpenRouter's vendor-prefixed ids.
var openRouterModels = map[string]string{
	"gpt-4o":               "openai/gpt-4o",
	"gpt-4-vision-preview": "openai/gpt-4-vision-preview",
	"gpt-4-turbo":          "openai/gpt-4-turbo",
	"gpt-4":                "openai/gpt-4",
	"claude-3-opus":        "anthropic/claude-3-opus",
	"claude-3-sonnet":      "anthropic/claude-3-sonnet",
	"claude-3-haiku":       "anthropic/claude-3-haiku",
}

// OpenAIConfig configures an OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string // empty means OpenAI, or OpenRouter when UseOpenRouter is set
	Model         string
	UseOpenRouter bool
	SiteURL       string // OpenRouter HTTP-Referer
	AppName       string // OpenRouter X-Title
	MaxTokens     int
	Temperature   float64
	HTTPClient    *http.Client
}

// IsOpenRouter reports whether requests go to OpenRouter.
func (c OpenAIConfig) IsOpenRouter() bool {
	return c.UseOpenRouter || strings.Contains(strings.ToLower(c.BaseURL), "openrouter")
}

// OpenAIClient implements VisionClient for OpenAI and compatible APIs.
type OpenAIClient struct {
	apiKey      string
	model       string
	baseURL     string
	headers     map[string]string
	maxTokens   int
	temperature float64
	openRouter  bool
	httpClient  *http.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
		if cfg.UseOpenRouter {
			baseURL = OpenRouterBaseURL
		}
	}

	headers := map[string]string{}
	if cfg.IsOpenRouter() {
		headers["HTTP-Referer"] = orDefault(cfg.SiteURL, defaultSiteURL)
		headers["X-Title"] = orDefault(cfg.AppName, defaultAppName)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &OpenAIClient{
		apiKey:      cfg.APIKey,
		model:       ResolveModel(cfg.Model, cfg.UseOpenRouter),
		baseURL:     strings.TrimRight(baseURL, "/"),
		headers:     headers,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		openRouter:  cfg.IsOpenRouter(),
		httpClient:  httpClient,
	}
}

// ResolveModel returns the model id to send. OpenRouter needs vendor-prefixed
// ids, so bare names are mapped; unknown bare names are assumed to be OpenAI's.
func ResolveModel(model string, openRouter bool) string {
	if !openRouter || strings.Contains(model, "/") {
		return model
	}
	if mapped, ok := openRouterModels[model]; ok {
		return mapped
	}
	return "openai/" + model
}

// OpenAI API request/response types
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []openAIPart
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Model   string         `json:"model"`
}

type openAIChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Recognize sends the logo to the chat completions endpoint.
func (c *OpenAIClient) Recognize(ctx context.Context, img Image) (*Response, error) {
	mimeType := orDefault(img.MIMEType, "image/jpeg")
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []openAIPart{
				{Type: "text", Text: RecognitionPrompt},
				{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL, Detail: "high"}},
			},
		}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	resp, err := c.complete(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	content := resp.Choices[0].Message.Content
	return &Response{
		Recognition:  ParseAnswer(content),
		Raw:          content,
		Provider:     ProviderOpenAI,
		Model:        orDefault(resp.Model, c.model),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Ping sends a one-token completion. On OpenRouter a cheap GPT model stands in
// for GPT-family vision models.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	model := c.model
	if c.openRouter && strings.Contains(strings.ToLower(model), "gpt") {
		model = "openai/gpt-3.5-turbo"
	}
	_, err := c.complete(ctx, openAIRequest{
		Model:     model,
		Messages:  []openAIMessage{{Role: "user", Content: "test"}},
		MaxTokens: 1,
	})
	return err
}

func (c *OpenAIClient) complete(ctx context.Context, reqBody openAIRequest) (*openAIResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrNotConfigured)
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

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
		return nil, &APIError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return &openAIResp, nil
}

// Provider returns the provider name
func (c *OpenAIClient) Provider() Provider {
	return ProviderOpenAI
}

// Model returns the model name
func (c *OpenAIClient) Model() string {
	return c.model
}

// BaseURL returns the API base URL in use.
func (c *OpenAIClient) BaseURL() string {
	return c.baseURL
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
