package llm

// ProviderInfo describes one provider's configuration for display.
type ProviderInfo struct {
	Configured   bool   `json:"configured"`
	Model        string `json:"model"`
	BaseURL      string `json:"base_url,omitempty"`
	IsOpenRouter bool   `json:"is_openrouter,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// ProvidersInfo is the configuration summary served by the providers endpoint.
type ProvidersInfo struct {
	OpenAI    ProviderInfo `json:"openai"`
	Anthropic ProviderInfo `json:"anthropic"`
}

// DescribeProviders summarises provider configuration without exposing keys.
func DescribeProviders(openai OpenAIConfig, anthropic AnthropicConfig) ProvidersInfo {
	info := ProvidersInfo{
		OpenAI: ProviderInfo{
			Configured:   openai.APIKey != "",
			Model:        openai.Model,
			BaseURL:      openai.BaseURL,
			IsOpenRouter: openai.IsOpenRouter(),
		},
		Anthropic: ProviderInfo{
			Configured: anthropic.APIKey != "",
			Model:      anthropic.Model,
			BaseURL:    anthropic.BaseURL,
		},
	}

	switch {
	case info.OpenAI.IsOpenRouter:
		info.OpenAI.ProviderName = "OpenRouter"
	case info.OpenAI.BaseURL != "":
		info.OpenAI.ProviderName = "Custom OpenAI-compatible"
	default:
		info.OpenAI.ProviderName = "OpenAI"
	}
	return info
}
