package generator

import (
	"fmt"
	"os"
)

// Options selects and configures a generator implementation.
type Options struct {
	Provider string // "", "mock", "anthropic", "openai", "ollama"
	APIKey   string
	Model    string
	BaseURL  string
}

// Build creates a generator from the options. An empty provider yields the
// canned mock. API keys fall back to the conventional environment variables.
func Build(opts Options) (Generator, error) {
	switch opts.Provider {
	case "", "mock":
		return NewCanned(), nil

	case "anthropic":
		apiKey := opts.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		model := opts.Model
		if model == "" {
			model = "claude-3-sonnet-20240229"
		}
		return NewAnthropic(apiKey, model)

	case "openai":
		apiKey := opts.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		model := opts.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAI(apiKey, model, opts.BaseURL)

	case "ollama":
		// Ollama local server (OpenAI-compatible)
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		model := opts.Model
		if model == "" {
			model = "llama3.1"
		}
		apiKey := opts.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		return NewOpenAI(apiKey, model, baseURL)

	default:
		return nil, fmt.Errorf("unknown generator provider: %s (supported: mock, anthropic, openai, ollama)", opts.Provider)
	}
}
