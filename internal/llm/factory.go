package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates a scoring provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "http":
		return NewHTTPProvider(config)

	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - scoring disabled
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown scoring provider: %s (supported: http, openai, ollama)", config.Provider)
	}
}
