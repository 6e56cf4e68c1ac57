package openai

import (
	"errors"
	"strings"

	openaic "github.com/renatogalera/ai-chat/pkg/provider/openai_compat"
)

// NewOpenAIClient returns a client for the OpenAI API built on the shared
// OpenAI-compatible implementation.
func NewOpenAIClient(provider, apiKey, model, baseURL string) (*openaic.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai API key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai model is required")
	}
	return openaic.NewCompatClient(provider, apiKey, model, baseURL), nil
}
