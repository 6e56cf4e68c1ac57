package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/renatogalera/ai-chat/pkg/ai"
)

type GoogleClient struct {
	ai.BaseAIClient
	client *genai.Client
	model  string
}

func NewGoogleClient(ctx context.Context, provider, apiKey, model string) (*GoogleClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("google API key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("google model is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating google client: %w", err)
	}
	return &GoogleClient{
		BaseAIClient: ai.BaseAIClient{Provider: provider},
		client:       client,
		model:        model,
	}, nil
}

// buildContents maps the conversation onto the Gemini shape: system turns
// become the system instruction, the rest alternate as user and model
// contents.
func buildContents(messages []ai.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	var cfg *genai.GenerateContentConfig
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case ai.RoleSystem:
			if cfg == nil {
				cfg = &genai.GenerateContentConfig{}
			}
			cfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case ai.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, cfg
}

func (gc *GoogleClient) GetChatResponse(ctx context.Context, messages []ai.Message) (string, error) {
	contents, cfg := buildContents(messages)
	resp, err := gc.client.Models.GenerateContent(ctx, gc.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("no response from Google")
	}
	return text, nil
}

var _ ai.AIClient = (*GoogleClient)(nil)
