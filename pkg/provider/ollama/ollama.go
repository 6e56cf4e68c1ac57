package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/renatogalera/ai-chat/pkg/ai"
)

type OllamaClient struct {
	ai.BaseAIClient
	client *api.Client
	model  string
}

func NewOllamaClient(provider, baseURL, model string) (*OllamaClient, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid Ollama baseURL: %q", baseURL)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	client := api.NewClient(u, http.DefaultClient)
	return &OllamaClient{
		BaseAIClient: ai.BaseAIClient{Provider: provider},
		client:       client,
		model:        model,
	}, nil
}

func toOllamaMessages(messages []ai.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, api.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (oc *OllamaClient) GetChatResponse(ctx context.Context, messages []ai.Message) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    oc.model,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
	}
	var response string
	err := oc.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	if strings.TrimSpace(response) == "" {
		return "", errors.New("empty response from Ollama")
	}
	return strings.TrimSpace(response), nil
}

func (oc *OllamaClient) StreamChatResponse(ctx context.Context, messages []ai.Message, onDelta func(string)) (string, error) {
	stream := true
	req := &api.ChatRequest{
		Model:    oc.model,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
	}
	var sb strings.Builder
	err := oc.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			sb.WriteString(resp.Message.Content)
			onDelta(resp.Message.Content)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

var _ ai.AIClient = (*OllamaClient)(nil)
var _ ai.StreamingAIClient = (*OllamaClient)(nil)
