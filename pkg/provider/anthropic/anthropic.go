package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicSDK "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/renatogalera/ai-chat/pkg/ai"
)

const defaultMaxTokens = 4096

type AnthropicClient struct {
	ai.BaseAIClient
	client anthropicSDK.Client
	model  string
}

func NewAnthropicClient(provider, apiKey, model, baseURL string) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("anthropic model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &AnthropicClient{
		BaseAIClient: ai.BaseAIClient{Provider: provider},
		client:       anthropicSDK.NewClient(opts...),
		model:        model,
	}, nil
}

// buildParams maps the conversation onto the Messages API shape: system
// turns go into the dedicated System field, the rest alternate as user and
// assistant messages.
func (ac *AnthropicClient) buildParams(messages []ai.Message) anthropicSDK.MessageNewParams {
	params := anthropicSDK.MessageNewParams{
		Model:     anthropicSDK.Model(ac.model),
		MaxTokens: defaultMaxTokens,
	}
	for _, m := range messages {
		switch m.Role {
		case ai.RoleSystem:
			params.System = append(params.System, anthropicSDK.TextBlockParam{Text: m.Content})
		case ai.RoleAssistant:
			params.Messages = append(params.Messages, anthropicSDK.NewAssistantMessage(anthropicSDK.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropicSDK.NewUserMessage(anthropicSDK.NewTextBlock(m.Content)))
		}
	}
	return params
}

func messageText(content []anthropicSDK.ContentBlockUnion) string {
	var sb strings.Builder
	for _, block := range content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func (ac *AnthropicClient) GetChatResponse(ctx context.Context, messages []ai.Message) (string, error) {
	resp, err := ac.client.Messages.New(ctx, ac.buildParams(messages))
	if err != nil {
		return "", fmt.Errorf("failed to get message from Anthropic: %w", err)
	}
	msg := messageText(resp.Content)
	if msg == "" {
		return "", errors.New("empty response from Anthropic")
	}
	return msg, nil
}

func (ac *AnthropicClient) StreamChatResponse(ctx context.Context, messages []ai.Message, onDelta func(string)) (string, error) {
	stream := ac.client.Messages.NewStreaming(ctx, ac.buildParams(messages))
	message := anthropicSDK.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", fmt.Errorf("failed to accumulate stream event: %w", err)
		}
		switch eventVariant := event.AsAny().(type) {
		case anthropicSDK.ContentBlockDeltaEvent:
			switch delta := eventVariant.Delta.AsAny().(type) {
			case anthropicSDK.TextDelta:
				if delta.Text != "" {
					onDelta(delta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("anthropic stream failed: %w", err)
	}
	return messageText(message.Content), nil
}

var _ ai.AIClient = (*AnthropicClient)(nil)
var _ ai.StreamingAIClient = (*AnthropicClient)(nil)
