package openai_compat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/renatogalera/ai-chat/pkg/ai"
)

// Client is a reusable OpenAI-compatible chat client (OpenAI, DeepSeek,
// OpenRouter, ...). It uses the official openai-go SDK and accepts a custom
// baseURL.
type Client struct {
	ai.BaseAIClient
	client openai.Client
	model  string
}

func NewCompatClient(provider, apiKey, model, baseURL string) *Client {
	switch {
	case strings.TrimSpace(apiKey) != "" && strings.TrimSpace(baseURL) != "":
		c := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(strings.TrimRight(baseURL, "/")))
		return &Client{BaseAIClient: ai.BaseAIClient{Provider: provider}, client: c, model: model}
	case strings.TrimSpace(apiKey) != "":
		c := openai.NewClient(option.WithAPIKey(apiKey))
		return &Client{BaseAIClient: ai.BaseAIClient{Provider: provider}, client: c, model: model}
	case strings.TrimSpace(baseURL) != "":
		c := openai.NewClient(option.WithBaseURL(strings.TrimRight(baseURL, "/")))
		return &Client{BaseAIClient: ai.BaseAIClient{Provider: provider}, client: c, model: model}
	default:
		c := openai.NewClient()
		return &Client{BaseAIClient: ai.BaseAIClient{Provider: provider}, client: c, model: model}
	}
}

func toParams(messages []ai.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case ai.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case ai.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (c *Client) GetChatResponse(ctx context.Context, messages []ai.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: toParams(messages),
		Model:    openai.ChatModel(c.model),
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to get chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI-compatible provider")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// StreamChatResponse streams text deltas via onDelta and returns the final text.
func (c *Client) StreamChatResponse(ctx context.Context, messages []ai.Message, onDelta func(string)) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: toParams(messages),
		Model:    openai.ChatModel(c.model),
	}
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 {
			if d := chunk.Choices[0].Delta.Content; d != "" {
				onDelta(d)
			}
		}
	}
	if err := stream.Err(); err != nil {
		// Return whatever was accumulated with the error.
		if len(acc.Choices) > 0 {
			return acc.Choices[0].Message.Content, err
		}
		return "", err
	}
	if len(acc.Choices) == 0 {
		return "", errors.New("no response from OpenAI-compatible provider")
	}
	return acc.Choices[0].Message.Content, nil
}

var _ ai.AIClient = (*Client)(nil)
var _ ai.StreamingAIClient = (*Client)(nil)
