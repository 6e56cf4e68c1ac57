package ai

import (
	"context"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AIClient produces one assistant reply for a conversation.
type AIClient interface {
	GetChatResponse(ctx context.Context, messages []Message) (string, error)
}

// StreamingAIClient is implemented by providers that can deliver the reply
// incrementally. onDelta receives each text fragment in order; the returned
// string is the complete reply.
type StreamingAIClient interface {
	AIClient
	StreamChatResponse(ctx context.Context, messages []Message, onDelta func(string)) (string, error)
}

// BaseAIClient carries the provider name and shared response cleanup for
// provider implementations to embed.
type BaseAIClient struct {
	Provider string
}

func (b BaseAIClient) SanitizeResponse(message string) string {
	return SanitizeResponse(message)
}

// SanitizeResponse trims whitespace and unwraps a reply that arrives fenced
// in a markdown code block.
func SanitizeResponse(message string) string {
	msg := strings.TrimSpace(message)
	if strings.HasPrefix(msg, "```") && strings.HasSuffix(msg, "```") && len(msg) >= 6 {
		inner := strings.TrimSuffix(strings.TrimPrefix(msg, "```"), "```")
		// The first line of a fence is the language tag.
		if idx := strings.IndexByte(inner, '\n'); idx >= 0 {
			inner = inner[idx+1:]
		}
		msg = strings.TrimSpace(inner)
	}
	return msg
}

// Conversation builds the message list for a one-shot exchange. The system
// prompt is omitted when empty.
func Conversation(systemPrompt, userPrompt string) []Message {
	msgs := make([]Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: userPrompt})
	return msgs
}
