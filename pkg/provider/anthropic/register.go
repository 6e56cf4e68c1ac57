package anthropic

import (
	"context"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/config"
	"github.com/renatogalera/ai-chat/pkg/provider/registry"
)

const ProviderName = "anthropic"

func factory(ctx context.Context, name string, ps config.ProviderSettings) (ai.AIClient, error) {
	return NewAnthropicClient(name, ps.APIKey, ps.Model, ps.BaseURL)
}

func init() {
	registry.Register(ProviderName, factory)
	registry.RegisterDefaults(ProviderName, config.ProviderSettings{Model: "claude-sonnet-4-5", BaseURL: "https://api.anthropic.com"})
	registry.SetRequiresAPIKey(ProviderName, true)
}
