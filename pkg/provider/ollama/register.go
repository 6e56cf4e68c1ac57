package ollama

import (
	"context"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/config"
	"github.com/renatogalera/ai-chat/pkg/provider/registry"
)

const ProviderName = "ollama"

func factory(ctx context.Context, name string, ps config.ProviderSettings) (ai.AIClient, error) {
	return NewOllamaClient(name, ps.BaseURL, ps.Model)
}

func init() {
	registry.Register(ProviderName, factory)
	registry.RegisterDefaults(ProviderName, config.ProviderSettings{Model: "llama3.3", BaseURL: "http://localhost:11434"})
	registry.SetRequiresAPIKey(ProviderName, false)
}
