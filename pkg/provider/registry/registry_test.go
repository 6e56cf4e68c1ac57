package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/config"
)

type fakeClient struct{ ai.BaseAIClient }

func (f *fakeClient) GetChatResponse(ctx context.Context, messages []ai.Message) (string, error) {
	return "ok", nil
}

func TestRegistryLifecycle(t *testing.T) {
	Register("fake", func(ctx context.Context, name string, ps config.ProviderSettings) (ai.AIClient, error) {
		return &fakeClient{BaseAIClient: ai.BaseAIClient{Provider: name}}, nil
	})
	RegisterDefaults("fake", config.ProviderSettings{Model: "m1", BaseURL: "http://fake.local"})
	SetRequiresAPIKey("fake", true)

	assert.True(t, Has("fake"))
	assert.Contains(t, Names(), "fake")
	assert.True(t, RequiresAPIKey("fake"))
	assert.False(t, RequiresAPIKey("never-registered"))

	ps := MergeDefaults("fake", config.ProviderSettings{APIKey: "k"})
	assert.Equal(t, "m1", ps.Model)
	assert.Equal(t, "http://fake.local", ps.BaseURL)
	assert.Equal(t, "k", ps.APIKey)

	// Explicit settings win over defaults.
	ps = MergeDefaults("fake", config.ProviderSettings{Model: "m2"})
	assert.Equal(t, "m2", ps.Model)

	client, err := NewClient(context.Background(), "fake", ps)
	require.NoError(t, err)
	got, err := client.GetChatResponse(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	_, err = NewClient(context.Background(), "missing", config.ProviderSettings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "missing"`)
}
