package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeResponse(t *testing.T) {
	t.Run("trims surrounding whitespace", func(t *testing.T) {
		assert.Equal(t, "hello", SanitizeResponse("  hello \n"))
	})

	t.Run("unwraps fence with language tag", func(t *testing.T) {
		got := SanitizeResponse("```go\nfunc main() {}\n```")
		assert.Equal(t, "func main() {}", got)
	})

	t.Run("unwraps bare fence", func(t *testing.T) {
		assert.Equal(t, "hola", SanitizeResponse("```\nhola\n```"))
	})

	t.Run("single line fence keeps content", func(t *testing.T) {
		assert.Equal(t, "hola", SanitizeResponse("```hola```"))
	})

	t.Run("unterminated fence left alone", func(t *testing.T) {
		assert.Equal(t, "```go\ncode", SanitizeResponse("```go\ncode"))
	})
}

func TestConversation(t *testing.T) {
	msgs := Conversation("be brief", "what is Go?")
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "what is Go?"},
	}, msgs)

	msgs = Conversation("   ", "hi")
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}}, msgs)
}
