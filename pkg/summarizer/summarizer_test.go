package summarizer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/session"
)

type fakeAI struct {
	reply  string
	err    error
	called int
}

func (f *fakeAI) GetChatResponse(ctx context.Context, messages []ai.Message) (string, error) {
	f.called++
	return f.reply, f.err
}

func TestSummarizeTakesFirstLine(t *testing.T) {
	client := &fakeAI{reply: "  Debugging a flaky test\nwith extra detail\n"}
	s := &session.Session{Messages: []ai.Message{
		{Role: ai.RoleUser, Content: "why is this test flaky?"},
	}}

	got, err := Summarize(context.Background(), client, s, "")
	require.NoError(t, err)
	assert.Equal(t, "Debugging a flaky test", got)
	assert.Equal(t, 1, client.called)
}

func TestSummarizeSkipsSystemOnlySessions(t *testing.T) {
	client := &fakeAI{reply: "should not be used"}
	s := &session.Session{Messages: []ai.Message{
		{Role: ai.RoleSystem, Content: "be brief"},
	}}

	got, err := Summarize(context.Background(), client, s, "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, client.called)
}

func TestBackfillPersistsMissingSummaries(t *testing.T) {
	store, err := session.NewFileStore(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	ctx := context.Background()

	withContent, err := store.Create(ctx, "real", []ai.Message{{Role: ai.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	empty, err := store.Create(ctx, "empty", nil)
	require.NoError(t, err)
	summarized, err := store.Create(ctx, "done", []ai.Message{{Role: ai.RoleUser, Content: "x"}})
	require.NoError(t, err)
	require.NoError(t, store.UpdateSummary(ctx, summarized.ID, "already here"))

	sessions, err := store.List(ctx)
	require.NoError(t, err)

	client := &fakeAI{reply: "fresh summary"}
	Backfill(ctx, client, store, sessions, "")
	assert.Equal(t, 1, client.called)

	got, err := store.Load(ctx, withContent.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh summary", got.Summary)

	got, err = store.Load(ctx, empty.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Summary)

	got, err = store.Load(ctx, summarized.ID)
	require.NoError(t, err)
	assert.Equal(t, "already here", got.Summary)
}

func TestBackfillToleratesAIFailure(t *testing.T) {
	store, err := session.NewFileStore(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	ctx := context.Background()

	created, err := store.Create(ctx, "s", []ai.Message{{Role: ai.RoleUser, Content: "hi"}})
	require.NoError(t, err)

	sessions, err := store.List(ctx)
	require.NoError(t, err)

	Backfill(ctx, &fakeAI{err: errors.New("down")}, store, sessions, "")

	got, err := store.Load(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Summary)
}
