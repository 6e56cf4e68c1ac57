package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/session"
)

type fakeAI struct {
	reply string
	err   error
}

func (f *fakeAI) GetChatResponse(_ context.Context, _ []ai.Message) (string, error) {
	return f.reply, f.err
}

type fakeStreamer struct {
	fakeAI
	deltas []string
}

func (f *fakeStreamer) StreamChatResponse(_ context.Context, _ []ai.Message, onDelta func(string)) (string, error) {
	var b strings.Builder
	for _, d := range f.deltas {
		onDelta(d)
		b.WriteString(d)
	}
	return b.String(), f.err
}

func newTestModel(t *testing.T, client ai.AIClient) Model {
	t.Helper()
	store, err := session.NewStore("file", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewChatModel(client, store, nil, "openai", "gpt-4o", "You are terse.", false, nil)
}

func enterKey() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEnter}
}

func asModel(t *testing.T, m tea.Model) Model {
	t.Helper()
	chat, ok := m.(Model)
	require.True(t, ok)
	return chat
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		input string
		cmd   string
		args  string
		ok    bool
	}{
		{"exit", "exit", "", true},
		{"/reset", "/reset", "", true},
		{"/save notes.txt", "/save", "notes.txt", true},
		{"/img a red fox", "/img", "a red fox", true},
		{"hello there", "", "", false},
		{"what is /proc?", "", "", false},
	}
	for _, tc := range cases {
		cmd, args, ok := parseCommand(tc.input)
		assert.Equal(t, tc.ok, ok, tc.input)
		assert.Equal(t, tc.cmd, cmd, tc.input)
		assert.Equal(t, tc.args, args, tc.input)
	}
}

func TestSessionName(t *testing.T) {
	now := time.Date(2025, 3, 9, 14, 5, 6, 0, time.UTC)
	assert.Equal(t, "chat-20250309-140506", sessionName(now))
}

func TestSubmitPersistsAndFinishesTurn(t *testing.T) {
	m := newTestModel(t, &fakeAI{reply: "Hi!"})

	m.textarea.SetValue("hello")
	next, _ := m.Update(enterKey())
	m = asModel(t, next)

	require.Equal(t, stateThinking, m.state)
	require.Len(t, m.messages, 2)
	assert.Equal(t, ai.RoleUser, m.messages[1].Role)
	require.NotNil(t, m.sess)
	assert.True(t, strings.HasPrefix(m.sess.Name, "chat-"))

	sessions, err := m.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Len(t, sessions[0].Messages, 2)

	msg := sendCmd(m.aiClient, m.messages)()
	reply, ok := msg.(replyMsg)
	require.True(t, ok)
	require.NoError(t, reply.err)

	next, _ = m.Update(reply)
	m = asModel(t, next)

	assert.Equal(t, stateComposing, m.state)
	require.Len(t, m.messages, 3)
	assert.Equal(t, ai.RoleAssistant, m.messages[2].Role)
	assert.Equal(t, "Hi!", m.messages[2].Content)

	stored, err := m.store.Load(context.Background(), m.sess.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 3)
}

func TestStreamingDeliversDeltas(t *testing.T) {
	client := &fakeStreamer{deltas: []string{"Hel", "lo"}}
	m := newTestModel(t, client)

	m.textarea.SetValue("hi")
	next, _ := m.Update(enterKey())
	m = asModel(t, next)

	msg := sendCmd(m.aiClient, m.messages)()
	started, ok := msg.(streamStartedMsg)
	require.True(t, ok)

	var got []string
	for d := range started.deltaCh {
		got = append(got, d)
	}
	require.NoError(t, <-started.doneCh)
	assert.Equal(t, []string{"Hel", "lo"}, got)

	next, _ = m.Update(streamStartedMsg{deltaCh: started.deltaCh, doneCh: started.doneCh})
	m = asModel(t, next)
	next, _ = m.Update(streamDeltaMsg{delta: "Hel"})
	m = asModel(t, next)
	next, _ = m.Update(streamDeltaMsg{delta: "lo"})
	m = asModel(t, next)
	assert.Equal(t, "Hello", m.pending)

	next, _ = m.Update(streamDoneMsg{})
	m = asModel(t, next)
	assert.Equal(t, stateComposing, m.state)
	require.Len(t, m.messages, 3)
	assert.Equal(t, "Hello", m.messages[2].Content)
}

func TestStreamErrorKeepsComposing(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{fakeAI: fakeAI{err: errors.New("boom")}})
	m.state = stateThinking

	next, _ := m.Update(streamDoneMsg{err: errors.New("boom")})
	m = asModel(t, next)

	assert.Equal(t, stateComposing, m.state)
	assert.Contains(t, m.errText, "boom")
	assert.Len(t, m.messages, 1)
}

func TestResetDetachesSession(t *testing.T) {
	m := newTestModel(t, &fakeAI{reply: "ok"})
	m.messages = append(m.messages,
		ai.Message{Role: ai.RoleUser, Content: "hi"},
		ai.Message{Role: ai.RoleAssistant, Content: "ok"},
	)
	m.sess = &session.Session{ID: 7, Name: "chat-old"}

	m.textarea.SetValue("/reset")
	next, _ := m.Update(enterKey())
	m = asModel(t, next)

	assert.Nil(t, m.sess)
	require.Len(t, m.messages, 1)
	assert.Equal(t, ai.RoleSystem, m.messages[0].Role)
	assert.Equal(t, "Conversation reset.", m.notice)
}

func TestSaveWritesTranscript(t *testing.T) {
	m := newTestModel(t, &fakeAI{})
	m.messages = append(m.messages,
		ai.Message{Role: ai.RoleUser, Content: "hi"},
		ai.Message{Role: ai.RoleAssistant, Content: "hello"},
	)

	path := filepath.Join(t.TempDir(), "transcript.txt")
	m.textarea.SetValue("/save " + path)
	next, _ := m.Update(enterKey())
	m = asModel(t, next)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "user: hi")
	assert.Contains(t, string(data), "assistant: hello")
	assert.Contains(t, m.notice, "successfully saved")
}

func TestSaveWithoutPathErrors(t *testing.T) {
	m := newTestModel(t, &fakeAI{})
	m.textarea.SetValue("/save")
	next, _ := m.Update(enterKey())
	m = asModel(t, next)

	assert.Contains(t, m.errText, "usage: /save")
}

func TestUnknownCommand(t *testing.T) {
	m := newTestModel(t, &fakeAI{})
	m.textarea.SetValue("/frobnicate")
	next, _ := m.Update(enterKey())
	m = asModel(t, next)

	assert.Contains(t, m.errText, "unknown command /frobnicate")
}

func TestEmptySubmit(t *testing.T) {
	m := newTestModel(t, &fakeAI{})
	next, _ := m.Update(enterKey())
	m = asModel(t, next)

	assert.Equal(t, "Empty message received. :(", m.notice)
	assert.Len(t, m.messages, 1)
}

func TestImageCommandsNeedClient(t *testing.T) {
	m := newTestModel(t, &fakeAI{})
	m.images = nil
	m.textarea.SetValue("/img a fox")
	next, _ := m.Update(enterKey())
	m = asModel(t, next)

	assert.Contains(t, m.errText, "API key")
}

func TestAdoptSessionRestoresSeed(t *testing.T) {
	m := newTestModel(t, &fakeAI{})
	stored := &session.Session{
		ID:   3,
		Name: "chat-earlier",
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: "You are terse."},
			{Role: ai.RoleUser, Content: "old question"},
			{Role: ai.RoleAssistant, Content: "old answer"},
		},
	}

	m.adoptSession(stored)
	assert.Len(t, m.messages, 3)
	assert.Len(t, m.seed, 3)

	m.messages = append(m.messages, ai.Message{Role: ai.RoleUser, Content: "new"})
	assert.Len(t, stored.Messages, 3)
}

func TestTranscriptSkipsSystemTurns(t *testing.T) {
	m := newTestModel(t, &fakeAI{})
	m.messages = append(m.messages,
		ai.Message{Role: ai.RoleUser, Content: "question"},
		ai.Message{Role: ai.RoleAssistant, Content: "answer"},
	)

	out := m.renderTranscript()
	assert.Contains(t, out, "question")
	assert.Contains(t, out, "answer")
	assert.NotContains(t, out, "You are terse.")

	history := m.historyView()
	assert.Contains(t, history, "[SYSTEM] You are terse.")
	assert.Contains(t, history, "[USER] question")
}
