package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/rs/zerolog/log"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/prompt"
	"github.com/renatogalera/ai-chat/pkg/session"
)

// Summarize produces a one-line summary of a session's conversation.
// Sessions with no user content are skipped and yield an empty summary.
func Summarize(ctx context.Context, aiClient ai.AIClient, s *session.Session, promptTemplate string) (string, error) {
	if !hasUserContent(s.Messages) {
		return "", nil
	}
	transcript := session.Transcript(s.Messages)
	summaryPrompt := prompt.BuildSummaryPrompt(transcript, promptTemplate)
	summary, err := aiClient.GetChatResponse(ctx, ai.Conversation("", summaryPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to summarize session: %w", err)
	}
	return firstLine(ai.SanitizeResponse(summary)), nil
}

func hasUserContent(messages []ai.Message) bool {
	for _, m := range messages {
		if m.Role != ai.RoleSystem && strings.TrimSpace(m.Content) != "" {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// Backfill fills missing summaries for the given sessions, persisting each
// one to the store. Failures are logged and skipped so the picker still
// works without summaries.
func Backfill(ctx context.Context, aiClient ai.AIClient, store session.Store, sessions []session.Session, promptTemplate string) {
	for i := range sessions {
		s := &sessions[i]
		if strings.TrimSpace(s.Summary) != "" || !hasUserContent(s.Messages) {
			continue
		}
		summary, err := Summarize(ctx, aiClient, s, promptTemplate)
		if err != nil {
			log.Debug().Err(err).Int64("session", s.ID).Msg("skipping summary backfill")
			continue
		}
		if summary == "" {
			continue
		}
		if err := store.UpdateSummary(ctx, s.ID, summary); err != nil {
			log.Debug().Err(err).Int64("session", s.ID).Msg("failed to persist summary")
			continue
		}
		s.Summary = summary
	}
}

// PickSession lets the user choose a stored session with a fuzzy finder.
// Missing summaries are backfilled first when an AI client is available.
func PickSession(ctx context.Context, aiClient ai.AIClient, store session.Store, promptTemplate string) (*session.Session, error) {
	sessions, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("no saved sessions")
	}
	if aiClient != nil {
		Backfill(ctx, aiClient, store, sessions, promptTemplate)
	}

	idx, err := fuzzyfinder.Find(
		sessions,
		func(i int) string {
			s := sessions[i]
			label := s.Summary
			if strings.TrimSpace(label) == "" {
				label = s.Name
			}
			return fmt.Sprintf("%d | %s | %s", s.ID, label, humanize.Time(s.UpdatedAt))
		},
		fuzzyfinder.WithPromptString("Select a session> "),
	)
	if err != nil {
		return nil, fmt.Errorf("fuzzyfinder error: %w", err)
	}
	return &sessions[idx], nil
}
