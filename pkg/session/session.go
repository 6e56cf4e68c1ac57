package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/renatogalera/ai-chat/pkg/ai"
)

// ErrNotFound is returned when a session ID does not exist in the store.
var ErrNotFound = errors.New("session not found")

// Session is a stored conversation.
type Session struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Summary  string       `json:"summary,omitempty"`
	Messages []ai.Message `json:"messages"`

	// UpdatedAt is derived by the store (file mtime, table column) and is
	// not part of the serialized session.
	UpdatedAt time.Time `json:"-"`
}

// Store persists chat sessions. IDs are sequential and assigned by the
// store; names are made unique on creation.
type Store interface {
	List(ctx context.Context) ([]Session, error)
	Load(ctx context.Context, id int64) (*Session, error)
	Create(ctx context.Context, name string, messages []ai.Message) (*Session, error)
	Update(ctx context.Context, s *Session) error
	UpdateSummary(ctx context.Context, id int64, summary string) error
	Delete(ctx context.Context, id int64) error
	Close() error
}

// NewStore builds the configured store implementation rooted under the
// given directory.
func NewStore(kind, baseDir string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(filepath.Join(baseDir, "sessions"))
	case "sqlite":
		return NewSQLiteStore(filepath.Join(baseDir, "sessions.db"))
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}

const suffixCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomSuffix() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = suffixCharset[rand.IntN(len(suffixCharset))]
	}
	return string(b)
}

// uniqueName keeps the requested name unless it is taken, in which case a
// random six-character suffix is appended.
func uniqueName(name string, taken func(string) bool) string {
	candidate := name
	for taken(candidate) {
		candidate = name + "-" + randomSuffix()
	}
	return candidate
}

// Transcript renders the conversation as plain text, one turn per line.
// System turns are omitted.
func Transcript(messages []ai.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		if m.Role == ai.RoleSystem {
			continue
		}
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
