package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/renatogalera/ai-chat/pkg/ai"
)

// FileStore keeps one <id>.json file per session in a directory. The file
// modification time doubles as the session's updated-at.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(id int64) string {
	return filepath.Join(fs.dir, strconv.FormatInt(id, 10)+".json")
}

func (fs *FileStore) List(ctx context.Context) ([]Session, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}
	sessions := make([]Session, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		s, err := fs.read(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

func (fs *FileStore) read(id int64) (*Session, error) {
	data, err := os.ReadFile(fs.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read session %d: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session %d: %w", id, err)
	}
	if info, err := os.Stat(fs.path(id)); err == nil {
		s.UpdatedAt = info.ModTime()
	}
	return &s, nil
}

func (fs *FileStore) write(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session %d: %w", s.ID, err)
	}
	if err := os.WriteFile(fs.path(s.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write session %d: %w", s.ID, err)
	}
	return nil
}

func (fs *FileStore) Load(ctx context.Context, id int64) (*Session, error) {
	return fs.read(id)
}

func (fs *FileStore) Create(ctx context.Context, name string, messages []ai.Message) (*Session, error) {
	existing, err := fs.List(ctx)
	if err != nil {
		return nil, err
	}
	var maxID int64
	names := make(map[string]bool, len(existing))
	for _, s := range existing {
		if s.ID > maxID {
			maxID = s.ID
		}
		names[s.Name] = true
	}
	s := &Session{
		ID:       maxID + 1,
		Name:     uniqueName(name, func(n string) bool { return names[n] }),
		Messages: messages,
	}
	if err := fs.write(s); err != nil {
		return nil, err
	}
	return fs.read(s.ID)
}

func (fs *FileStore) Update(ctx context.Context, s *Session) error {
	if _, err := fs.read(s.ID); err != nil {
		return err
	}
	return fs.write(s)
}

func (fs *FileStore) UpdateSummary(ctx context.Context, id int64, summary string) error {
	s, err := fs.read(id)
	if err != nil {
		return err
	}
	s.Summary = summary
	return fs.write(s)
}

func (fs *FileStore) Delete(ctx context.Context, id int64) error {
	err := os.Remove(fs.path(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete session %d: %w", id, err)
	}
	return nil
}

func (fs *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
