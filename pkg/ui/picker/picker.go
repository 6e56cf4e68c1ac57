package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/renatogalera/ai-chat/pkg/session"
)

// Item is the list.Item implementation for a stored session.
type Item struct {
	Session session.Session
}

func (i Item) Title() string {
	if i.Session.Name != "" {
		return i.Session.Name
	}
	return fmt.Sprintf("session %d", i.Session.ID)
}

func (i Item) Description() string {
	when := humanize.Time(i.Session.UpdatedAt)
	if i.Session.Summary == "" {
		return when
	}
	return fmt.Sprintf("%s | %s", i.Session.Summary, when)
}

func (i Item) FilterValue() string {
	return strings.TrimSpace(i.Session.Name + " " + i.Session.Summary)
}

// Model is a session picker backed by a Bubbles list. It is used standalone
// by `session browse` and embedded in the chat TUI for /session.
type Model struct {
	list   list.Model
	choice *session.Session
	done   bool
}

func New(sessions []session.Session, title string) Model {
	items := make([]list.Item, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, Item{Session: s})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)

	return Model{list: l}
}

// WithSize returns a copy of the model resized to the given dimensions.
func (m Model) WithSize(width, height int) Model {
	if width > 0 && height > 2 {
		m.list.SetSize(width, height-2)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if it, ok := m.list.SelectedItem().(Item); ok {
				chosen := it.Session
				m.choice = &chosen
			}
			m.done = true
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.done {
		return ""
	}
	return m.list.View()
}

// Done reports whether the user confirmed or aborted the selection.
func (m Model) Done() bool { return m.done }

// Choice returns the selected session, or nil when the picker was aborted.
func (m Model) Choice() *session.Session { return m.choice }

// Run launches the picker as its own program and returns the selection; a
// nil session with a nil error means the user aborted.
func Run(sessions []session.Session, title string) (*session.Session, error) {
	p := tea.NewProgram(New(sessions, title), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run session picker: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return nil, nil
	}
	return m.Choice(), nil
}
