package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/image"
	"github.com/renatogalera/ai-chat/pkg/session"
	"github.com/renatogalera/ai-chat/pkg/summarizer"
	"github.com/renatogalera/ai-chat/pkg/ui/picker"
)

// uiState represents the different states of the chat TUI.
type uiState int

const (
	stateComposing uiState = iota
	stateThinking
	statePicking
)

const replyTimeout = 120 * time.Second

type (
	replyMsg struct {
		text string
		err  error
	}
	streamStartedMsg struct {
		deltaCh <-chan string
		doneCh  <-chan error
	}
	streamDeltaMsg struct{ delta string }
	streamDoneMsg  struct{ err error }
	errMsg         struct{ err error }
	noticeMsg      struct{ text string }
	sessionsMsg    struct{ sessions []session.Session }
	imageSavedMsg  struct{ path string }
)

var (
	logoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	logoText = `AI-CHAT`

	infoLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Margin(0, 1).
			Italic(true)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("63")).
				Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

type keys struct {
	Send     key.Binding
	Newline  key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
}

var keyMap = keys{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	Newline: key.NewBinding(
		key.WithKeys("ctrl+j"),
		key.WithHelp("ctrl+j", "newline"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

type Model struct {
	state uiState

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	help     help.Model
	picker   picker.Model

	aiClient ai.AIClient
	store    session.Store
	images   *image.Client

	provider string
	model    string

	// messages is the full conversation including the seed system prompt;
	// seed is what /reset restores.
	messages []ai.Message
	seed     []ai.Message
	sess     *session.Session

	// streaming support
	pending string
	deltaCh <-chan string
	doneCh  <-chan error

	renderer       *glamour.TermRenderer
	renderMarkdown bool

	// last generated image, target of /edit
	lastImage string

	notice  string
	errText string

	dotFrame int

	width  int
	height int
}

// NewChatModel builds the chat TUI. resume may be nil; store and images may
// be nil, which disables session persistence and the /img and /edit commands.
func NewChatModel(
	client ai.AIClient,
	store session.Store,
	images *image.Client,
	provider, model, systemPrompt string,
	renderMarkdown bool,
	resume *session.Session,
) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	ta := textarea.New()
	ta.Placeholder = "Send a message (/session /img /edit /reset /save /history, exit quits)"
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline = keyMap.Newline
	ta.Focus()

	vp := viewport.New(80, 20)
	// Leave letters and arrows to the textarea; the transcript scrolls by
	// page and mouse wheel only.
	vp.KeyMap = viewport.KeyMap{
		PageUp:   keyMap.PageUp,
		PageDown: keyMap.PageDown,
	}

	m := Model{
		state:          stateComposing,
		viewport:       vp,
		textarea:       ta,
		spinner:        s,
		help:           help.New(),
		aiClient:       client,
		store:          store,
		images:         images,
		provider:       provider,
		model:          model,
		renderMarkdown: renderMarkdown,
		renderer:       newRenderer(78),
	}

	seed := []ai.Message{}
	if strings.TrimSpace(systemPrompt) != "" {
		seed = append(seed, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	}
	m.seed = seed
	m.messages = append([]ai.Message(nil), seed...)

	if resume != nil {
		m.adoptSession(resume)
	}
	m.viewport.SetContent(m.renderTranscript())
	return m
}

// NewProgram creates a new Bubble Tea program with the given model.
func NewProgram(m Model) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// --- UPDATE ------------------------------------------------------------------

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.state == statePicking {
		return m.updatePicker(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.textarea.SetWidth(msg.Width - 2)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-m.textarea.Height()-6, 3)
		m.renderer = newRenderer(min(msg.Width-2, 100))
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keyMap.Quit) {
			return m, tea.Quit
		}
		if key.Matches(msg, keyMap.Send) && m.state == stateComposing {
			return m.submit()
		}

	case replyMsg:
		if msg.err != nil {
			m.errText = fmt.Sprintf("AI error: %v", msg.err)
			m.state = stateComposing
			return m, nil
		}
		return m.finishTurn(strings.TrimSpace(msg.text))

	case streamStartedMsg:
		m.deltaCh = msg.deltaCh
		m.doneCh = msg.doneCh
		m.pending = ""
		return m, tea.Batch(
			m.spinner.Tick,
			readDeltaCmd(m.deltaCh),
			waitDoneCmd(m.doneCh),
		)

	case streamDeltaMsg:
		m.pending += msg.delta
		m.viewport.SetContent(m.renderTranscript() + m.liveBlock())
		m.viewport.GotoBottom()
		return m, readDeltaCmd(m.deltaCh)

	case streamDoneMsg:
		reply := strings.TrimSpace(m.pending)
		m.pending = ""
		if msg.err != nil {
			m.errText = fmt.Sprintf("AI streaming error: %v", msg.err)
			log.Debug().Err(msg.err).Msg("stream ended with error")
		}
		if reply == "" {
			m.state = stateComposing
			m.viewport.SetContent(m.renderTranscript())
			return m, nil
		}
		return m.finishTurn(reply)

	case errMsg:
		m.errText = msg.err.Error()
		m.state = stateComposing
		return m, nil

	case noticeMsg:
		m.notice = msg.text
		m.state = stateComposing
		return m, nil

	case imageSavedMsg:
		m.lastImage = msg.path
		m.notice = fmt.Sprintf("Image saved to %s", msg.path)
		m.state = stateComposing
		return m, nil

	case sessionsMsg:
		if len(msg.sessions) == 0 {
			m.notice = "No sessions available."
			m.state = stateComposing
			return m, nil
		}
		m.picker = picker.New(msg.sessions, "Choose a session").WithSize(m.width, m.height)
		m.state = statePicking
		return m, nil

	case spinner.TickMsg:
		if m.state == stateThinking {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.dotFrame = (m.dotFrame + 1) % 4
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.height = size.Height
	}
	next, cmd := m.picker.Update(msg)
	if p, ok := next.(picker.Model); ok {
		m.picker = p
	}
	if !m.picker.Done() {
		return m, cmd
	}

	m.state = stateComposing
	m.textarea.Focus()
	if chosen := m.picker.Choice(); chosen != nil {
		m.adoptSession(chosen)
		m.notice = fmt.Sprintf("Switched to session: %s", picker.Item{Session: *chosen}.Title())
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	// The picker's quit command must not stop the chat program.
	return m, nil
}

// submit handles enter: slash commands run locally, anything else becomes
// a user turn sent to the provider.
func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	m.notice = ""
	m.errText = ""

	if input == "" {
		m.notice = "Empty message received. :("
		return m, nil
	}
	m.textarea.Reset()

	if cmd, args, ok := parseCommand(input); ok {
		return m.runCommand(cmd, args)
	}

	m.messages = append(m.messages, ai.Message{Role: ai.RoleUser, Content: input})
	m.persist()
	m.state = stateThinking
	m.dotFrame = 0
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	return m, tea.Batch(m.spinner.Tick, sendCmd(m.aiClient, m.messages))
}

func (m Model) runCommand(cmd, args string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "exit":
		return m, tea.Quit

	case "/reset":
		m.messages = append([]ai.Message(nil), m.seed...)
		m.sess = nil
		m.notice = "Conversation reset."
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case "/save":
		if args == "" {
			m.errText = "usage: /save <path>"
			return m, nil
		}
		if err := os.WriteFile(args, []byte(session.Transcript(m.messages)), 0o644); err != nil {
			m.errText = fmt.Sprintf("failed to save transcript: %v", err)
			return m, nil
		}
		m.notice = fmt.Sprintf("Context successfully saved to %s", args)
		return m, nil

	case "/history":
		m.viewport.SetContent(m.historyView())
		m.viewport.GotoTop()
		m.notice = "Raw history; the transcript returns on the next message."
		return m, nil

	case "/session":
		m.state = stateThinking
		return m, tea.Batch(m.spinner.Tick, loadSessionsCmd(m.store, m.aiClient))

	case "/img":
		if m.images == nil {
			m.errText = "image commands need an OpenAI API key"
			return m, nil
		}
		if args == "" {
			m.errText = "usage: /img <prompt>"
			return m, nil
		}
		m.state = stateThinking
		return m, tea.Batch(m.spinner.Tick, generateImageCmd(m.images, args))

	case "/edit":
		if m.images == nil {
			m.errText = "image commands need an OpenAI API key"
			return m, nil
		}
		if m.lastImage == "" {
			m.errText = "No image available for editing. Use /img first."
			return m, nil
		}
		if args == "" {
			m.errText = "usage: /edit <prompt>"
			return m, nil
		}
		m.state = stateThinking
		return m, tea.Batch(m.spinner.Tick, editImageCmd(m.images, args, m.lastImage))

	default:
		m.errText = fmt.Sprintf("unknown command %s", cmd)
		return m, nil
	}
}

// finishTurn appends the assistant reply, persists the session and returns
// to composing.
func (m Model) finishTurn(reply string) (tea.Model, tea.Cmd) {
	m.messages = append(m.messages, ai.Message{Role: ai.RoleAssistant, Content: reply})
	m.persist()
	m.state = stateComposing
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	return m, nil
}

// persist writes the conversation through the session store: the first user
// turn creates the session, later turns update it. Store writes are local,
// so they run inline to keep turn ordering.
func (m *Model) persist() {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if m.sess == nil {
		s, err := m.store.Create(ctx, sessionName(time.Now()), m.messages)
		if err != nil {
			m.errText = fmt.Sprintf("failed to save session: %v", err)
			return
		}
		m.sess = s
		return
	}
	m.sess.Messages = m.messages
	if err := m.store.Update(ctx, m.sess); err != nil {
		m.errText = fmt.Sprintf("failed to save session: %v", err)
	}
}

func (m *Model) adoptSession(s *session.Session) {
	copied := *s
	copied.Messages = append([]ai.Message(nil), s.Messages...)
	m.sess = &copied
	m.messages = append([]ai.Message(nil), copied.Messages...)
	// /reset now restores the state the session was switched to.
	m.seed = append([]ai.Message(nil), copied.Messages...)
}

// --- VIEWS -------------------------------------------------------------------

func (m Model) View() string {
	if m.state == statePicking {
		return m.picker.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.statusView(),
		m.textarea.View(),
		m.help.View(m),
	)
}

func (m Model) headerView() string {
	header := logoStyle.Render(logoText)
	info := infoLineStyle.Render(fmt.Sprintf("Provider: %s | Model: %s | Session: %s",
		m.provider, m.model, m.sessionLabel()))
	return header + "\n" + info
}

func (m Model) sessionLabel() string {
	if m.sess == nil {
		return "unsaved"
	}
	return m.sess.Name
}

func (m Model) statusView() string {
	switch {
	case m.state == stateThinking:
		dots := strings.Repeat(".", m.dotFrame)
		return fmt.Sprintf("%s Thinking%s", m.spinner.View(), dots)
	case m.errText != "":
		return errorStyle.Render(m.errText)
	case m.notice != "":
		return noticeStyle.Render(m.notice)
	}
	return ""
}

// renderTranscript lays out the conversation, skipping system turns.
// Assistant turns are rendered as markdown when a renderer is available.
func (m Model) renderTranscript() string {
	var b strings.Builder
	for _, msg := range m.messages {
		switch msg.Role {
		case ai.RoleUser:
			b.WriteString(userLabelStyle.Render("You") + "\n")
			b.WriteString(msg.Content + "\n\n")
		case ai.RoleAssistant:
			b.WriteString(assistantLabelStyle.Render("Assistant") + "\n")
			b.WriteString(m.renderAssistant(msg.Content))
		}
	}
	return b.String()
}

// liveBlock shows the partial reply while a stream is running; markdown
// rendering waits until the reply is complete.
func (m Model) liveBlock() string {
	if m.pending == "" {
		return ""
	}
	return assistantLabelStyle.Render("Assistant") + "\n" + m.pending
}

func (m Model) renderAssistant(content string) string {
	if !m.renderMarkdown || m.renderer == nil {
		return content + "\n\n"
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content + "\n\n"
	}
	return out + "\n"
}

// historyView prints every stored turn, system prompts included.
func (m Model) historyView() string {
	var b strings.Builder
	for _, msg := range m.messages {
		b.WriteString(fmt.Sprintf("[%s] %s\n", strings.ToUpper(string(msg.Role)), msg.Content))
	}
	return b.String()
}

func (m Model) ShortHelp() []key.Binding {
	return []key.Binding{
		keyMap.Send,
		keyMap.Newline,
		keyMap.PageUp,
		keyMap.PageDown,
		keyMap.Quit,
	}
}

func (m Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		m.ShortHelp(),
	}
}

// --- COMMANDS ----------------------------------------------------------------

// sendCmd calls the AI client with the conversation so far. If the client
// supports streaming, it wires channels and returns streamStartedMsg.
func sendCmd(client ai.AIClient, messages []ai.Message) tea.Cmd {
	msgs := append([]ai.Message(nil), messages...)
	return func() tea.Msg {
		if sc, ok := client.(ai.StreamingAIClient); ok {
			deltaCh := make(chan string, 64)
			doneCh := make(chan error, 1)
			go func() {
				_, err := sc.StreamChatResponse(context.Background(), msgs, func(d string) {
					deltaCh <- d
				})
				close(deltaCh)
				doneCh <- err
				close(doneCh)
			}()
			return streamStartedMsg{deltaCh: deltaCh, doneCh: doneCh}
		}
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		text, err := client.GetChatResponse(ctx, msgs)
		return replyMsg{text: text, err: err}
	}
}

// readDeltaCmd reads a single delta from the channel (if available).
func readDeltaCmd(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		d, ok := <-ch
		if !ok {
			return nil
		}
		return streamDeltaMsg{delta: d}
	}
}

// waitDoneCmd waits for the completion error from the stream.
func waitDoneCmd(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-done
		if !ok {
			return streamDoneMsg{err: nil}
		}
		return streamDoneMsg{err: err}
	}
}

// loadSessionsCmd lists stored sessions for the switcher, dropping sessions
// that hold only system turns and backfilling missing summaries.
func loadSessionsCmd(store session.Store, aiClient ai.AIClient) tea.Cmd {
	return func() tea.Msg {
		if store == nil {
			return noticeMsg{text: "No session store configured."}
		}
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()

		sessions, err := store.List(ctx)
		if err != nil {
			return errMsg{err: fmt.Errorf("failed to list sessions: %w", err)}
		}
		withContent := sessions[:0]
		for _, s := range sessions {
			if session.Transcript(s.Messages) != "" {
				withContent = append(withContent, s)
			}
		}
		if aiClient != nil {
			summarizer.Backfill(ctx, aiClient, store, withContent, "")
		}
		return sessionsMsg{sessions: withContent}
	}
}

func generateImageCmd(client *image.Client, prompt string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()

		items, err := client.Generate(ctx, image.DefaultModel, prompt, 1, image.DefaultSize, "")
		if err != nil {
			return errMsg{err: fmt.Errorf("image generation error: %w", err)}
		}
		paths, err := client.SaveAll(ctx, items, os.TempDir())
		if err != nil {
			return errMsg{err: fmt.Errorf("failed to save image: %w", err)}
		}
		return imageSavedMsg{path: paths[len(paths)-1]}
	}
}

func editImageCmd(client *image.Client, prompt, imagePath string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()

		items, err := client.Edit(ctx, image.DefaultModel, prompt, 1, image.DefaultSize, "", imagePath, "")
		if err != nil {
			return errMsg{err: fmt.Errorf("image edit error: %w", err)}
		}
		paths, err := client.SaveAll(ctx, items, os.TempDir())
		if err != nil {
			return errMsg{err: fmt.Errorf("failed to save image: %w", err)}
		}
		return imageSavedMsg{path: paths[len(paths)-1]}
	}
}

// --- helpers -----------------------------------------------------------------

// parseCommand splits a REPL command from its argument. "exit" quits like
// the slash commands but keeps its bare spelling.
func parseCommand(input string) (cmd, args string, ok bool) {
	if input == "exit" {
		return "exit", "", true
	}
	if !strings.HasPrefix(input, "/") {
		return "", "", false
	}
	cmd, args, _ = strings.Cut(input, " ")
	return cmd, strings.TrimSpace(args), true
}

func sessionName(now time.Time) string {
	return "chat-" + now.Format("20060102-150405")
}

func newRenderer(width int) *glamour.TermRenderer {
	if width < 10 {
		width = 10
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

