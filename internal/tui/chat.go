package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/collection"
	"ragchat/internal/rag"
	"ragchat/internal/retrieval"
)

type chatState int

const (
	chatIdle chatState = iota
	chatSearching
	chatGenerating
	chatUploading
)

const helpText = `Commands:
  /upload <paths>  - attach files as context for the next question
  /add <paths>     - ingest files into the open collection
  /collections     - pick another collection
  /clear           - clear conversation history
  /exit            - quit
  /help            - show this help`

type chatModel struct {
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	messages    []chatMessage
	partial     string
	cfg         Config
	handle      *collection.Handle
	state       chatState
	width       int
	height      int
	initialized bool
}

type chatMessage struct {
	role    string
	content string
}

// answerMsg is sent when a conversation turn completes.
type answerMsg struct {
	answer  string
	sources []rag.Source
	err     error
}

// deltaMsg carries a streamed piece of the reply.
type deltaMsg string

// uploadDoneMsg is sent when inline files were stored for the session.
type uploadDoneMsg struct {
	files    []string
	tokens   int
	failures []string
	err      error
}

// showCollectionsMsg asks the top-level model to return to the picker.
type showCollectionsMsg struct{}

func newChatModel(cfg Config, h *collection.Handle) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	ti := textinput.New()
	ti.Placeholder = "Ask a question, or /help..."
	ti.CharLimit = 4000
	ti.Focus()

	return chatModel{
		spinner: sp,
		input:   ti,
		cfg:     cfg,
		handle:  h,
		state:   chatIdle,
	}
}

func (m *chatModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + borders/gaps (1 line).
	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	if len(m.messages) == 0 {
		m.viewport.SetContent(dimStyle.Render(m.greeting()))
	} else {
		m.viewport.SetContent(m.renderMessages())
	}

	m.input.Width = width - 4

	// Create glamour renderer matched to current width.
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func (m chatModel) greeting() string {
	if m.handle == nil {
		return "Chatting without a collection. Attach files with /upload.\n\nCommands: /help, /clear, /exit"
	}
	return fmt.Sprintf("Chatting with collection %q (%s).\n\nCommands: /help, /clear, /exit",
		m.handle.Collection.Name, m.handle.Collection.EmbeddingModel)
}

func (m *chatModel) addSystem(text string) {
	if text == "" {
		return
	}
	m.messages = append(m.messages, chatMessage{role: "system", content: text})
	if m.initialized {
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
	}
}

func askQuestion(cfg Config, h *collection.Handle, question string) tea.Cmd {
	return func() tea.Msg {
		var searcher retrieval.Searcher
		if h != nil {
			searcher = h
		}
		ans, err := cfg.Conversation.Ask(context.Background(), cfg.Token, question, searcher, func(d string) {
			cfg.program.send(deltaMsg(d))
		})
		if err != nil {
			return answerMsg{err: err}
		}
		return answerMsg{answer: ans.Reply, sources: ans.Sources}
	}
}

func uploadFiles(cfg Config, paths []string) tea.Cmd {
	return func() tea.Msg {
		res, err := cfg.Uploads.Inline(context.Background(), cfg.Token, paths)
		msg := uploadDoneMsg{err: err}
		if res != nil {
			msg.tokens = res.Tokens
			for _, f := range res.Files {
				msg.files = append(msg.files, filepath.Base(f))
			}
			for _, f := range res.Failures {
				msg.failures = append(msg.failures, fmt.Sprintf("%s: %v", filepath.Base(f.Path), f.Err))
			}
		}
		return msg
	}
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case deltaMsg:
		m.state = chatGenerating
		m.partial += string(msg)
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case answerMsg:
		m.state = chatIdle
		m.partial = ""
		if msg.err != nil {
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
		} else {
			m.messages = append(m.messages, chatMessage{role: "assistant", content: msg.answer})
			if s := formatSources(msg.sources); s != "" {
				m.messages = append(m.messages, chatMessage{role: "system", content: s})
			}
		}
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case uploadDoneMsg:
		m.state = chatIdle
		for _, f := range msg.failures {
			m.messages = append(m.messages, chatMessage{role: "error", content: f})
		}
		if msg.err != nil {
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
		} else {
			m.messages = append(m.messages, chatMessage{role: "system", content: fmt.Sprintf(
				"Attached %s (%d tokens). It will be used as context for your next question.",
				strings.Join(msg.files, ", "), msg.tokens)})
		}
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if m.state != chatIdle {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			// Re-render viewport so the spinner frame updates.
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.state != chatIdle {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.Reset()
			if strings.HasPrefix(line, "/") {
				return m.runCommand(line)
			}

			m.messages = append(m.messages, chatMessage{role: "user", content: line})
			m.state = chatSearching
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()

			return m, tea.Batch(m.spinner.Tick, askQuestion(m.cfg, m.handle, line))
		}
	}

	// Update text input.
	if m.state == chatIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update viewport (scrolling).
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m chatModel) runCommand(line string) (chatModel, tea.Cmd) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/exit", "/quit":
		return m, tea.Quit
	case "/clear":
		m.messages = nil
		if err := m.cfg.Conversation.Reset(m.cfg.Token); err != nil {
			m.addSystem("Could not clear history: " + err.Error())
			return m, nil
		}
		m.viewport.SetContent(dimStyle.Render("Conversation cleared."))
		return m, nil
	case "/help":
		m.addSystem(helpText)
		return m, nil
	case "/collections":
		return m, func() tea.Msg { return showCollectionsMsg{} }
	case "/upload":
		if len(args) == 0 {
			m.addSystem("Usage: /upload <paths>")
			return m, nil
		}
		m.state = chatUploading
		m.viewport.SetContent(m.renderMessages())
		return m, tea.Batch(m.spinner.Tick, uploadFiles(m.cfg, args))
	case "/add":
		if m.handle == nil {
			m.addSystem("Open a collection first (/collections).")
			return m, nil
		}
		if len(args) == 0 {
			m.addSystem("Usage: /add <paths>")
			return m, nil
		}
		h := m.handle
		return m, func() tea.Msg { return startIngestMsg{handle: h, paths: args} }
	}
	m.addSystem(fmt.Sprintf("Unknown command %s. Type /help for the list.", name))
	return m, nil
}

func formatSources(sources []rag.Source) string {
	if len(sources) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		switch {
		case s.Upload:
			parts = append(parts, s.SourceFile+" (upload)")
		case s.Position != "":
			parts = append(parts, fmt.Sprintf("%s (%s)", s.SourceFile, s.Position))
		default:
			parts = append(parts, s.SourceFile)
		}
	}
	return "Sources: " + strings.Join(parts, ", ")
}

func (m chatModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return assistantMsgStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return assistantMsgStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m chatModel) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			sb.WriteString(userMsgStyle.Render("You: ") + msg.content + "\n\n")
		case "assistant":
			sb.WriteString(m.renderMarkdown(msg.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(msg.content) + "\n\n")
		}
	}

	if m.partial != "" {
		sb.WriteString(assistantMsgStyle.Render(m.partial) + "\n")
	}
	if m.state != chatIdle {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render(m.stateLabel()) + "\n")
	}

	return sb.String()
}

func (m chatModel) stateLabel() string {
	switch m.state {
	case chatSearching:
		return "Searching..."
	case chatGenerating:
		return "Generating..."
	case chatUploading:
		return "Reading files..."
	}
	return "idle"
}

func (m chatModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}

	scope := "no collection"
	if m.handle != nil {
		scope = m.handle.Collection.Name
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" ragchat • %s • %s", scope, strings.ToLower(m.stateLabel())))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}
