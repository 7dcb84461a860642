package tui

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"ragchat/internal/collection"
	"ragchat/internal/index"
	"ragchat/internal/logger"
	"ragchat/internal/rag"
	"ragchat/internal/upload"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewSetup
	ViewIndexing
	ViewChat
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

func (r *programRef) send(msg tea.Msg) {
	if r != nil && r.p != nil {
		r.p.Send(msg)
	}
}

// Config holds the services and identity passed from the CLI layer.
type Config struct {
	Manager      *collection.Manager
	Indexer      *index.Indexer
	Uploads      *upload.Handler
	Conversation *rag.Conversation

	OllamaURL    string
	DefaultModel string
	User         string
	// Token identifies the chat session for pending uploads and history.
	Token string

	// program is set internally so background goroutines can send messages.
	program *programRef
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state  ViewState
	config Config
	width  int
	height int

	welcome  welcomeModel
	setup    setupModel
	indexing indexingModel
	chat     chatModel
	err      error
}

// New creates a new TUI model with the given config.
func New(cfg Config) Model {
	return Model{
		state:  ViewWelcome,
		config: cfg,
	}
}

func (m Model) Init() tea.Cmd {
	return loadCollections(m.config)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == ViewChat {
			var c tea.Cmd
			m.chat, c = m.chat.Update(msg)
			return m, c
		}
		return m, nil

	case tea.KeyMsg:
		// Global quit.
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state == ViewWelcome || (m.state == ViewIndexing && m.indexing.done) {
				return m, tea.Quit
			}
		}

	case collectionOpenedMsg:
		if msg.err != nil {
			m.state = ViewWelcome
			m.welcome.err = msg.err
			return m, loadCollections(m.config)
		}
		return m, m.transitionToChat(msg.handle)

	case showCollectionsMsg:
		m.state = ViewWelcome
		m.welcome = welcomeModel{}
		return m, loadCollections(m.config)

	case startIngestMsg:
		m.state = ViewIndexing
		m.indexing = newIndexingModel(msg.handle.Collection.Name)
		return m, tea.Batch(m.indexing.spinner.Tick, runIngest(m.config, msg.handle, msg.paths))
	}

	var cmd tea.Cmd

	switch m.state {
	case ViewWelcome:
		m.welcome, cmd = m.welcome.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		keyMsg, ok := msg.(tea.KeyMsg)
		if !ok || !m.welcome.ready {
			break
		}
		switch {
		case keyMsg.Type == tea.KeyEnter:
			sel := m.welcome.selected()
			if sel == nil {
				return m, m.transitionToChat(nil)
			}
			return m, openCollection(m.config, *sel)
		case keyMsg.String() == "n":
			m.state = ViewSetup
			m.setup = newSetupModel(m.config.DefaultModel)
			return m, fetchModels(m.config.OllamaURL)
		}

	case ViewSetup:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.Type {
			case tea.KeyEsc:
				m.state = ViewWelcome
				return m, nil
			case tea.KeyEnter:
				if m.setup.advancePage() {
					return m, nil
				}
				if m.setup.page == setupPageModel && m.setup.loaded {
					return m, createCollection(m.config, m.setup.collectionName(), m.setup.public, m.setup.selectedModel())
				}
				return m, nil
			}
		}
		m.setup, cmd = m.setup.Update(msg)
		return m, cmd

	case ViewIndexing:
		m.indexing, cmd = m.indexing.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		// Handle Enter after ingestion completes.
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.indexing.done {
			m.chat.addSystem(m.indexing.summary())
			m.state = ViewChat
			return m, nil
		}

	case ViewChat:
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) transitionToChat(h *collection.Handle) tea.Cmd {
	m.chat = newChatModel(m.config, h)
	m.chat.initViewport(m.width, m.height)
	m.state = ViewChat
	return nil
}

func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	switch m.state {
	case ViewWelcome:
		return m.welcome.View(m.width, m.height)
	case ViewSetup:
		return m.setup.View(m.width, m.height)
	case ViewIndexing:
		return m.indexing.View(m.width, m.height)
	case ViewChat:
		return m.chat.View(m.width, m.height)
	}
	return ""
}

// Run starts the TUI program. Log output is suppressed while the alternate
// screen is active.
func Run(cfg Config) error {
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(os.Stderr)

	ref := &programRef{}
	cfg.program = ref
	model := New(cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	ref.p = p
	_, err := p.Run()
	return err
}
