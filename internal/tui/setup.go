package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"ragchat/internal/embedder"
)

type setupPage int

const (
	setupPageName setupPage = iota
	setupPageModel
)

// setupModel creates a collection: a name and visibility, then the
// embedding model it is bound to.
type setupModel struct {
	name         textinput.Model
	public       bool
	models       []embedder.OllamaModel
	cursor       int
	page         setupPage
	loaded       bool
	err          error
	defaultModel string
}

// fetchModelsMsg is sent when models have been fetched from Ollama.
type fetchModelsMsg struct {
	models []embedder.OllamaModel
	err    error
}

func newSetupModel(defaultModel string) setupModel {
	ti := textinput.New()
	ti.Placeholder = "collection name"
	ti.CharLimit = 120
	ti.Focus()
	return setupModel{name: ti, defaultModel: defaultModel}
}

func fetchModels(baseURL string) tea.Cmd {
	return func() tea.Msg {
		models, err := embedder.ListModels(context.Background(), baseURL)
		return fetchModelsMsg{models: models, err: err}
	}
}

func createCollection(cfg Config, name string, public bool, model string) tea.Cmd {
	return func() tea.Msg {
		h, err := cfg.Manager.OpenOrCreateWithModel(context.Background(), name, cfg.User, public, model)
		return collectionOpenedMsg{handle: h, err: err}
	}
}

func (m setupModel) Update(msg tea.Msg) (setupModel, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchModelsMsg:
		m.loaded = true
		m.err = msg.err
		for _, model := range msg.models {
			if isEmbeddingModel(model.Name) {
				m.models = append(m.models, model)
			}
		}
		// Fallback: if no embedding models found, show all.
		if len(m.models) == 0 {
			m.models = msg.models
		}
		if len(m.models) == 0 {
			m.models = []embedder.OllamaModel{{Name: m.defaultModel}}
		}
		for i, model := range m.models {
			if model.Name == m.defaultModel {
				m.cursor = i
				break
			}
		}
		return m, nil

	case tea.KeyMsg:
		if m.page == setupPageName {
			if msg.Type == tea.KeyTab {
				m.public = !m.public
				return m, nil
			}
			var cmd tea.Cmd
			m.name, cmd = m.name.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.models)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func isEmbeddingModel(name string) bool {
	n := strings.ToLower(name)
	for _, hint := range []string{"embed", "nomic", "bge", "minilm", "e5"} {
		if strings.Contains(n, hint) {
			return true
		}
	}
	return false
}

// advancePage moves from the name page to the model page. Returns true if it advanced.
func (m *setupModel) advancePage() bool {
	if m.page == setupPageName && m.collectionName() != "" {
		m.page = setupPageModel
		m.name.Blur()
		return true
	}
	return false
}

func (m setupModel) collectionName() string {
	return strings.TrimSpace(m.name.Value())
}

func (m setupModel) selectedModel() string {
	if len(m.models) > 0 && m.cursor < len(m.models) {
		return m.models[m.cursor].Name
	}
	return m.defaultModel
}

func (m setupModel) View(width, height int) string {
	s := "\n"

	if m.page == setupPageName {
		s += titleStyle.Render("  New Collection") + "\n\n"
		s += "  " + m.name.View() + "\n\n"
		scope := "private to you"
		if m.public {
			scope = "public, visible to everyone"
		}
		s += dimStyle.Render("  Visibility: "+scope) + "\n\n"
		s += helpStyle.Render("  Tab toggle visibility • Enter continue • Esc back") + "\n"
		return s
	}

	s += titleStyle.Render("  Select Embedding Model") + "\n"
	s += dimStyle.Render("  The collection stays bound to this model") + "\n\n"

	if !m.loaded {
		s += dimStyle.Render("  Fetching models from Ollama...") + "\n"
		return s
	}
	if m.err != nil {
		s += warnStyle.Render(fmt.Sprintf("  Could not list models: %v", m.err)) + "\n\n"
	}
	for i, model := range m.models {
		cursor := "  "
		style := listItemStyle
		if i == m.cursor {
			cursor = "▸ "
			style = selectedStyle
		}
		label := model.Name
		if model.Size > 0 {
			label = fmt.Sprintf("%s (%s)", model.Name, embedder.FormatSize(model.Size))
		}
		s += fmt.Sprintf("  %s%s\n", cursor, style.Render(label))
	}
	s += "\n"
	s += helpStyle.Render("  ↑/↓ navigate • Enter create • Esc back") + "\n"
	return s
}
