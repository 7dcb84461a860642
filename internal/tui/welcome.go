package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"ragchat/internal/collection"
	"ragchat/internal/domain"
)

type welcomeModel struct {
	collections []domain.Collection
	cursor      int  // 0 is "no collection"
	ready       bool // true once the listing has loaded
	err         error
}

// collectionsMsg is sent after listing the visible collections.
type collectionsMsg struct {
	listing collection.Listing
	err     error
}

// collectionOpenedMsg is sent when a collection was opened or created.
type collectionOpenedMsg struct {
	handle *collection.Handle
	err    error
}

func loadCollections(cfg Config) tea.Cmd {
	return func() tea.Msg {
		l, err := cfg.Manager.List(cfg.User)
		return collectionsMsg{listing: l, err: err}
	}
}

func openCollection(cfg Config, c domain.Collection) tea.Cmd {
	return func() tea.Msg {
		h, err := cfg.Manager.Open(context.Background(), c.HashedName, cfg.User)
		return collectionOpenedMsg{handle: h, err: err}
	}
}

func (m welcomeModel) Update(msg tea.Msg) (welcomeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case collectionsMsg:
		m.ready = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.collections = append(append([]domain.Collection(nil), msg.listing.User...), msg.listing.Common...)
		if m.cursor > len(m.collections) {
			m.cursor = 0
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.collections) {
				m.cursor++
			}
		}
	}
	return m, nil
}

// selected returns the highlighted collection, or nil for chatting without one.
func (m welcomeModel) selected() *domain.Collection {
	if m.cursor == 0 || m.cursor > len(m.collections) {
		return nil
	}
	c := m.collections[m.cursor-1]
	return &c
}

func (m welcomeModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  ◆ ragchat") + "\n"
	s += subtitleStyle.Render("  Chat with your documents, locally") + "\n\n"

	if !m.ready {
		s += dimStyle.Render("  Loading collections...") + "\n"
		return s
	}
	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("  ✗ %v", m.err)) + "\n\n"
	}

	s += m.item(0, "No collection (uploads only)") + "\n"
	for i, c := range m.collections {
		scope := "private"
		if c.IsPublic() {
			scope = "public"
		}
		s += m.item(i+1, fmt.Sprintf("%s  %s", c.Name, dimStyle.Render(fmt.Sprintf("[%s · %s]", scope, c.EmbeddingModel)))) + "\n"
	}
	if len(m.collections) == 0 {
		s += "\n" + warnStyle.Render("  No collections yet") + "\n"
	}

	s += "\n"
	s += helpStyle.Render("  ↑/↓ navigate • Enter open • n new collection • q quit") + "\n"
	return s
}

func (m welcomeModel) item(i int, label string) string {
	if i == m.cursor {
		return "  ▸ " + selectedStyle.Render(label)
	}
	return "    " + listItemStyle.Render(label)
}
