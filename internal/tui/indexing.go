package tui

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"ragchat/internal/collection"
	"ragchat/internal/index"
)

type indexingModel struct {
	spinner        spinner.Model
	collection     string
	phase          string
	filesProcessed int
	filesTotal     int
	done           bool
	stats          *index.Stats
	err            error
}

func newIndexingModel(collectionName string) indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return indexingModel{
		spinner:    sp,
		collection: collectionName,
		phase:      "Preparing files...",
	}
}

// startIngestMsg asks the top-level model to ingest paths into handle.
type startIngestMsg struct {
	handle *collection.Handle
	paths  []string
}

// indexDoneMsg is sent when ingestion completes.
type indexDoneMsg struct {
	stats *index.Stats
	err   error
}

// indexProgressMsg is sent after each stored file.
type indexProgressMsg struct {
	phase          string
	filesProcessed int
	filesTotal     int
}

func runIngest(cfg Config, h *collection.Handle, paths []string) tea.Cmd {
	return func() tea.Msg {
		stats, err := cfg.Indexer.Index(context.Background(), h, paths, func(phase string, processed, total int) {
			cfg.program.send(indexProgressMsg{
				phase:          phase,
				filesProcessed: processed,
				filesTotal:     total,
			})
		})
		return indexDoneMsg{stats: stats, err: err}
	}
}

func (m indexingModel) Update(msg tea.Msg) (indexingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case indexDoneMsg:
		m.done = true
		m.stats = msg.stats
		m.err = msg.err
		return m, nil
	case indexProgressMsg:
		m.phase = msg.phase
		m.filesProcessed = msg.filesProcessed
		m.filesTotal = msg.filesTotal
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// summary is a one-line report for the chat transcript.
func (m indexingModel) summary() string {
	if m.err != nil {
		return fmt.Sprintf("Ingestion into %s failed: %v", m.collection, m.err)
	}
	if m.stats == nil {
		return ""
	}
	return fmt.Sprintf("Ingested into %s: %d indexed, %d skipped, %d failed, %d chunks",
		m.collection, m.stats.FilesIndexed, m.stats.FilesSkipped, m.stats.FilesFailed, m.stats.ChunksTotal)
}

func (m indexingModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  Ingesting into "+m.collection) + "\n\n"

	if m.done {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
		} else {
			s += successStyle.Render("  ✓ Ingestion complete!") + "\n\n"
		}
		if m.stats != nil {
			s += fmt.Sprintf("  Files: %d total, %d indexed, %d skipped, %d failed\n",
				m.stats.FilesTotal, m.stats.FilesIndexed, m.stats.FilesSkipped, m.stats.FilesFailed)
			s += fmt.Sprintf("  Chunks: %d\n", m.stats.ChunksTotal)
			for _, f := range m.stats.Failures {
				s += warnStyle.Render(fmt.Sprintf("  ✗ %s: %v", filepath.Base(f.Path), f.Err)) + "\n"
			}
		}
		s += "\n"
		s += dimStyle.Render("  Press Enter to return to chat") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.phase)
	if m.filesTotal > 0 {
		s += fmt.Sprintf("  %d / %d files stored\n", m.filesProcessed, m.filesTotal)
	}
	s += "\n"
	s += dimStyle.Render("  This may take a while for large document sets...") + "\n"
	return s
}
