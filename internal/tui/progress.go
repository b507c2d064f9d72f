// Package tui renders dispatch progress with Bubble Tea. The dispatch engine
// feeds the program ProgressMsg values via Program.Send from its progress
// callback; the pipeline itself never blocks on rendering.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Async message types for Bubble Tea commands.

// ProgressMsg reports one completed dispatch task.
type ProgressMsg struct {
	Completed   int
	Description string
}

// DoneMsg ends the program once the batch has finished.
type DoneMsg struct{}

var descStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

// ProgressModel displays a single progress bar for the summarization batch.
type ProgressModel struct {
	total       int
	completed   int
	description string
	bar         progress.Model
	quitting    bool
}

func NewProgressModel(total int) ProgressModel {
	return ProgressModel{
		total:       total,
		description: "Generating summaries",
		bar:         progress.New(progress.WithDefaultGradient()),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case ProgressMsg:
		m.completed = msg.Completed
		m.description = msg.Description
		if m.total <= 0 {
			return m, nil
		}
		return m, m.bar.SetPercent(float64(m.completed) / float64(m.total))

	case DoneMsg:
		m.quitting = true
		return m, tea.Quit

	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		m.bar = updated.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m ProgressModel) View() string {
	if m.quitting {
		return ""
	}
	return fmt.Sprintf("\n  %s\n\n  %s\n",
		descStyle.Render(m.description), m.bar.View())
}
