package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"luminakraft-launcher/model"
	"luminakraft-launcher/ui"
)

// ProgressMsg represents a progress update from a running operation
type ProgressMsg struct {
	Type     string // "progress", "status", "error", "summary", "done"
	Message  string
	Progress model.Progress
}

// ProgressModel renders one long-running operation as a progress bar.
type ProgressModel struct {
	spinner      spinner.Model
	bar          progress.Model
	progressChan chan ProgressMsg
	run          func(onProgress func(model.Progress)) error
	summary      string

	// State
	title    string
	status   string
	current  model.Progress
	errors   []string
	finished string
	done     bool
}

func initialProgressModel(title, summary string, run func(onProgress func(model.Progress)) error) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return ProgressModel{
		spinner:      s,
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		progressChan: make(chan ProgressMsg, 100), // Buffer slightly to avoid blocking
		run:          run,
		summary:      summary,
		title:        title,
		status:       "Starting...",
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.startOperation(),
		m.waitForActivity(),
	)
}

func (m ProgressModel) startOperation() tea.Cmd {
	ch := m.progressChan
	run := m.run
	summary := m.summary
	return func() tea.Msg {
		go func() {
			defer close(ch)
			err := run(func(p model.Progress) {
				// Intermediate updates may be dropped; the final state follows.
				select {
				case ch <- ProgressMsg{Type: "progress", Progress: p}:
				default:
				}
			})
			if err != nil {
				ch <- ProgressMsg{Type: "error", Message: describeError(err)}
				return
			}
			ch <- ProgressMsg{Type: "summary", Message: summary}
		}()
		return nil
	}
}

func (m ProgressModel) waitForActivity() tea.Cmd {
	ch := m.progressChan
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return ProgressMsg{Type: "done"}
		}
		return msg
	}
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ProgressMsg:
		switch msg.Type {
		case "done":
			m.done = true
			return m, tea.Quit
		case "progress":
			m.current = msg.Progress
			m.status = "Downloading..."
		case "status":
			m.status = msg.Message
		case "error":
			m.errors = append(m.errors, msg.Message)
		case "summary":
			m.finished = msg.Message
			m.current.Percentage = 100
		}
		return m, m.waitForActivity()
	}

	return m, nil
}

// Err reports the failure shown by the model, if any.
func (m ProgressModel) Err() error {
	if len(m.errors) == 0 {
		return nil
	}
	return errors.New(strings.Join(m.errors, "; "))
}

func (m ProgressModel) View() string {
	var symbol string
	switch {
	case m.done && len(m.errors) > 0:
		symbol = ui.Failure.Render("✗")
	case m.done:
		symbol = ui.Success.Render("✓")
	default:
		symbol = m.spinner.View()
	}

	s := fmt.Sprintf("\n %s %s: %s\n\n", symbol, ui.Bold.Render(m.title), m.status)
	s += "   " + m.bar.ViewAs(m.current.Percentage/100) + "\n"
	s += "   " + progressDetails(m.current) + "\n\n"

	if len(m.errors) > 0 {
		s += ui.Failure.Render("Errors:") + "\n"
		for _, e := range m.errors {
			s += fmt.Sprintf("  • %s\n", e)
		}
		s += "\n"
	}

	if m.finished != "" {
		s += ui.Success.Render(m.finished) + "\n"
	}
	return s
}

func progressDetails(p model.Progress) string {
	if p.TotalBytes <= 0 {
		return ""
	}
	line := fmt.Sprintf("%s / %s", humanize.Bytes(uint64(p.DownloadedBytes)), humanize.Bytes(uint64(p.TotalBytes)))
	if p.CurrentSpeed > 0 {
		line += fmt.Sprintf("  %s/s", humanize.Bytes(uint64(p.CurrentSpeed)))
	}
	if p.HasETA {
		line += fmt.Sprintf("  ETA %s", p.ETA.Round(time.Second))
	}
	return line
}

// runWithProgress runs op under the progress TUI and returns its error.
func runWithProgress(title, summary string, op func(onProgress func(model.Progress)) error) error {
	p := tea.NewProgram(initialProgressModel(title, summary, op))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("failed to run progress view: %w", err)
	}
	return final.(ProgressModel).Err()
}
