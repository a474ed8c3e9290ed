package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"luminakraft-launcher/launcher"
	"luminakraft-launcher/logger"
	"luminakraft-launcher/model"
	"luminakraft-launcher/ui"
)

// guiCmd represents the gui command
var guiCmd = &cobra.Command{
	Use:   "gui",
	Short: "Browse the catalog and manage modpacks interactively",
	Long:  `Launch an interactive TUI that lists every catalog modpack with its live status.`,
	Run: func(_ *cobra.Command, _ []string) {
		runGUI()
	},
}

func init() {
	rootCmd.AddCommand(guiCmd)
}

// modpackController is the part of the lifecycle controller the browser drives.
type modpackController interface {
	Status(id string) (model.RuntimeState, error)
	Install(ctx context.Context, id string, onProgress func(model.Progress)) error
	Update(ctx context.Context, id string, onProgress func(model.Progress)) error
	Launch(ctx context.Context, id string, onProgress func(model.Progress)) error
	Repair(ctx context.Context, id string, onProgress func(model.Progress)) error
	Subscribe() (<-chan launcher.Event, func())
}

// ModpackRow is one line of the browser.
type ModpackRow struct {
	Descriptor model.ModpackDescriptor
	State      model.RuntimeState
}

// Model represents the state of the TUI
type Model struct {
	ctx           context.Context
	controller    modpackController
	events        <-chan launcher.Event
	rows          []ModpackRow
	selectedIndex int
	error         string
	message       string
	spinnerFrame  int
	width         int
	height        int
}

func newModel(ctx context.Context, c modpackController, entries []model.ModpackDescriptor, events <-chan launcher.Event) Model {
	rows := make([]ModpackRow, 0, len(entries))
	for _, d := range entries {
		st, err := c.Status(d.ID)
		if err != nil {
			logger.Log.Warnw("Failed to read modpack status", zap.String("modpack", d.ID), zap.Error(err))
			st = model.RuntimeState{ModpackID: d.ID, Status: model.StatusError, ErrorMessage: err.Error()}
		}
		rows = append(rows, ModpackRow{Descriptor: d, State: st})
	}
	sort.Slice(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].Descriptor.Name) < strings.ToLower(rows[j].Descriptor.Name)
	})
	return Model{ctx: ctx, controller: c, events: events, rows: rows, width: 80, height: 24}
}

// Initialize the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tickSpinner())
}

func tickSpinner() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func waitForEvent(events <-chan launcher.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return stateMsg(ev)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case stateMsg:
		m.applyState(launcher.Event(msg))
		return m, waitForEvent(m.events)
	case spinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, tickSpinner()
	case actionDoneMsg:
		return m.handleActionDone(msg)
	case clearMessageMsg:
		m.message = ""
		m.error = ""
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
	case "down", "j":
		if m.selectedIndex < len(m.rows)-1 {
			m.selectedIndex++
		}
	case "i":
		return m.startAction("install", m.controller.Install)
	case "u":
		return m.startAction("update", m.controller.Update)
	case "l", "enter":
		return m.startAction("launch", m.controller.Launch)
	case "r":
		return m.startAction("repair", m.controller.Repair)
	}
	return m, nil
}

type action func(ctx context.Context, id string, onProgress func(model.Progress)) error

// startAction runs the action in the background. Progress arrives through
// the controller's event stream, so no callback is passed.
func (m Model) startAction(name string, run action) (tea.Model, tea.Cmd) {
	if len(m.rows) == 0 {
		return m, nil
	}
	id := m.rows[m.selectedIndex].Descriptor.ID
	m.error = ""
	m.message = ""
	ctx := m.ctx
	return m, func() tea.Msg {
		return actionDoneMsg{id: id, action: name, err: run(ctx, id, nil)}
	}
}

func (m *Model) applyState(ev launcher.Event) {
	for i := range m.rows {
		if m.rows[i].Descriptor.ID == ev.ModpackID {
			m.rows[i].State = ev.State
			return
		}
	}
}

func (m Model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		logger.Log.Warnw("Modpack action failed", zap.String("modpack", msg.id), zap.String("action", msg.action), zap.Error(msg.err))
		m.error = describeError(msg.err)
	} else {
		m.message = fmt.Sprintf("%s: %s finished", msg.id, msg.action)
	}
	return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return clearMessageMsg{}
	})
}

// View renders the UI
func (m Model) View() string {
	if len(m.rows) == 0 {
		return "The catalog is empty.\n"
	}

	var output string
	output += renderHeader()
	output += "\n"

	for i, row := range m.rows {
		output += m.renderModpackRow(i, row)
		output += "\n"
	}

	output += "\n" + ui.Footer.Render("↑/k: up  ↓/j: down  i: install  u: update  l/enter: launch  r: repair  q: quit")

	if m.message != "" {
		output += "\n" + ui.Success.Render(m.message)
	}
	if m.error != "" {
		output += "\n" + ui.Failure.Render(m.error)
	}

	return output
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func renderHeader() string {
	return ui.Header.Render(fmt.Sprintf("  %-32s %-12s %-10s %-15s %s", "Modpack", "Version", "Minecraft", "Status", "Progress"))
}

func (m Model) renderModpackRow(index int, row ModpackRow) string {
	style := lipgloss.NewStyle().Padding(0, 1)
	if index == m.selectedIndex {
		style = style.Background(lipgloss.Color("8")).Bold(true)
	}

	indicator := " "
	if row.State.Status.IsBusy() {
		indicator = spinnerFrames[m.spinnerFrame]
	} else if !row.Descriptor.HasArchive() {
		indicator = "⇢" // connect-only server
	}

	var detail string
	switch {
	case row.State.Status.IsBusy() && row.State.Progress.TotalBytes > 0:
		detail = fmt.Sprintf("%3.0f%%", row.State.Progress.Percentage)
	case row.State.Status == model.StatusError:
		detail = truncate(row.State.ErrorMessage, 40)
	case row.Descriptor.ServerIP != "":
		detail = row.Descriptor.ServerIP
	}

	line := fmt.Sprintf("%s %-32s %-12s %-10s %s %s",
		indicator,
		truncate(row.Descriptor.Name, 32),
		truncate(row.Descriptor.Version, 12),
		truncate(row.Descriptor.MinecraftVersion, 10),
		ui.RenderStatus(row.State.Status, 15),
		detail,
	)
	return style.Render(line)
}

// Message types
type stateMsg launcher.Event

type spinnerTickMsg struct{}

type actionDoneMsg struct {
	id     string
	action string
	err    error
}

type clearMessageMsg struct{}

func runGUI() {
	a := bootstrap(configDir)
	defer a.close()

	events, cancel := a.controller.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	m := newModel(ctx, a.controller, a.catalog.List(), events)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Log.Fatalw("Failed to run GUI", zap.Error(err))
	}
}
