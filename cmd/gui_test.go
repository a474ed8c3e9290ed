package cmd

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"luminakraft-launcher/launcher"
	"luminakraft-launcher/model"
)

type fakeController struct {
	mu     sync.Mutex
	states map[string]model.Status
	calls  []string
	err    error
}

func (f *fakeController) Status(id string) (model.RuntimeState, error) {
	st, ok := f.states[id]
	if !ok {
		return model.RuntimeState{}, model.NewError(model.KindNotFound, nil, "modpack %q not found", id)
	}
	return model.RuntimeState{ModpackID: id, Status: st}, nil
}

func (f *fakeController) record(name, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+":"+id)
	return f.err
}

func (f *fakeController) Install(_ context.Context, id string, _ func(model.Progress)) error {
	return f.record("install", id)
}

func (f *fakeController) Update(_ context.Context, id string, _ func(model.Progress)) error {
	return f.record("update", id)
}

func (f *fakeController) Launch(_ context.Context, id string, _ func(model.Progress)) error {
	return f.record("launch", id)
}

func (f *fakeController) Repair(_ context.Context, id string, _ func(model.Progress)) error {
	return f.record("repair", id)
}

func (f *fakeController) Subscribe() (<-chan launcher.Event, func()) {
	ch := make(chan launcher.Event)
	return ch, func() { close(ch) }
}

func testModel(t *testing.T) (Model, *fakeController) {
	t.Helper()
	c := &fakeController{states: map[string]model.Status{
		"zeta":   model.StatusInstalled,
		"alpha":  model.StatusNotInstalled,
		"server": model.StatusNotInstalled,
	}}
	entries := []model.ModpackDescriptor{
		{ID: "zeta", Name: "Zeta Pack", Version: "1.0.0", ArchiveURL: "https://example.com/z.zip"},
		{ID: "alpha", Name: "Alpha Pack", Version: "2.0.0", ArchiveURL: "https://example.com/a.zip"},
		{ID: "server", Name: "Lobby", ServerIP: "play.example.net"},
	}
	return newModel(context.Background(), c, entries, nil), c
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelSortsRowsByName(t *testing.T) {
	m, _ := testModel(t)
	var names []string
	for _, r := range m.rows {
		names = append(names, r.Descriptor.Name)
	}
	if got := strings.Join(names, ","); got != "Alpha Pack,Lobby,Zeta Pack" {
		t.Fatalf("rows = %s", got)
	}
	if m.rows[2].State.Status != model.StatusInstalled {
		t.Errorf("zeta status = %s, want installed", m.rows[2].State.Status)
	}
}

func TestModelNavigation(t *testing.T) {
	m, _ := testModel(t)

	next, _ := m.Update(key("up"))
	m = next.(Model)
	if m.selectedIndex != 0 {
		t.Fatalf("selectedIndex = %d, want 0 at the top", m.selectedIndex)
	}

	for i := 0; i < 5; i++ {
		next, _ = m.Update(key("j"))
		m = next.(Model)
	}
	if m.selectedIndex != 2 {
		t.Fatalf("selectedIndex = %d, want 2 at the bottom", m.selectedIndex)
	}

	next, _ = m.Update(key("k"))
	m = next.(Model)
	if m.selectedIndex != 1 {
		t.Errorf("selectedIndex = %d, want 1", m.selectedIndex)
	}
}

func TestModelActionKeys(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"i", "install:alpha"},
		{"u", "update:alpha"},
		{"l", "launch:alpha"},
		{"enter", "launch:alpha"},
		{"r", "repair:alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m, c := testModel(t)
			_, cmd := m.Update(key(tt.key))
			if cmd == nil {
				t.Fatal("expected a command")
			}
			msg := cmd()
			done, ok := msg.(actionDoneMsg)
			if !ok {
				t.Fatalf("command returned %T", msg)
			}
			if done.err != nil {
				t.Fatalf("unexpected error: %v", done.err)
			}
			if len(c.calls) != 1 || c.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", c.calls, tt.want)
			}
		})
	}
}

func TestModelAppliesEvents(t *testing.T) {
	m, _ := testModel(t)
	ev := launcher.Event{
		ModpackID: "alpha",
		State: model.RuntimeState{
			ModpackID: "alpha",
			Status:    model.StatusInstalling,
			Progress:  model.Progress{DownloadedBytes: 50, TotalBytes: 100, Percentage: 50},
		},
	}
	next, _ := m.Update(stateMsg(ev))
	m = next.(Model)

	if m.rows[0].State.Status != model.StatusInstalling {
		t.Fatalf("status = %s, want installing", m.rows[0].State.Status)
	}
	if view := m.View(); !strings.Contains(view, "50%") {
		t.Errorf("view does not show progress:\n%s", view)
	}
}

func TestModelShowsActionFailure(t *testing.T) {
	m, c := testModel(t)
	c.err = model.NewError(model.KindBusyStateConflict, nil, "cannot update from not_installed")

	_, cmd := m.Update(key("u"))
	next, _ := m.Update(cmd())
	m = next.(Model)

	if !strings.Contains(m.error, "cannot update from not_installed") {
		t.Fatalf("error = %q", m.error)
	}
	if !strings.Contains(m.View(), "cannot update from not_installed") {
		t.Error("view does not show the failure")
	}

	next, _ = m.Update(clearMessageMsg{})
	if next.(Model).error != "" {
		t.Error("error not cleared")
	}
}

func TestModelStatusFailureBecomesErrorRow(t *testing.T) {
	c := &fakeController{states: map[string]model.Status{}}
	m := newModel(context.Background(), c, []model.ModpackDescriptor{{ID: "ghost", Name: "Ghost"}}, nil)
	if m.rows[0].State.Status != model.StatusError {
		t.Errorf("status = %s, want error", m.rows[0].State.Status)
	}
}

func TestModelEmptyCatalog(t *testing.T) {
	m := newModel(context.Background(), &fakeController{}, nil, nil)
	if _, cmd := m.Update(key("i")); cmd != nil {
		t.Error("action on an empty catalog returned a command")
	}
	if view := m.View(); !strings.Contains(view, "empty") {
		t.Errorf("View() = %q", view)
	}
}

func TestWaitForEventClosed(t *testing.T) {
	ch := make(chan launcher.Event)
	close(ch)
	if msg := waitForEvent(ch)(); msg != nil {
		t.Errorf("waitForEvent on a closed channel = %v, want nil", msg)
	}
	if waitForEvent(nil) != nil {
		t.Error("waitForEvent(nil) should not return a command")
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"Hello World", 5, "He..."},
		{"Hi", 5, "Hi"},
		{"Test", 4, "Test"},
		{"LongString", 7, "Long..."},
		{"", 5, ""},
	}

	for _, test := range tests {
		result := truncate(test.input, test.maxLen)
		if result != test.expected {
			t.Fatalf("truncate(%q, %d) = %q, expected %q", test.input, test.maxLen, result, test.expected)
		}
	}
}

var errBoom = errors.New("boom")

func TestProgressModelFlow(t *testing.T) {
	m := initialProgressModel("Installing", "done!", nil)

	next, _ := m.Update(ProgressMsg{Type: "progress", Progress: model.Progress{DownloadedBytes: 512, TotalBytes: 1024, Percentage: 50}})
	m = next.(ProgressModel)
	if m.current.Percentage != 50 || m.status != "Downloading..." {
		t.Fatalf("after progress: %+v %q", m.current, m.status)
	}
	if !strings.Contains(m.View(), "512 B / 1.0 kB") {
		t.Errorf("view missing byte counts:\n%s", m.View())
	}

	next, _ = m.Update(ProgressMsg{Type: "summary", Message: "done!"})
	m = next.(ProgressModel)
	if m.current.Percentage != 100 || m.finished != "done!" {
		t.Fatalf("after summary: %+v %q", m.current, m.finished)
	}

	next, cmd := m.Update(ProgressMsg{Type: "done"})
	m = next.(ProgressModel)
	if !m.done || cmd == nil {
		t.Fatal("done message should finish the model and quit")
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v, want nil", m.Err())
	}
}

func TestProgressModelError(t *testing.T) {
	m := initialProgressModel("Installing", "", nil)
	next, _ := m.Update(ProgressMsg{Type: "error", Message: errBoom.Error()})
	m = next.(ProgressModel)
	if err := m.Err(); err == nil || err.Error() != "boom" {
		t.Fatalf("Err() = %v, want boom", err)
	}
}

func TestProgressModelRunsOperation(t *testing.T) {
	m := initialProgressModel("Installing", "ok", func(onProgress func(model.Progress)) error {
		onProgress(model.Progress{Percentage: 10})
		return errBoom
	})
	m.startOperation()()

	var types []string
	for msg := range m.progressChan {
		types = append(types, msg.Type)
	}
	if got := strings.Join(types, ","); got != "progress,error" {
		t.Errorf("messages = %s, want progress,error", got)
	}
}
