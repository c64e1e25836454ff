package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/msto63/appstore/internal/catalog"
	"github.com/msto63/appstore/internal/orchestrator"
	"github.com/msto63/appstore/internal/pyenv"
	"github.com/msto63/appstore/internal/runner"
)

// scriptedRunner answers invocations with fixed exit codes keyed by their arguments
type scriptedRunner struct {
	sink  runner.Sink
	codes map[string]int

	mu       sync.Mutex
	calls    []string
	launched []string
}

func (r *scriptedRunner) Run(_ context.Context, inv runner.Invocation) runner.Result {
	args := strings.Join(inv.Args, " ")
	r.mu.Lock()
	r.calls = append(r.calls, args)
	code := r.codes[args]
	r.mu.Unlock()

	r.sink.Push(runner.LogLine{Text: "output of " + args, Stream: runner.StreamStdout})
	r.sink.Push(runner.OperationDone{Tag: inv.Tag, ExitCode: code})
	return runner.Result{Tag: inv.Tag, ExitCode: code}
}

func (r *scriptedRunner) Launch(inv runner.Invocation) (int, error) {
	r.mu.Lock()
	r.launched = append(r.launched, strings.Join(inv.Args, " "))
	r.mu.Unlock()
	return 4242, nil
}

func (r *scriptedRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// fakeOps records operations without running anything
type fakeOps struct {
	installs   []catalog.Entry
	uninstalls []bool
	runs       []catalog.Entry
	err        error
}

func (f *fakeOps) Install(entry catalog.Entry) (orchestrator.Operation, error) {
	f.installs = append(f.installs, entry)
	if f.err != nil {
		return orchestrator.Operation{}, f.err
	}
	return orchestrator.Operation{Tag: runner.NewTag(entry.Package), Kind: orchestrator.KindInstall, Entry: entry}, nil
}

func (f *fakeOps) Uninstall(entry catalog.Entry, confirmed bool) (orchestrator.Operation, error) {
	f.uninstalls = append(f.uninstalls, confirmed)
	if !confirmed {
		return orchestrator.Operation{}, orchestrator.ErrNotConfirmed
	}
	return orchestrator.Operation{Tag: runner.NewTag(entry.Package), Kind: orchestrator.KindUninstall, Entry: entry}, nil
}

func (f *fakeOps) Run(entry catalog.Entry) (orchestrator.Operation, error) {
	f.runs = append(f.runs, entry)
	if !entry.Runnable() {
		return orchestrator.Operation{}, fmt.Errorf("run %s: %w", entry.Name, orchestrator.ErrNoModule)
	}
	return orchestrator.Operation{Tag: runner.NewTag(entry.Package), Kind: orchestrator.KindRun, Entry: entry}, nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Entry{
		{Name: "X", Package: "x-pkg", Module: "x_mod"},
		{Name: "Lib", Package: "lib-pkg"},
	})
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	return c
}

func newTestModel(t *testing.T, ops Operations, q *runner.Queue) Model {
	t.Helper()
	return New(Config{
		Catalog:      testCatalog(t),
		Ops:          ops,
		Queue:        q,
		PollInterval: time.Millisecond,
	})
}

func press(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func pressAll(m Model, keys ...string) Model {
	for _, k := range keys {
		m, _ = press(m, k)
	}
	return m
}

func poll(m Model) (Model, tea.Cmd) {
	updated, cmd := m.Update(pollMsg(time.Now()))
	return updated.(Model), cmd
}

func countContaining(lines []string, substr string) int {
	n := 0
	for _, l := range lines {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func TestNew(t *testing.T) {
	m := New(Config{Catalog: testCatalog(t), StorePackage: "store_pkg"})

	if m.viewState != ViewMain {
		t.Errorf("viewState = %v, want ViewMain without checker", m.viewState)
	}
	if _, ok := m.Selected(); ok {
		t.Error("Selected() ok = true, want no initial selection")
	}
	if m.ControlsEnabled() {
		t.Error("ControlsEnabled() = true, want false without selection")
	}
	if countContaining(m.Log(), "'store_pkg'") != 2 {
		t.Errorf("Log() = %v, want two store notes", m.Log())
	}
}

func TestSelection(t *testing.T) {
	m := newTestModel(t, &fakeOps{}, runner.NewQueue())

	tests := []struct {
		key  string
		want string
	}{
		{"down", "X"},
		{"j", "Lib"},
		{"j", "Lib"},
		{"k", "X"},
		{"up", "X"},
	}

	for _, tt := range tests {
		m, _ = press(m, tt.key)
		entry, ok := m.Selected()
		if !ok || entry.Name != tt.want {
			t.Errorf("after %q Selected() = %v, %v, want %s", tt.key, entry.Name, ok, tt.want)
		}
	}
	if !m.ControlsEnabled() {
		t.Error("ControlsEnabled() = false, want true with selection")
	}
}

func TestActionsWithoutSelection(t *testing.T) {
	for _, k := range []string{"i", "u", "r"} {
		t.Run(k, func(t *testing.T) {
			ops := &fakeOps{}
			m := newTestModel(t, ops, runner.NewQueue())

			m, _ = press(m, k)

			if countContaining(m.Log(), msgSelectFirst) != 1 {
				t.Errorf("Log() = %v, want %q", m.Log(), msgSelectFirst)
			}
			if len(ops.installs)+len(ops.uninstalls)+len(ops.runs) != 0 {
				t.Error("operation started without selection")
			}
			if m.dialog != dialogNone {
				t.Errorf("dialog = %v, want none", m.dialog)
			}
		})
	}
}

func TestPoll_RendersMessages(t *testing.T) {
	q := runner.NewQueue()
	m := newTestModel(t, &fakeOps{}, q)
	tag := runner.NewTag("x-pkg")

	q.Push(runner.LogLine{Text: "Collecting x-pkg", Stream: runner.StreamStdout})
	q.Push(runner.LogLine{Text: "WARNING: cache disabled", Stream: runner.StreamStderr})
	q.Push(runner.LogLine{Text: "Successfully installed x-pkg", Stream: runner.StreamStdout})
	q.Push(runner.OperationDone{Tag: tag, ExitCode: 0})

	m, cmd := poll(m)
	if cmd == nil {
		t.Error("poll returned nil cmd, want rescheduled tick")
	}

	want := []string{
		"Collecting x-pkg",
		"[ERROR] WARNING: cache disabled",
		"Successfully installed x-pkg",
		"Operation on x-pkg SUCCESS (Return Code: 0).",
		"",
	}
	got := m.Log()
	if len(got) != len(want) {
		t.Fatalf("Log() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Log()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if q.Len() != 0 {
		t.Errorf("queue Len() = %v, want 0 after poll", q.Len())
	}
}

func TestInstall_DisablesControlsUntilWorkerFinished(t *testing.T) {
	q := runner.NewQueue()
	ops := &fakeOps{}
	m := newTestModel(t, ops, q)

	m = pressAll(m, "down", "i")
	if len(ops.installs) != 1 {
		t.Fatalf("installs = %v, want 1", len(ops.installs))
	}
	if m.ControlsEnabled() {
		t.Error("ControlsEnabled() = true while operation in flight")
	}

	// A second request while busy is rejected locally
	m, _ = press(m, "i")
	if len(ops.installs) != 1 {
		t.Errorf("installs = %v, want 1 while busy", len(ops.installs))
	}
	if m.statusMessage != msgWait {
		t.Errorf("statusMessage = %q, want %q", m.statusMessage, msgWait)
	}

	// OperationDone alone keeps the controls disabled
	q.Push(runner.OperationDone{Tag: m.active.Tag, ExitCode: 0})
	m, _ = poll(m)
	if m.ControlsEnabled() {
		t.Error("ControlsEnabled() = true before WorkerFinished")
	}

	q.Push(runner.WorkerFinished{Operation: m.active.Tag})
	m, _ = poll(m)
	if !m.ControlsEnabled() {
		t.Error("ControlsEnabled() = false after WorkerFinished")
	}
}

// waitIdle polls until the in-flight operation has finished
func waitIdle(t *testing.T, m Model) Model {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for m.Busy() {
		if time.Now().After(deadline) {
			t.Fatalf("operation did not finish, log: %q", m.Log())
		}
		time.Sleep(5 * time.Millisecond)
		m, _ = poll(m)
	}
	return m
}

func TestInstallScenario(t *testing.T) {
	tests := []struct {
		name        string
		upgradeCode int
		wantCalls   []string
		wantSuccess int
		wantFailed  int
	}{
		{
			name:        "upgrade succeeds",
			upgradeCode: 0,
			wantCalls:   []string{"-m pip install --upgrade store_pkg", "-m pip install x-pkg"},
			wantSuccess: 2,
		},
		{
			name:        "upgrade fails",
			upgradeCode: 1,
			wantCalls:   []string{"-m pip install --upgrade store_pkg"},
			wantFailed:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := runner.NewQueue()
			r := &scriptedRunner{sink: q, codes: map[string]int{
				"-m pip install --upgrade store_pkg": tt.upgradeCode,
			}}
			orch := orchestrator.New(context.Background(), orchestrator.Config{
				Interpreter:  "python3",
				StorePackage: "store_pkg",
			}, r, q)

			m := newTestModel(t, orch, q)
			m = pressAll(m, "down", "i")
			if !m.Busy() {
				t.Fatal("Busy() = false after install")
			}

			m = waitIdle(t, m)

			calls := r.Calls()
			if strings.Join(calls, "|") != strings.Join(tt.wantCalls, "|") {
				t.Errorf("calls = %q, want %q", calls, tt.wantCalls)
			}
			if n := countContaining(m.Log(), "SUCCESS (Return Code: 0)"); n != tt.wantSuccess {
				t.Errorf("SUCCESS summaries = %v, want %v; log: %q", n, tt.wantSuccess, m.Log())
			}
			if n := countContaining(m.Log(), "FAILED (Return Code: 1)"); n != tt.wantFailed {
				t.Errorf("FAILED summaries = %v, want %v; log: %q", n, tt.wantFailed, m.Log())
			}
			if !m.ControlsEnabled() {
				t.Error("ControlsEnabled() = false at the end of the operation")
			}
		})
	}
}

func TestUninstall_Declined(t *testing.T) {
	for _, k := range []string{"n", "esc"} {
		t.Run(k, func(t *testing.T) {
			q := runner.NewQueue()
			r := &scriptedRunner{sink: q}
			orch := orchestrator.New(context.Background(), orchestrator.Config{}, r, q)

			m := newTestModel(t, orch, q)
			m = pressAll(m, "down", "u")
			if m.dialog != dialogUninstall {
				t.Fatalf("dialog = %v, want uninstall confirmation", m.dialog)
			}
			if !strings.Contains(m.View(), "Are you sure you want to uninstall X (x-pkg)?") {
				t.Error("View() does not show the uninstall confirmation")
			}

			m, _ = press(m, k)
			m, _ = poll(m)

			if m.dialog != dialogNone {
				t.Errorf("dialog = %v, want closed", m.dialog)
			}
			if len(r.Calls()) != 0 {
				t.Errorf("calls = %q, want none", r.Calls())
			}
			if !m.ControlsEnabled() {
				t.Error("ControlsEnabled() = false, want prior state")
			}
		})
	}
}

func TestUninstall_Confirmed(t *testing.T) {
	ops := &fakeOps{}
	m := newTestModel(t, ops, runner.NewQueue())

	m = pressAll(m, "down", "u", "x")
	if m.dialog != dialogUninstall {
		t.Error("unrelated key closed the dialog")
	}

	m, _ = press(m, "y")
	if len(ops.uninstalls) != 1 || !ops.uninstalls[0] {
		t.Fatalf("uninstalls = %v, want one confirmed call", ops.uninstalls)
	}
	if !m.Busy() {
		t.Error("Busy() = false after confirmed uninstall")
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		wantBusy bool
		wantLog  string
	}{
		{
			name:     "runnable entry",
			keys:     []string{"down", "r"},
			wantBusy: true,
		},
		{
			name:     "library entry",
			keys:     []string{"down", "down", "r"},
			wantBusy: false,
			wantLog:  "[ERROR] Cannot run Lib. No module name specified.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := &fakeOps{}
			m := pressAll(newTestModel(t, ops, runner.NewQueue()), tt.keys...)

			if len(ops.runs) != 1 {
				t.Fatalf("runs = %v, want 1", len(ops.runs))
			}
			if m.Busy() != tt.wantBusy {
				t.Errorf("Busy() = %v, want %v", m.Busy(), tt.wantBusy)
			}
			if tt.wantLog != "" && countContaining(m.Log(), tt.wantLog) != 1 {
				t.Errorf("Log() = %q, want %q", m.Log(), tt.wantLog)
			}
		})
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, &fakeOps{}, runner.NewQueue())

	m, cmd := press(m, "q")
	if cmd != nil || m.dialog != dialogQuit {
		t.Fatalf("q: dialog = %v, want quit confirmation", m.dialog)
	}
	if !strings.Contains(m.View(), msgQuit) {
		t.Error("View() does not show the quit confirmation")
	}

	m, cmd = press(m, "n")
	if cmd != nil || m.quitting {
		t.Fatal("declined quit still quits")
	}

	m = pressAll(m, "q")
	m, cmd = press(m, "y")
	if cmd == nil || !m.quitting {
		t.Fatal("confirmed quit did not quit")
	}

	if _, cmd := poll(m); cmd != nil {
		t.Error("poll rescheduled after quitting")
	}
}

func TestForceQuit(t *testing.T) {
	m := newTestModel(t, &fakeOps{}, runner.NewQueue())

	m, cmd := press(m, "ctrl+c")
	if cmd == nil || !m.quitting {
		t.Error("ctrl+c did not quit")
	}
	if m.View() != "" {
		t.Errorf("View() = %q, want empty after quitting", m.View())
	}
}

func TestClearAndCap(t *testing.T) {
	q := runner.NewQueue()
	m := New(Config{Catalog: testCatalog(t), Queue: q, MaxLogLines: 3})

	for i := 0; i < 5; i++ {
		q.Push(runner.Info("line %d", i))
	}
	m, _ = poll(m)

	got := m.Log()
	if len(got) != 3 || got[0] != "line 2" || got[2] != "line 4" {
		t.Errorf("Log() = %q, want the newest three lines", got)
	}

	m, _ = press(m, "c")
	if len(m.Log()) != 0 {
		t.Errorf("Log() = %q, want empty after clear", m.Log())
	}
}

func TestHelpView(t *testing.T) {
	m := newTestModel(t, &fakeOps{}, runner.NewQueue())

	m, _ = press(m, "?")
	if m.viewState != ViewHelp {
		t.Fatalf("viewState = %v, want ViewHelp", m.viewState)
	}
	if !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Error("help view missing title")
	}

	m, _ = press(m, "esc")
	if m.viewState != ViewMain {
		t.Errorf("viewState = %v, want ViewMain", m.viewState)
	}
}

func TestStartup(t *testing.T) {
	failing := func(ctx context.Context, name string, args ...string) (string, error) {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}

	tests := []struct {
		name     string
		ok       bool
		wantView ViewState
		wantCmd  bool
	}{
		{"required checks pass", true, ViewStartup, true},
		{"required checks fail", false, ViewStartup, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := pyenv.NewChecker(pyenv.Config{Interpreter: "python3", RunCmd: failing})
			m := New(Config{Catalog: testCatalog(t), Checker: checker})
			if m.viewState != ViewStartup {
				t.Fatalf("viewState = %v, want ViewStartup", m.viewState)
			}

			updated, cmd := m.Update(startupCompleteMsg{
				checks:   checker.Checks,
				ok:       tt.ok,
				warnings: []string{"Virtual Environment: not running in a virtual environment"},
			})
			m = updated.(Model)

			if m.viewState != tt.wantView {
				t.Errorf("viewState = %v, want %v", m.viewState, tt.wantView)
			}
			if (cmd != nil) != tt.wantCmd {
				t.Errorf("cmd = %v, want scheduled transition %v", cmd != nil, tt.wantCmd)
			}
			if countContaining(m.Log(), "Warning: Virtual Environment") != 1 {
				t.Errorf("Log() = %q, want the virtual environment warning", m.Log())
			}

			if tt.ok {
				updated, _ = m.Update(tickMsg(time.Now()))
				m = updated.(Model)
			} else {
				m, _ = press(m, "enter")
			}
			if m.viewState != ViewMain {
				t.Errorf("viewState = %v, want ViewMain", m.viewState)
			}
		})
	}
}

func TestView_AfterResize(t *testing.T) {
	q := runner.NewQueue()
	m := newTestModel(t, &fakeOps{}, q)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = updated.(Model)
	q.Push(runner.Info("hello from the log"))
	m, _ = poll(m)
	m, _ = press(m, "down")

	view := m.View()
	for _, want := range []string{"Gemini App Store", "x-pkg", "hello from the log", "Selected: X (x-pkg)"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		want       string
		wantStatus string
	}{
		{"exact name", "lib", "Lib", ""},
		{"package", "x-pkg", "X", ""},
		{"misspelled", "lob", "Lib", "No exact match, selected Lib"},
		{"no match", "something else", "", `No application matches "something else"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, &fakeOps{}, runner.NewQueue())

			m, _ = press(m, "/")
			if !m.searching {
				t.Fatal("searching = false after /")
			}
			// Keys go to the prompt, not to the actions
			m = pressAll(m, strings.Split(tt.query, "")...)
			m, _ = press(m, "enter")

			if m.searching {
				t.Error("searching = true after enter")
			}
			entry, ok := m.Selected()
			if tt.want == "" {
				if ok {
					t.Errorf("Selected() = %v, want none", entry.Name)
				}
			} else if !ok || entry.Name != tt.want {
				t.Errorf("Selected() = %v, want %v", entry.Name, tt.want)
			}
			if m.statusMessage != tt.wantStatus {
				t.Errorf("statusMessage = %q, want %q", m.statusMessage, tt.wantStatus)
			}
		})
	}
}

func TestSearch_Cancel(t *testing.T) {
	ops := &fakeOps{}
	m := newTestModel(t, ops, runner.NewQueue())

	m = pressAll(m, "/", "i", "esc")
	if m.searching {
		t.Error("searching = true after esc")
	}
	if len(ops.installs) != 0 {
		t.Error("typing in the search prompt started an install")
	}
	if _, ok := m.Selected(); ok {
		t.Error("cancelled search changed the selection")
	}
}
