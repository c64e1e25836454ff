// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     store
// Description: Bubbletea model for browsing, installing and running apps
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

// Package store implements the App Store terminal UI. It drains the runner
// queue on a fixed timer and never blocks on an operation.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/msto63/appstore/internal/catalog"
	"github.com/msto63/appstore/internal/orchestrator"
	"github.com/msto63/appstore/internal/pyenv"
	"github.com/msto63/appstore/internal/runner"
	"github.com/msto63/appstore/pkg/core/logging"
	"github.com/msto63/appstore/pkg/core/version"
)

const (
	msgSelectFirst = "Please select an application first."
	msgWait        = "Please wait for the current operation to finish."
	msgQuit        = "Do you want to quit?"
	msgUninstall   = "Are you sure you want to uninstall %s (%s)?"

	defaultPollInterval = 100 * time.Millisecond
	defaultMaxLogLines  = 2000
)

// ViewState represents the current view
type ViewState int

const (
	ViewStartup ViewState = iota
	ViewMain
	ViewHelp
)

// dialogKind is the open confirmation dialog, if any
type dialogKind int

const (
	dialogNone dialogKind = iota
	dialogUninstall
	dialogQuit
)

// lineKind selects the style of a log line
type lineKind int

const (
	linePlain lineKind = iota
	lineInfo
	lineError
	lineSuccess
	lineFailed
)

type logLine struct {
	text string
	kind lineKind
}

// Operations starts store operations without blocking
type Operations interface {
	Install(entry catalog.Entry) (orchestrator.Operation, error)
	Uninstall(entry catalog.Entry, confirmed bool) (orchestrator.Operation, error)
	Run(entry catalog.Entry) (orchestrator.Operation, error)
}

// Source is drained on every poll tick
type Source interface {
	Drain() []runner.Message
}

// Config holds everything the model needs
type Config struct {
	Title        string
	Catalog      *catalog.Catalog
	Ops          Operations
	Queue        Source
	Checker      *pyenv.Checker // nil skips the startup check
	StorePackage string
	PollInterval time.Duration
	MaxLogLines  int
}

// Model is the App Store bubbletea model
type Model struct {
	cfg    Config
	keys   keyMap
	logger *logging.Logger

	viewState ViewState
	width     int
	height    int

	// Startup
	checks          []pyenv.Check
	startupComplete bool
	startupOK       bool

	// Catalog selection, -1 until the user picks an entry
	selected int

	// In-flight operation
	busy   bool
	active orchestrator.Operation

	// Confirmation dialog
	dialog  dialogKind
	pending catalog.Entry

	// Catalog search prompt
	search    textinput.Model
	searching bool

	// Log view
	lines      []logLine
	viewport   viewport.Model
	ready      bool
	autoScroll bool

	spinner       spinner.Model
	statusMessage string
	statusExpiry  time.Time
	quitting      bool
}

// Message types
type pollMsg time.Time

type tickMsg time.Time

type startupCompleteMsg struct {
	checks   []pyenv.Check
	ok       bool
	warnings []string
}

// New creates a new store model
func New(cfg Config) Model {
	if cfg.Title == "" {
		cfg.Title = "Gemini App Store"
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxLogLines <= 0 {
		cfg.MaxLogLines = defaultMaxLogLines
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ti := textinput.New()
	ti.Prompt = IconArrow + " Find: "
	ti.Placeholder = "name or package"
	ti.CharLimit = 64

	m := Model{
		cfg:        cfg,
		keys:       defaultKeyMap(),
		logger:     logging.New("tui"),
		viewState:  ViewStartup,
		selected:   -1,
		autoScroll: true,
		spinner:    s,
		search:     ti,
	}
	if cfg.Checker == nil {
		m.viewState = ViewMain
		m.startupComplete = true
		m.startupOK = true
	}

	if cfg.StorePackage != "" {
		m.appendLine(fmt.Sprintf("Note: This app store is designed to be installed from PyPi (package '%s').", cfg.StorePackage), lineInfo)
		m.appendLine(fmt.Sprintf("When you install an application, it will attempt to install '%s' from PyPi first.", cfg.StorePackage), lineInfo)
		m.appendLine("", linePlain)
	}
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.poll()}
	if m.cfg.Checker != nil {
		cmds = append(cmds, m.checkEnvironment)
	}
	return tea.Batch(cmds...)
}

// checkEnvironment runs the environment checks off the UI goroutine
func (m Model) checkEnvironment() tea.Msg {
	c := m.cfg.Checker
	c.CheckAll(context.Background())

	checks := make([]pyenv.Check, len(c.Checks))
	copy(checks, c.Checks)
	return startupCompleteMsg{
		checks:   checks,
		ok:       c.AllRequiredOK(),
		warnings: c.Warnings(),
	}
}

func (m Model) poll() tea.Cmd {
	return tea.Tick(m.cfg.PollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pollMsg:
		if m.quitting {
			return m, nil
		}
		if m.cfg.Queue != nil {
			for _, qm := range m.cfg.Queue.Drain() {
				m.handleMessage(qm)
			}
		}
		return m, m.poll()

	case startupCompleteMsg:
		m.checks = msg.checks
		m.startupComplete = true
		m.startupOK = msg.ok
		for _, w := range msg.warnings {
			m.appendLine("Warning: "+w, lineError)
		}
		if !msg.ok {
			return m, nil
		}
		// Transition to main view after a brief delay
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})

	case tickMsg:
		if m.viewState == ViewStartup && m.startupComplete {
			m.viewState = ViewMain
		}
		return m, nil
	}

	return m, nil
}

// handleMessage applies one queue message to the model
func (m *Model) handleMessage(msg runner.Message) {
	switch msg := msg.(type) {
	case runner.LogLine:
		kind := linePlain
		switch {
		case msg.Stream.IsError():
			kind = lineError
		case msg.Stream == runner.StreamInfo:
			kind = lineInfo
		}
		m.appendLine(msg.Render(), kind)

	case runner.OperationDone:
		kind := lineSuccess
		if !msg.Succeeded() {
			kind = lineFailed
		}
		m.appendLine(msg.Summary(), kind)
		m.appendLine("", linePlain)

	case runner.WorkerFinished:
		m.logger.Debug("Operation finished", "operation", msg.Operation.String())
		m.busy = false
		m.active = orchestrator.Operation{}
	}
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		m.quitting = true
		return m, tea.Quit
	}

	if m.dialog != dialogNone {
		return m.handleDialogKey(msg)
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch m.viewState {
	case ViewStartup:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Continue):
			if m.startupComplete {
				m.viewState = ViewMain
			}
		}

	case ViewMain:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.dialog = dialogQuit

		case key.Matches(msg, m.keys.Up):
			if m.selected > 0 {
				m.selected--
			} else if m.selected < 0 && m.cfg.Catalog.Len() > 0 {
				m.selected = 0
			}

		case key.Matches(msg, m.keys.Down):
			if m.selected < m.cfg.Catalog.Len()-1 {
				m.selected++
			}

		case key.Matches(msg, m.keys.Install):
			m.install()

		case key.Matches(msg, m.keys.Uninstall):
			m.confirmUninstall()

		case key.Matches(msg, m.keys.Run):
			m.run()

		case key.Matches(msg, m.keys.Search):
			m.searching = true
			m.search.SetValue("")
			return m, m.search.Focus()

		case key.Matches(msg, m.keys.Clear):
			m.lines = nil
			m.syncViewport()

		case key.Matches(msg, m.keys.Help):
			m.viewState = ViewHelp

		case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			m.autoScroll = m.viewport.AtBottom()
			return m, cmd
		}

	case ViewHelp:
		switch {
		case key.Matches(msg, m.keys.Help, m.keys.Quit, m.keys.Continue, m.keys.Decline):
			m.viewState = ViewMain
		}
	}

	return m, nil
}

// handleDialogKey answers the open confirmation dialog
func (m Model) handleDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	confirmed := key.Matches(msg, m.keys.Confirm)
	if !confirmed && !key.Matches(msg, m.keys.Decline) {
		return m, nil
	}

	kind := m.dialog
	entry := m.pending
	m.dialog = dialogNone
	m.pending = catalog.Entry{}

	switch kind {
	case dialogQuit:
		if confirmed {
			m.quitting = true
			return m, tea.Quit
		}

	case dialogUninstall:
		op, err := m.cfg.Ops.Uninstall(entry, confirmed)
		if err != nil {
			m.reportError(entry, err)
			return m, nil
		}
		m.markBusy(op)
	}
	return m, nil
}

// handleSearchKey feeds the search prompt until enter or esc
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.find(m.search.Value())
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

// find selects the entry matching query: exact name or package first, then a
// substring of the name, then the closest spelling.
func (m *Model) find(query string) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return
	}

	entries := m.cfg.Catalog.Entries()
	for i, e := range entries {
		if strings.ToLower(e.Name) == query || strings.ToLower(e.Package) == query {
			m.selected = i
			return
		}
	}
	for i, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), query) {
			m.selected = i
			return
		}
	}
	if s := m.cfg.Catalog.Suggest(query, 1); len(s) > 0 {
		for i, e := range entries {
			if e.Name == s[0] {
				m.selected = i
				m.setStatus(fmt.Sprintf("No exact match, selected %s", e.Name))
				return
			}
		}
	}
	m.setStatus(fmt.Sprintf("No application matches %q", query))
}

// selectedEntry returns the selected catalog entry, logging when there is none
func (m *Model) selectedEntry() (catalog.Entry, bool) {
	entry, ok := m.cfg.Catalog.At(m.selected)
	if !ok {
		m.appendLine(msgSelectFirst, lineInfo)
		return catalog.Entry{}, false
	}
	if m.busy {
		m.setStatus(msgWait)
		return catalog.Entry{}, false
	}
	return entry, true
}

func (m *Model) install() {
	entry, ok := m.selectedEntry()
	if !ok {
		return
	}
	op, err := m.cfg.Ops.Install(entry)
	if err != nil {
		m.reportError(entry, err)
		return
	}
	m.markBusy(op)
}

func (m *Model) confirmUninstall() {
	entry, ok := m.selectedEntry()
	if !ok {
		return
	}
	m.pending = entry
	m.dialog = dialogUninstall
}

func (m *Model) run() {
	entry, ok := m.selectedEntry()
	if !ok {
		return
	}
	op, err := m.cfg.Ops.Run(entry)
	if err != nil {
		m.reportError(entry, err)
		return
	}
	m.markBusy(op)
}

// markBusy disables the controls until the operation's WorkerFinished arrives
func (m *Model) markBusy(op orchestrator.Operation) {
	m.logger.Debug("Operation started", "operation", op.Tag.String(), "kind", op.Kind.String())
	m.busy = true
	m.active = op
}

// reportError renders a rejected operation. Controls are left untouched.
func (m *Model) reportError(entry catalog.Entry, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrNotConfirmed):
		m.setStatus("Uninstall cancelled")
	case errors.Is(err, orchestrator.ErrBusy):
		m.setStatus(msgWait)
	case errors.Is(err, orchestrator.ErrNoModule):
		m.appendLine(runner.Errorf("Cannot run %s. No module name specified.", entry.Name).Render(), lineError)
	case errors.Is(err, orchestrator.ErrNoPackage):
		m.appendLine(runner.Errorf("No package name specified for %s.", entry.Name).Render(), lineError)
	default:
		m.logger.Error("Operation rejected", "entry", entry.Name, "error", err)
		m.appendLine(runner.Errorf("%v", err).Render(), lineError)
	}
}

// setStatus sets a temporary status message
func (m *Model) setStatus(msg string) {
	m.statusMessage = msg
	m.statusExpiry = time.Now().Add(3 * time.Second)
}

// appendLine adds a line to the log, dropping the oldest beyond MaxLogLines
func (m *Model) appendLine(text string, kind lineKind) {
	m.lines = append(m.lines, logLine{text: text, kind: kind})
	if over := len(m.lines) - m.cfg.MaxLogLines; over > 0 {
		m.lines = append(m.lines[:0:0], m.lines[over:]...)
	}
	m.syncViewport()
}

// syncViewport refreshes the log viewport content
func (m *Model) syncViewport() {
	if !m.ready {
		return
	}
	rendered := make([]string, len(m.lines))
	for i, l := range m.lines {
		rendered[i] = lineStyle(l.kind).Width(m.viewport.Width).Render(l.text)
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	if m.autoScroll {
		m.viewport.GotoBottom()
	}
}

// resize lays out the log viewport below the header and the catalog list
func (m *Model) resize() {
	// title panel, catalog panel, log border, status and help bars
	used := 3 + (m.cfg.Catalog.Len() + 2) + 2 + 2
	height := m.height - used
	if height < 3 {
		height = 3
	}
	width := m.width - 4
	if width < 10 {
		width = 10
	}

	if !m.ready {
		m.viewport = viewport.New(width, height)
		m.viewport.YPosition = 3 + m.cfg.Catalog.Len() + 2
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = height
	}
	m.syncViewport()
}

// Log returns the plain text of every log line
func (m Model) Log() []string {
	out := make([]string, len(m.lines))
	for i, l := range m.lines {
		out[i] = l.text
	}
	return out
}

// Busy reports whether an operation is in flight
func (m Model) Busy() bool {
	return m.busy
}

// ControlsEnabled reports whether install, uninstall and run are available
func (m Model) ControlsEnabled() bool {
	return m.selected >= 0 && !m.busy
}

// Selected returns the selected catalog entry
func (m Model) Selected() (catalog.Entry, bool) {
	return m.cfg.Catalog.At(m.selected)
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewState {
	case ViewStartup:
		content = m.renderStartup()
	case ViewHelp:
		content = m.renderHelp()
	default:
		content = m.renderMain()
	}

	if m.dialog != dialogNone && m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderDialog())
	}
	if m.dialog != dialogNone {
		return content + "\n\n" + m.renderDialog()
	}
	return content
}

// renderStartup renders the environment check view
func (m Model) renderStartup() string {
	var b strings.Builder

	b.WriteString(LogoStyle.Render(m.cfg.Title))
	b.WriteString("  ")
	b.WriteString(VersionStyle.Render(version.Short()))
	b.WriteString("\n")
	b.WriteString(SubHeaderStyle.Render("Checking the Python environment"))
	b.WriteString("\n\n")

	if !m.startupComplete {
		b.WriteString(m.spinner.View() + " Checking environment...")
		return b.String()
	}

	for _, check := range m.checks {
		icon, style := checkIcon(check.Status)
		name := CheckNameStyle.Render(check.Name)
		status := style.Render(icon + " " + check.Status.String())
		detail := ""
		if check.Version != "" {
			detail = VersionStyle.Render(" " + check.Version)
		} else if check.Message != "" && check.Status != pyenv.StatusOK {
			detail = HelpDescStyle.Render(" " + check.Message)
		}
		required := ""
		if check.Required {
			required = HelpDescStyle.Render(" [required]")
		}
		b.WriteString(CheckStyle.Render(name + status + detail + required))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.startupOK {
		b.WriteString(StatusOKStyle.Render(IconOK + " Python environment OK"))
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("Press ENTER to continue..."))
	} else {
		b.WriteString(StatusFailStyle.Render(IconError + " Python or pip is not available!"))
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("Press ENTER to continue anyway, or q to quit"))
	}
	return b.String()
}

// renderMain renders the catalog, the log and the status bar
func (m Model) renderMain() string {
	var b strings.Builder

	header := TitlePanelStyle.Render(
		LogoStyle.Render(m.cfg.Title) + "  " +
			VersionStyle.Render(version.Short()) + "  " +
			HelpDescStyle.Render(fmt.Sprintf("%d apps", m.cfg.Catalog.Len())),
	)
	b.WriteString(header)
	b.WriteString("\n")

	panelWidth := m.width - 4
	if panelWidth < 20 {
		panelWidth = 20
	}
	b.WriteString(FocusedPanelStyle.Width(panelWidth).Render(m.renderCatalog()))
	b.WriteString("\n")

	logView := strings.Join(m.Log(), "\n")
	if m.ready {
		logView = m.viewport.View()
	}
	b.WriteString(PanelStyle.Width(panelWidth).Render(logView))
	b.WriteString("\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())
	return b.String()
}

// renderCatalog renders one row per catalog entry
func (m Model) renderCatalog() string {
	entries := m.cfg.Catalog.Entries()
	rows := make([]string, 0, len(entries))
	for i, e := range entries {
		icon := IconLibrary
		if e.Runnable() {
			icon = IconRun
		}
		row := icon + " " + AppNameStyle.Render(e.Name) + AppPackageStyle.Render(e.Package)
		if i == m.selected {
			rows = append(rows, AppSelectedStyle.Render(row))
		} else {
			rows = append(rows, AppRowStyle.Render(row))
		}
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderStatusBar() string {
	if m.searching {
		return m.search.View()
	}
	if m.statusMessage != "" && time.Now().Before(m.statusExpiry) {
		return StatusWarnStyle.Render(IconArrow + " " + m.statusMessage)
	}
	if m.busy {
		return BusyStyle.Render(fmt.Sprintf("%s %s %s...", m.spinner.View(), activity(m.active.Kind), m.active.Entry.Name))
	}
	if entry, ok := m.Selected(); ok {
		return StatusOKStyle.Render(IconBullet + " Selected: " + entry.String())
	}
	return HelpStyle.Render(IconBullet + " " + msgSelectFirst)
}

func (m Model) renderHelpBar() string {
	enabled := m.ControlsEnabled()
	runnable := false
	if entry, ok := m.Selected(); ok {
		runnable = entry.Runnable()
	}
	hints := []string{
		hint(m.keys.Up, true),
		hint(m.keys.Down, true),
		hint(m.keys.Install, enabled),
		hint(m.keys.Uninstall, enabled),
		hint(m.keys.Run, enabled && runnable),
		hint(m.keys.Search, true),
		hint(m.keys.Clear, true),
		hint(m.keys.Help, true),
		hint(m.keys.Quit, true),
	}
	return strings.Join(hints, "  ")
}

func (m Model) renderDialog() string {
	var text string
	switch m.dialog {
	case dialogUninstall:
		text = fmt.Sprintf(msgUninstall, m.pending.Name, m.pending.Package)
	case dialogQuit:
		text = msgQuit
	}
	hints := RenderKeyHint(m.keys.Confirm.Help().Key, m.keys.Confirm.Help().Desc) + "  " +
		RenderKeyHint(m.keys.Decline.Help().Key, m.keys.Decline.Help().Desc)
	return DialogStyle.Render(HeaderStyle.Render(text) + "\n\n" + hints)
}

// renderHelp renders the help view
func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(LogoStyle.Render(m.cfg.Title))
	b.WriteString("\n\n")
	b.WriteString(HeaderStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")

	bindings := []key.Binding{
		m.keys.Up, m.keys.Down, m.keys.Install, m.keys.Uninstall, m.keys.Run,
		m.keys.Search, m.keys.Clear, m.keys.PageUp, m.keys.PageDown, m.keys.Help, m.keys.Quit, m.keys.ForceQuit,
	}
	for _, bnd := range bindings {
		h := bnd.Help()
		b.WriteString("  " + HelpKeyStyle.Width(10).Render(h.Key) + HelpDescStyle.Render(h.Desc))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(HelpDescStyle.Render(IconRun + " runnable application   " + IconLibrary + " library only"))
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render("Press ? or ESC to return"))
	return b.String()
}

func lineStyle(kind lineKind) lipgloss.Style {
	switch kind {
	case lineInfo:
		return LogInfoStyle
	case lineError:
		return LogErrorStyle
	case lineSuccess:
		return LogSuccessStyle
	case lineFailed:
		return LogFailedStyle
	default:
		return LogLineStyle
	}
}

func activity(kind orchestrator.Kind) string {
	switch kind {
	case orchestrator.KindUninstall:
		return "Uninstalling"
	case orchestrator.KindRun:
		return "Launching"
	default:
		return "Installing"
	}
}

// Run starts the App Store TUI and blocks until the user quits
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
