package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/five82/tabby/internal/breed"
	"github.com/five82/tabby/internal/coord"
	"github.com/five82/tabby/internal/logging"
	"github.com/five82/tabby/internal/logtail"
	"github.com/five82/tabby/internal/prefs"
	"github.com/five82/tabby/internal/view"
)

// Options configures the UI.
type Options struct {
	Context     context.Context
	Coordinator *coord.Coordinator
	List        *view.ListScreen
	ThemeName   string
	PrefsPath   string
	LogPath     string // tabby's own log file, shown by the log view
	Logger      *log.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	coord     *coord.Coordinator
	prefsPath string
	logger    *log.Logger

	// UI state
	theme    Theme
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	width    int
	height   int
	ready    bool
	showHelp bool

	// List state
	list     *view.ListScreen
	listView view.ListState
	selected int

	// Search input
	searching bool
	input     textinput.Model

	// Detail state; detail is nil while the list is shown
	detail         *view.DetailScreen
	detailView     view.DetailState
	detailViewport viewport.Model

	// Log view
	logPath     string
	showLogs    bool
	logMinLevel log.Level
	logEntries  []logtail.Entry
	logErr      error
	logViewport viewport.Model
}

// listStateMsg carries a new list frame.
type listStateMsg view.ListState

// detailStateMsg carries a frame of the detail screen it came from.
type detailStateMsg struct {
	screen *view.DetailScreen
	state  view.DetailState
}

// logsMsg carries a fresh read of the log file.
type logsMsg struct {
	entries []logtail.Entry
	err     error
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Dracula"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	input := textinput.New()
	input.Prompt = "/ "
	input.Placeholder = "breed name"
	input.CharLimit = 64

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := Model{
		ctx:       ctx,
		coord:     opts.Coordinator,
		prefsPath: prefsPath,
		logger:    logging.OrDiscard(opts.Logger),
		theme:     GetTheme(themeName),
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   spin,
		list:      opts.List,
		input:     input,
		logPath:   opts.LogPath,

		logMinLevel: log.InfoLevel,
	}
	if m.list != nil {
		m.listView = m.list.State()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		m.spinner.Tick,
	}
	if m.list != nil {
		cmds = append(cmds, waitForList(m.list.Updates()))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.detailViewport = viewport.New(msg.Width, m.bodyHeight())
			m.logViewport = viewport.New(msg.Width, m.bodyHeight())
		}
		m.ready = true
		m.detailViewport.Width = msg.Width
		m.detailViewport.Height = m.bodyHeight()
		m.logViewport.Width = msg.Width
		m.logViewport.Height = m.bodyHeight()
		m.updateDetailViewport()
		m.updateLogViewport()
		return m, nil

	case logsMsg:
		m.logEntries = msg.entries
		m.logErr = msg.err
		m.updateLogViewport()
		m.logViewport.GotoBottom()
		return m, nil

	case listStateMsg:
		m.listView = view.ListState(msg)
		m.clampSelection()
		return m, waitForList(m.list.Updates())

	case detailStateMsg:
		// Frames of a screen that was already closed are dropped.
		if msg.screen != m.detail {
			return m, nil
		}
		m.detailView = msg.state
		m.updateDetailViewport()
		return m, waitForDetail(msg.screen)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.savePrefs()
		m.closeDetail()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		m.updateDetailViewport()
		m.updateLogViewport()
		return m, nil

	case key.Matches(msg, m.keys.Logs):
		m.showLogs = !m.showLogs
		if m.showLogs {
			return m, loadLogs(m.logPath, m.logMinLevel)
		}
		return m, nil
	}

	if m.showLogs {
		return m.handleLogsKey(msg)
	}
	if m.detail != nil {
		return m.handleDetailKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selected = len(m.listView.Items) - 1
		m.clampSelection()

	case key.Matches(msg, m.keys.Open):
		b, ok := m.selectedBreed()
		if !ok {
			return m, nil
		}
		return m.openDetail(b.ID)

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.input.SetValue(m.listView.Query)
		m.input.CursorEnd()
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.ClearSearch), key.Matches(msg, m.keys.Back):
		if m.list != nil && m.listView.Query != "" {
			m.list.ClearSearch()
			m.listView = m.list.State()
			m.selected = 0
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.list != nil {
			m.list.Refresh()
		}

	case key.Matches(msg, m.keys.Prefetch):
		if m.coord != nil {
			m.coord.Prefetch(m.visibleIDs()...)
		}
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.savePrefs()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Confirm):
		m.searching = false
		m.input.Blur()
		if m.list != nil {
			m.list.Search(m.input.Value())
			m.listView = m.list.State()
		}
		m.selected = 0
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		m.searching = false
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.closeDetail()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.detail.Retry()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.detailViewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.detailViewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.showLogs = false
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, loadLogs(m.logPath, m.logMinLevel)

	case key.Matches(msg, m.keys.LogLevel):
		m.logMinLevel = nextLogLevel(m.logMinLevel)
		return m, loadLogs(m.logPath, m.logMinLevel)

	case key.Matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	return m, cmd
}

func (m Model) openDetail(id string) (tea.Model, tea.Cmd) {
	if m.coord == nil {
		return m, nil
	}
	m.closeDetail()
	m.detail = view.OpenDetail(m.ctx, m.coord, id)
	m.detailView = m.detail.State()
	m.detailViewport.GotoTop()
	m.updateDetailViewport()
	m.logger.Debug("detail opened", "breed_id", id)
	return m, waitForDetail(m.detail)
}

// closeDetail detaches the detail screen. Its fetch keeps running.
func (m *Model) closeDetail() {
	if m.detail == nil {
		return
	}
	m.detail.Close()
	m.detail = nil
	m.detailView = view.DetailState{}
}

func (m *Model) moveSelection(delta int) {
	m.selected += delta
	m.clampSelection()
}

func (m *Model) clampSelection() {
	n := len(m.listView.Items)
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m Model) selectedBreed() (breed.Breed, bool) {
	if m.selected < 0 || m.selected >= len(m.listView.Items) {
		return breed.Breed{}, false
	}
	return m.listView.Items[m.selected], true
}

// visibleIDs returns the ids of the rows currently on screen.
func (m Model) visibleIDs() []string {
	start, end := m.listWindow()
	ids := make([]string, 0, end-start)
	for _, b := range m.listView.Items[start:end] {
		ids = append(ids, b.ID)
	}
	return ids
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	p := prefs.Prefs{Theme: m.theme.Name, LastQuery: m.listView.Query}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.logger.Warn("save preferences failed", "path", m.prefsPath, "error", err)
	}
}

func (m *Model) updateDetailViewport() {
	if !m.ready || m.detail == nil {
		return
	}
	m.detailViewport.SetContent(m.renderDetailBody(m.detailViewport.Width))
}

func (m *Model) updateLogViewport() {
	if !m.ready {
		return
	}
	m.logViewport.SetContent(m.renderLogBody())
}

// logLevels is the cycle of the log view's minimum level.
var logLevels = []log.Level{log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel}

func nextLogLevel(current log.Level) log.Level {
	for i, lvl := range logLevels {
		if lvl == current {
			return logLevels[(i+1)%len(logLevels)]
		}
	}
	return log.InfoLevel
}

// loadLogs reads the tail of the log file off the update loop.
func loadLogs(path string, minLevel log.Level) tea.Cmd {
	return func() tea.Msg {
		if path == "" {
			return logsMsg{}
		}
		entries, err := logtail.Tail(path, logTailLines, minLevel)
		return logsMsg{entries: entries, err: err}
	}
}

// waitForList blocks until the list screen publishes a frame.
func waitForList(ch <-chan view.ListState) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return listStateMsg(st)
	}
}

// waitForDetail blocks until screen publishes a frame or closes.
func waitForDetail(screen *view.DetailScreen) tea.Cmd {
	ch := screen.Updates()
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return detailStateMsg{screen: screen, state: st}
	}
}
