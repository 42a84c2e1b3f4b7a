// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Interactive dashboard for connected accounts, collection state and run history
package tui

import (
	"context"
	"database/sql"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/mirrorsync/models"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewCollections ViewMode = iota
	ViewRuns
)

// SyncFunc performs one mirror run of a collection.
type SyncFunc func(ctx context.Context, collection string, dryRun bool) (*models.RunResult, error)

// Model is the main bubbletea model
type Model struct {
	db       *sql.DB
	run      SyncFunc
	viewMode ViewMode

	// Collections view state
	selected   int
	dryRun     bool
	inProgress map[string]bool
	accounts   []AccountDisplay
	states     []StateDisplay
	messages   []string

	// Runs view state
	runs table.Model

	// UI state
	width  int
	height int
	err    error
}

// NewModel creates a new TUI model. run may be nil, which disables syncing.
func NewModel(database *sql.DB, run SyncFunc) Model {
	m := Model{
		db:         database,
		run:        run,
		viewMode:   ViewCollections,
		inProgress: map[string]bool{},
		runs:       newRunsTable(),
		width:      80,
		height:     24,
	}
	m.refresh()
	return m
}

// Run starts the dashboard in the alternate screen and blocks until it exits.
func Run(database *sql.DB, run SyncFunc) error {
	_, err := tea.NewProgram(NewModel(database, run), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.runs.SetHeight(max(msg.Height-8, 5))
		return m, nil
	case SyncCompleteMsg:
		m.handleSyncComplete(msg)
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewCollections:
		return m.renderSyncView()
	case ViewRuns:
		return m.renderRunsView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.viewMode == ViewCollections {
			m.viewMode = ViewRuns
			m.loadRuns()
		} else {
			m.viewMode = ViewCollections
		}
		return m, nil
	}

	// Delegate to view-specific handlers
	switch m.viewMode {
	case ViewCollections:
		return m.handleSyncKeys(msg)
	case ViewRuns:
		return m.handleRunsKeys(msg)
	}

	return m, nil
}

// refresh reloads everything shown on screen from the database.
func (m *Model) refresh() {
	m.err = nil
	m.loadAccounts()
	m.loadSyncStates()
	m.loadRuns()
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)
)
