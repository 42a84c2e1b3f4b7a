// ABOUTME: TUI view for account connections and per-collection sync state
// ABOUTME: Displays sync states and allows triggering mirror runs for calendar and contacts
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/mirrorsync/db"
	"github.com/harperreed/mirrorsync/models"
)

var (
	syncServiceStyle = lipgloss.NewStyle().
				Bold(true).
				Width(12)

	syncIdleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	syncSyncingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)

	syncErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	syncSelectedStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235")).
				Foreground(lipgloss.Color("255")).
				Bold(true)

	syncMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)
)

// collections lists what the dashboard can mirror, in display order.
var collections = []string{models.CollectionCalendar, models.CollectionContacts, models.CollectionMaps}

// SyncCompleteMsg is sent when a mirror run completes.
type SyncCompleteMsg struct {
	Collection string
	Result     *models.RunResult
	Error      error
}

// AccountDisplay is one connected (or missing) account.
type AccountDisplay struct {
	Role      models.Role
	Connected bool
	Email     string
}

// StateDisplay is one collection's sync state, formatted for display.
type StateDisplay struct {
	Collection   string
	Status       string
	LastSyncTime string
	ErrorMessage string
}

func (m Model) renderSyncView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Google Account Mirror"))
	s.WriteString("\n\n")

	s.WriteString(headerStyle.Render("Accounts"))
	s.WriteString("\n\n")
	for _, account := range m.accounts {
		s.WriteString("  ")
		s.WriteString(syncServiceStyle.Render(capitalize(string(account.Role))))
		switch {
		case !account.Connected:
			s.WriteString(syncErrorStyle.Render("  ✗ Not connected"))
			s.WriteString(syncMessageStyle.Render(fmt.Sprintf(" • run 'mirrorsync auth %s'", account.Role)))
		case account.Email != "":
			s.WriteString(syncIdleStyle.Render("  ✓ " + account.Email))
		default:
			s.WriteString(syncIdleStyle.Render("  ✓ Connected"))
		}
		s.WriteString("\n")
	}
	s.WriteString("\n")

	s.WriteString(headerStyle.Render("Collections"))
	s.WriteString("\n\n")
	for i, collection := range collections {
		var row strings.Builder

		// Selection indicator
		if i == m.selected {
			row.WriteString("▶ ")
		} else {
			row.WriteString("  ")
		}

		name := capitalize(collection)
		if i == m.selected {
			row.WriteString(syncSelectedStyle.Render(syncServiceStyle.Render(name)))
		} else {
			row.WriteString(syncServiceStyle.Render(name))
		}

		state := m.stateFor(collection)
		switch {
		case collection == models.CollectionMaps:
			row.WriteString(syncMessageStyle.Render("  Not available (no Google API)"))
		case m.inProgress[collection] || (state != nil && state.Status == db.StateSyncing):
			row.WriteString(syncSyncingStyle.Render("  ⟳ Syncing..."))
		case state == nil:
			row.WriteString(syncMessageStyle.Render("  Not synced yet"))
		case state.Status == db.StateError:
			row.WriteString(syncErrorStyle.Render("  ✗ Error"))
			if state.ErrorMessage != "" {
				row.WriteString(syncErrorStyle.Render(": " + state.ErrorMessage))
			}
		default:
			row.WriteString(syncIdleStyle.Render("  ✓ Idle"))
			if state.LastSyncTime != "" {
				row.WriteString(syncMessageStyle.Render(" • Last synced " + state.LastSyncTime))
			}
		}

		s.WriteString(row.String())
		s.WriteString("\n")
	}
	s.WriteString("\n")

	if m.dryRun {
		s.WriteString(syncSyncingStyle.Render("Dry run: runs count but do not write"))
		s.WriteString("\n\n")
	}

	// Recent messages
	if len(m.messages) > 0 {
		s.WriteString(headerStyle.Render("Recent Activity"))
		s.WriteString("\n\n")
		start := 0
		if len(m.messages) > 5 {
			start = len(m.messages) - 5
		}
		for i := start; i < len(m.messages); i++ {
			s.WriteString(syncMessageStyle.Render("  " + m.messages[i]))
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	if m.err != nil {
		s.WriteString(syncErrorStyle.Render("Error: " + m.err.Error()))
		s.WriteString("\n")
	}

	s.WriteString(m.renderSyncHelp())
	return s.String()
}

func (m Model) renderSyncHelp() string {
	help := []string{
		"↑/↓: Select collection",
		"Enter: Sync selected",
		"a: Sync all",
		"d: Toggle dry run",
		"r: Refresh",
		"Tab: Run history",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) stateFor(collection string) *StateDisplay {
	for i := range m.states {
		if m.states[i].Collection == collection {
			return &m.states[i]
		}
	}
	return nil
}

func (m *Model) loadAccounts() {
	m.accounts = nil
	for _, role := range []models.Role{models.RoleSource, models.RoleDestination} {
		display := AccountDisplay{Role: role}
		cred, err := db.GetCredential(context.Background(), m.db, role)
		switch {
		case errors.Is(err, models.ErrCredentialNotFound):
		case err != nil:
			m.err = err
		default:
			display.Connected = cred.RefreshToken != ""
			display.Email = cred.Email
		}
		m.accounts = append(m.accounts, display)
	}
}

func (m *Model) loadSyncStates() {
	states, err := db.GetAllSyncStates(m.db)
	if err != nil {
		m.err = err
		m.states = nil
		return
	}

	m.states = make([]StateDisplay, 0, len(states))
	for _, state := range states {
		display := StateDisplay{
			Collection: state.Collection,
			Status:     state.Status,
		}
		if state.LastSyncTime != nil {
			display.LastSyncTime = formatTimeSince(*state.LastSyncTime)
		}
		if state.ErrorMessage != nil {
			display.ErrorMessage = *state.ErrorMessage
		}
		m.states = append(m.states, display)
	}
}

func (m Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(collections)-1 {
			m.selected++
		}
	case "enter":
		cmd := m.startSync(collections[m.selected])
		return m, cmd
	case "a":
		var cmds []tea.Cmd
		for _, collection := range collections {
			if collection == models.CollectionMaps {
				continue
			}
			if cmd := m.startSync(collection); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		batch := tea.Batch(cmds...)
		return m, batch
	case "d":
		m.dryRun = !m.dryRun
	case "r":
		m.refresh()
	}

	return m, nil
}

// startSync marks collection as running and returns the command that runs it.
// State changes happen here, before the command executes.
func (m *Model) startSync(collection string) tea.Cmd {
	if collection == models.CollectionMaps {
		m.addMessage("✗ maps sync is not available: Google has no API for saved places")
		return nil
	}
	if m.run == nil {
		m.addMessage("✗ syncing is disabled: Google OAuth client not configured")
		return nil
	}
	if m.inProgress[collection] {
		return nil
	}

	m.inProgress[collection] = true
	label := collection
	if m.dryRun {
		label += " (dry run)"
	}
	m.addMessage(fmt.Sprintf("Starting %s sync...", label))

	run, dryRun := m.run, m.dryRun
	return func() tea.Msg {
		result, err := run(context.Background(), collection, dryRun)
		return SyncCompleteMsg{Collection: collection, Result: result, Error: err}
	}
}

// addMessage adds a message to the activity log.
func (m *Model) addMessage(msg string) {
	timestamp := time.Now().Format("15:04:05")
	m.messages = append(m.messages, fmt.Sprintf("[%s] %s", timestamp, msg))
}

// handleSyncComplete records the outcome and reloads state written by the run.
func (m *Model) handleSyncComplete(msg SyncCompleteMsg) {
	m.inProgress[msg.Collection] = false

	if msg.Error != nil {
		m.addMessage(fmt.Sprintf("✗ %s sync failed: %v", msg.Collection, msg.Error))
	} else if msg.Result != nil {
		m.addMessage(fmt.Sprintf("✓ %s sync completed: %d created, %d skipped of %d",
			msg.Collection, msg.Result.Created, msg.Result.Skipped, msg.Result.SourceCount))
	}

	m.refresh()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatTimeSince formats a time duration in a human-readable way.
func formatTimeSince(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
