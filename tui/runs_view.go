// ABOUTME: TUI view for mirror run history
// ABOUTME: Shows recent runs in a scrollable table with their counts and errors
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/mirrorsync/db"
	"github.com/harperreed/mirrorsync/models"
)

const runHistoryLimit = 100

func newRunsTable() table.Model {
	columns := []table.Column{
		{Title: "Started", Width: 16},
		{Title: "Collection", Width: 10},
		{Title: "Status", Width: 12},
		{Title: "Created", Width: 7},
		{Title: "Skipped", Width: 7},
		{Title: "Source", Width: 7},
		{Title: "Dest", Width: 7},
		{Title: "Error", Width: 40},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color("235")).
		Bold(true)
	t.SetStyles(styles)

	return t
}

func runRow(run models.RunRecord) table.Row {
	status := run.Status
	if run.DryRun {
		status += " (dry)"
	}
	errText := ""
	if run.ErrorMessage != "" {
		errText = run.ErrorStage + ": " + run.ErrorMessage
	}
	return table.Row{
		run.StartedAt.Local().Format("2006-01-02 15:04"),
		run.Collection,
		status,
		fmt.Sprint(run.Created),
		fmt.Sprint(run.Skipped),
		fmt.Sprint(run.SourceCount),
		fmt.Sprint(run.DestCount),
		errText,
	}
}

func (m *Model) loadRuns() {
	runs, err := db.ListRuns(m.db, "", runHistoryLimit)
	if err != nil {
		m.err = err
		return
	}

	rows := make([]table.Row, len(runs))
	for i, run := range runs {
		rows[i] = runRow(run)
	}
	m.runs.SetRows(rows)
}

func (m Model) renderRunsView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Run History"))
	s.WriteString("\n\n")

	if len(m.runs.Rows()) == 0 {
		s.WriteString(syncMessageStyle.Render("No runs recorded yet."))
		s.WriteString("\n")
	} else {
		s.WriteString(m.runs.View())
		s.WriteString("\n")
	}

	help := []string{
		"↑/↓: Scroll",
		"r: Refresh",
		"Tab/Esc: Back",
		"q: Quit",
	}
	s.WriteString(helpStyle.Render(strings.Join(help, " • ")))
	return s.String()
}

func (m Model) handleRunsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = ViewCollections
		return m, nil
	case "r":
		m.loadRuns()
		return m, nil
	}

	var cmd tea.Cmd
	m.runs, cmd = m.runs.Update(msg)
	return m, cmd
}
