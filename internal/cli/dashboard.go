package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/attention/internal/observability"
	"github.com/valter-silva-au/attention/pkg/models"
)

// dashboardSnooze is how long the s key hides the selected item.
const dashboardSnooze = 24 * time.Hour

// Dashboard panel indices.
const (
	panelItems = iota
	panelMetrics
	panelAlerts
	panelCount
)

type dashboardModel struct {
	activePanel int
	cursor      int
	width       int
	height      int

	// Data.
	items       []itemSnapshot
	failed      []string
	metricsData *metricsSnapshot
	alerts      []alertSnapshot

	// State.
	loading bool
	status  string
	err     error
}

type itemSnapshot struct {
	id        string
	label     string
	title     string
	score     float64
	reasoning string
}

type metricsSnapshot struct {
	runs         int
	avgSelected  float64
	avgScore     float64
	overflowRuns int
	resolved     int
	snoozed      int
	eventCount   int
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	items   []itemSnapshot
	failed  []string
	metrics *metricsSnapshot
	alerts  []alertSnapshot
	err     error
}

// itemActionMsg reports the outcome of a resolve or snooze from the
// items panel.
type itemActionMsg struct {
	done string
	err  error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelItems,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "up", "k":
			if m.activePanel == panelItems && m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.activePanel == panelItems && m.cursor < len(m.items)-1 {
				m.cursor++
			}
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		case "x", "s":
			id, ok := m.selectedItem()
			if !ok {
				return m, nil
			}
			if msg.String() == "x" {
				return m, resolveItem(id)
			}
			return m, snoozeItem(id, time.Now().UTC().Add(dashboardSnooze))
		}

	case itemActionMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.status = msg.done
		m.loading = true
		return m, loadData

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.items = msg.items
		m.failed = msg.failed
		m.metricsData = msg.metrics
		m.alerts = msg.alerts
		m.err = nil
		if m.cursor >= len(m.items) {
			m.cursor = 0
		}
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" attn Dashboard ")
	help := helpStyle.Render("tab: switch panel | j/k: move | x: resolve | s: snooze 1d | r: refresh | q: quit")
	if m.status != "" {
		help = dimStyle.Render(m.status) + "\n" + help
	}

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	itemsPanel := m.renderItemsPanel()
	metricsPanel := m.renderMetricsPanel()
	alertsPanel := m.renderAlertsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Ranked list takes half the width; metrics and alerts share the rest.
		itemsWidth := availableWidth / 2
		sideWidth := (availableWidth - itemsWidth) / 2
		itemsPanel = m.applyPanelStyle(panelItems, itemsPanel, itemsWidth-4)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, sideWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, sideWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, itemsPanel, metricsPanel, alertsPanel)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		itemsPanel = m.applyPanelStyle(panelItems, itemsPanel, panelWidth)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, itemsPanel, metricsPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

// selectedItem returns the item under the cursor when the items panel is
// active.
func (m dashboardModel) selectedItem() (string, bool) {
	if m.loading || m.activePanel != panelItems || m.cursor >= len(m.items) {
		return "", false
	}
	return m.items[m.cursor].id, true
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderItemsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Needs attention"))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString("  Nothing needs attention right now.")
	}

	for i, item := range m.items {
		marker := "  "
		if i == m.cursor && m.activePanel == panelItems {
			marker = cursorStyle.Render("> ")
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s\n", marker,
			scoreStyle.Render(fmt.Sprintf("%.2f", item.score)),
			sourceStyle.Render("["+item.label+"]"),
			item.title))
		if i == m.cursor {
			b.WriteString(dimStyle.Render("      "+item.reasoning) + "\n")
		}
	}

	for _, f := range m.failed {
		b.WriteString("\n" + warnStyle.Render("  unavailable: "+f))
	}

	return b.String()
}

func (m dashboardModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics (7d)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Runs", md.runs))
	b.WriteString(fmt.Sprintf("  %-14s %.1f\n", "Avg items", md.avgSelected))
	b.WriteString(fmt.Sprintf("  %-14s %.2f\n", "Avg score", md.avgScore))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Overflows", md.overflowRuns))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Resolved", md.resolved))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Snoozed", md.snoozed))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Events", md.eventCount))

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
		if a.time != "" {
			b.WriteString(dimStyle.Render("      "+a.time) + "\n")
		}
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	var result dataLoadedMsg

	if Engine != nil {
		ranked, err := Engine.Rank(context.Background(), priorityConfig())
		if err != nil {
			result.err = fmt.Errorf("ranking items: %w", err)
			return result
		}
		result.items = make([]itemSnapshot, 0, len(ranked.Items))
		for _, item := range ranked.Items {
			result.items = append(result.items, itemSnapshot{
				id:        item.ID,
				label:     item.SourceType.Label(),
				title:     item.Title,
				score:     item.PriorityScore,
				reasoning: item.Reasoning,
			})
		}
		for st := range ranked.SourceErrors {
			result.failed = append(result.failed, string(st))
		}
		sort.Strings(result.failed)
	}

	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = &metricsSnapshot{
			runs:         metrics.Runs,
			avgSelected:  metrics.AvgSelected,
			avgScore:     metrics.AvgScore,
			overflowRuns: metrics.OverflowRuns,
			resolved:     metrics.Resolved,
			snoozed:      metrics.Snoozed,
			eventCount:   metrics.EventCount,
		}
	}

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		sortAlerts(alerts)
		result.alerts = make([]alertSnapshot, 0, len(alerts))
		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

func resolveItem(itemID string) tea.Cmd {
	return func() tea.Msg {
		st, id, err := dashboardTarget(itemID)
		if err == nil {
			err = Actions.Resolve(context.Background(), st, id)
		}
		if err != nil {
			return itemActionMsg{err: fmt.Errorf("resolving %s: %w", itemID, err)}
		}
		logAction(observability.EventActionResolved, st, id, nil)
		return itemActionMsg{done: "Resolved " + itemID}
	}
}

func snoozeItem(itemID string, until time.Time) tea.Cmd {
	return func() tea.Msg {
		st, id, err := dashboardTarget(itemID)
		if err == nil {
			err = Actions.Snooze(context.Background(), st, id, until)
		}
		if err != nil {
			return itemActionMsg{err: fmt.Errorf("snoozing %s: %w", itemID, err)}
		}
		logAction(observability.EventActionSnoozed, st, id, map[string]any{
			"until": until.Format(time.RFC3339),
		})
		return itemActionMsg{done: fmt.Sprintf("Snoozed %s until %s", itemID, until.Format("2006-01-02 15:04 UTC"))}
	}
}

func dashboardTarget(itemID string) (models.SourceType, string, error) {
	if Actions == nil {
		return "", "", fmt.Errorf("actions not initialized")
	}
	return models.ParseWorkItemID(itemID)
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for the ranked list, metrics, and alerts",
	Long: `Launch an interactive terminal dashboard showing the current ranked
list alongside ranking metrics and active alerts.

Navigate between panels with Tab and move through items with j/k. On the
items panel, x resolves the selected item and s snoozes it for a day.
Refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return fmt.Errorf("priority engine not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
