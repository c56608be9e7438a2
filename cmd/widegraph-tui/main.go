package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletable "github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/widegraph/pkg/feed"
	"github.com/dd0wney/widegraph/pkg/table"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	feedLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	dashboardView view = iota
	tablesView
	feedView
)

const numViews = 3

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Reset    key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset counters"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("up/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("down/j", "down"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Reset, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Reset},
		{k.Up, k.Down, k.Quit},
	}
}

// feedState is written by the tailer goroutine and sampled on every tick.
type feedState struct {
	mu       sync.Mutex
	counters map[string]*tableCounter
	recent   []frameEntry
	total    uint64
}

type tableCounter struct {
	Frames    uint64
	Mutations uint64
	LastSeen  time.Time
}

type frameEntry struct {
	At        time.Time
	Table     string
	Mutations int
}

const recentLimit = 50

func newFeedState() *feedState {
	return &feedState{counters: make(map[string]*tableCounter)}
}

func (s *feedState) record(tableName string, muts []table.Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counters[tableName]
	if c == nil {
		c = &tableCounter{}
		s.counters[tableName] = c
	}
	c.Frames++
	c.Mutations += uint64(len(muts))
	c.LastSeen = time.Now()
	s.total += uint64(len(muts))

	s.recent = append(s.recent, frameEntry{At: time.Now(), Table: tableName, Mutations: len(muts)})
	if len(s.recent) > recentLimit {
		s.recent = s.recent[len(s.recent)-recentLimit:]
	}
}

func (s *feedState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]*tableCounter)
	s.recent = nil
	s.total = 0
}

type snapshot struct {
	counters map[string]tableCounter
	recent   []frameEntry
	total    uint64
}

func (s *feedState) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	counters := make(map[string]tableCounter, len(s.counters))
	for name, c := range s.counters {
		counters[name] = *c
	}
	recent := make([]frameEntry, len(s.recent))
	copy(recent, s.recent)
	return snapshot{counters: counters, recent: recent, total: s.total}
}

type model struct {
	state       *feedState
	addr        string
	currentView view
	tableView   bubbletable.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int
	startTime   time.Time
	snap        snapshot
	prevTotal   uint64
	rate        float64
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func initialModel(state *feedState, addr string) model {
	columns := []bubbletable.Column{
		{Title: "Table", Width: 18},
		{Title: "Frames", Width: 10},
		{Title: "Mutations", Width: 12},
		{Title: "Last seen", Width: 12},
	}

	t := bubbletable.New(
		bubbletable.WithColumns(columns),
		bubbletable.WithFocused(true),
		bubbletable.WithHeight(8),
	)

	s := bubbletable.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(s)

	return model{
		state:     state,
		addr:      addr,
		tableView: t,
		help:      help.New(),
		keys:      keys,
		startTime: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		m.snap = m.state.snapshot()
		m.rate = float64(m.snap.total - m.prevTotal)
		m.prevTotal = m.snap.total
		m.updateTableRows()
		return m, tickCmd()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % numViews

		case key.Matches(msg, m.keys.ShiftTab):
			if m.currentView == 0 {
				m.currentView = numViews - 1
			} else {
				m.currentView--
			}

		case key.Matches(msg, m.keys.Reset):
			m.state.reset()
			m.snap = snapshot{}
			m.prevTotal = 0
			m.rate = 0
			m.updateTableRows()
		}
	}

	if m.currentView == tablesView {
		m.tableView, cmd = m.tableView.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateTableRows() {
	names := make([]string, 0, len(m.snap.counters))
	for name := range m.snap.counters {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]bubbletable.Row, 0, len(names))
	for _, name := range names {
		c := m.snap.counters[name]
		rows = append(rows, bubbletable.Row{
			name,
			fmt.Sprintf("%d", c.Frames),
			fmt.Sprintf("%d", c.Mutations),
			c.LastSeen.Format("15:04:05"),
		})
	}
	m.tableView.SetRows(rows)
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("📡 WideGraph Load Monitor"))
	s.WriteString("\n\n")

	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case dashboardView:
		s.WriteString(m.renderDashboard())
	case tablesView:
		s.WriteString(m.renderTables())
	case feedView:
		s.WriteString(m.renderFeed())
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))

	return s.String()
}

func (m model) renderTabs() string {
	tabs := []string{"Dashboard", "Tables", "Feed"}
	var renderedTabs []string

	for i, tab := range tabs {
		if view(i) == m.currentView {
			renderedTabs = append(renderedTabs, activeTabStyle.Render(tab))
		} else {
			renderedTabs = append(renderedTabs, inactiveTabStyle.Render(tab))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

func (m model) renderDashboard() string {
	uptime := time.Since(m.startTime).Round(time.Second)

	statsContent := fmt.Sprintf(`📊 Load Totals
━━━━━━━━━━━━━━━
Mutations: %d
Tables:    %d
Rate:      %.0f/sec
Uptime:    %s`,
		m.snap.total,
		len(m.snap.counters),
		m.rate,
		uptime,
	)

	feedContent := fmt.Sprintf(`📡 Feed
━━━━━━━━━━━━━━━
Address:   %s
Frames:    %d

[Tab]  Navigate views
[r]    Reset counters
[q]    Quit`,
		m.addr,
		totalFrames(m.snap.counters),
	)

	statsBox := statsBoxStyle.Render(statsContent)
	feedBox := statsBoxStyle.Render(feedContent)

	return contentStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Top, statsBox, feedBox),
	)
}

func totalFrames(counters map[string]tableCounter) uint64 {
	var n uint64
	for _, c := range counters {
		n += c.Frames
	}
	return n
}

func (m model) renderTables() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Table Activity"))
	s.WriteString("\n\n")

	if len(m.snap.counters) == 0 {
		s.WriteString(helpStyle.Render("No frames yet. Start a load with --feed " + m.addr))
	} else {
		s.WriteString(m.tableView.View())
	}

	return contentStyle.Render(s.String())
}

func (m model) renderFeed() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Recent Frames"))
	s.WriteString("\n\n")

	if len(m.snap.recent) == 0 {
		s.WriteString(helpStyle.Render("Waiting for frames..."))
		return contentStyle.Render(s.String())
	}

	shown := m.snap.recent
	if len(shown) > 20 {
		shown = shown[len(shown)-20:]
	}
	for i := len(shown) - 1; i >= 0; i-- {
		entry := shown[i]
		s.WriteString(feedLineStyle.Render(fmt.Sprintf("%s  %-18s %d mutations",
			entry.At.Format("15:04:05"), entry.Table, entry.Mutations)))
		s.WriteString("\n")
	}

	return contentStyle.Render(s.String())
}

func main() {
	addr := flag.String("feed", "tcp://127.0.0.1:7781", "Feed address to tail")
	flag.Parse()

	state := newFeedState()

	tailer, err := feed.NewTailer(feed.TailerConfig{Addr: *addr}, state.record)
	if err != nil {
		log.Fatalf("Failed to tail feed at %s: %v", *addr, err)
	}
	defer tailer.Close()

	p := tea.NewProgram(initialModel(state, *addr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}
