// Package tui is the interactive monitor dashboard: live registry
// contents, cache occupancy, and the top five cached executions in the
// cache's search order (use_count DESC, then last_used_at DESC), refreshed
// on a fixed tick.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/blackcoderx/mfp/internal/cache"
	"github.com/blackcoderx/mfp/internal/config"
	"github.com/blackcoderx/mfp/internal/registry"
)

const (
	refreshInterval = 2 * time.Second
	gaugeWidth      = 40
	gaugeFPS        = 30
)

type keyMap struct {
	Reload key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Reload, k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Reload, k.Quit}} }

var keys = keyMap{
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload registry")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

type refreshMsg struct {
	servers    []registry.ServerSummary
	cacheCount int
	recent     []cache.SearchResult
	err        error
}

type model struct {
	reg     *registry.Registry
	cacheDB *cache.Store
	cfg     *config.Config
	version string

	serverTable table.Model
	spin        spinner.Model
	helpView    help.Model

	spring   harmonica.Spring
	gaugePos float64
	gaugeVel float64

	cacheCount int
	recent     []cache.SearchResult
	lastErr    error
	width      int
}

// Run starts the monitor dashboard and blocks until the user quits.
func Run(reg *registry.Registry, cacheDB *cache.Store, cfg *config.Config, version string) error {
	columns := []table.Column{
		{Title: "Server", Width: 18},
		{Title: "Functions", Width: 10},
		{Title: "Description", Width: 44},
	}
	t := table.New(table.WithColumns(columns), table.WithHeight(8), table.WithFocused(true))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	m := model{
		reg:         reg,
		cacheDB:     cacheDB,
		cfg:         cfg,
		version:     version,
		serverTable: t,
		spin:        sp,
		helpView:    help.New(),
		spring:      harmonica.NewSpring(harmonica.FPS(gaugeFPS), 6.0, 0.8),
	}

	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.refresh(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// refresh reads the registry and cache snapshots off the Update loop.
func (m model) refresh() tea.Cmd {
	return func() tea.Msg {
		msg := refreshMsg{servers: m.reg.ListServers()}
		if m.cacheDB != nil {
			count, err := m.cacheDB.Count()
			if err != nil {
				msg.err = err
				return msg
			}
			msg.cacheCount = count
			recent, err := m.cacheDB.Search("", 5)
			if err != nil {
				msg.err = err
				return msg
			}
			msg.recent = recent
		}
		return msg
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Reload):
			return m, func() tea.Msg {
				_ = m.reg.Load()
				return tickMsg(time.Now())
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())

	case refreshMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.cacheCount = msg.cacheCount
			m.recent = msg.recent
			rows := make([]table.Row, 0, len(msg.servers))
			for _, s := range msg.servers {
				rows = append(rows, table.Row{s.Name, fmt.Sprintf("%d", len(s.Functions)), s.Description})
			}
			m.serverTable.SetRows(rows)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		// Advance the gauge spring toward the current cache fill ratio on
		// the spinner's cadence.
		target := 0.0
		if m.cfg.CacheMaxEntries > 0 {
			target = float64(m.cacheCount) / float64(m.cfg.CacheMaxEntries)
		}
		m.gaugePos, m.gaugeVel = m.spring.Update(m.gaugePos, m.gaugeVel, target)
		return m, cmd
	}

	var cmd tea.Cmd
	m.serverTable, cmd = m.serverTable.Update(msg)
	return m, cmd
}

func (m model) View() string {
	header := titleStyle.Render("mfp monitor") + labelStyle.Render("  v"+m.version)

	servers := sectionStyle.Render(
		labelStyle.Render("Compiled servers") + "\n" + m.serverTable.View())

	cacheSection := sectionStyle.Render(
		labelStyle.Render("Execution cache  ") + m.spin.View() + "\n" +
			m.gaugeView() + "\n" +
			m.recentView())

	status := okStyle.Render("● running")
	if m.lastErr != nil {
		status = errStyle.Render("● " + m.lastErr.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		servers,
		cacheSection,
		helpStyle.Render(status+"  "+m.helpView.View(keys)),
	)
}

// gaugeView renders the spring-smoothed cache occupancy bar.
func (m model) gaugeView() string {
	ratio := m.gaugePos
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * gaugeWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", gaugeWidth-filled)

	style := okStyle
	if ratio > 0.9 {
		style = errStyle
	} else if ratio > 0.7 {
		style = warnStyle
	}
	return style.Render(bar) + valueStyle.Render(fmt.Sprintf(" %d/%d entries", m.cacheCount, m.cfg.CacheMaxEntries))
}

func (m model) recentView() string {
	if len(m.recent) == 0 {
		return labelStyle.Render("no cached executions yet")
	}
	var lines []string
	for _, r := range m.recent {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			valueStyle.Render(r.ID[:12]),
			labelStyle.Render(fmt.Sprintf("×%d", r.UseCount)),
			valueStyle.Render(truncate(r.Description, 48))))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
