package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"example.com/prayer/internal/aggregates"
	"example.com/prayer/internal/catalog"
	"example.com/prayer/internal/domain"
)

const (
	dashboardTick = 100 * time.Millisecond
	flashDuration = 1500 * time.Millisecond
	quickMinutes  = 5
	longMinutes   = 30
)

func newDashboardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Live view of the totals with one-key submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.interactive() {
				return runTotals(cmd, app)
			}
			return runDashboard(cmd.Context(), app)
		},
	}
}

func runDashboard(parent context.Context, app *App) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	m := newDashboardModel(ctx, app.Sync, app.now)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	// Listeners may fire from inside Update, so Send must not block the event loop.
	app.Sync.OnChange(func() { go p.Send(changedMsg{}) })
	go app.Sync.Watch(ctx)

	_, err := p.Run()
	app.Sync.Close()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// ── messages ─────────────────────────────────────────────────────────────────

type tickMsg time.Time

type changedMsg struct{}

type submitDoneMsg struct {
	ok     bool
	at     catalog.ActivityType
	value  int64
	reason string
}

// ── keys ─────────────────────────────────────────────────────────────────────

type dashboardKeys struct {
	Up      key.Binding
	Down    key.Binding
	Submit  key.Binding
	Long    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func defaultDashboardKeys() dashboardKeys {
	return dashboardKeys{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Submit:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "+1 / +5 min")),
		Long:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "+30 min")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k dashboardKeys) help() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Submit, k.Long, k.Refresh, k.Quit}
}

// ── model ────────────────────────────────────────────────────────────────────

type dashboardModel struct {
	ctx     context.Context
	sync    *aggregates.Synchronizer
	now     func() time.Time
	keys    dashboardKeys
	spinner spinner.Model

	cursor     int
	totals     []aggregates.Total
	summary    domain.Summary
	cooldown   int
	submitting bool
	loading    bool
	flash      string
	flashUntil time.Time
}

func newDashboardModel(ctx context.Context, sync *aggregates.Synchronizer, now func() time.Time) *dashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleTitle
	m := &dashboardModel{
		ctx:     ctx,
		sync:    sync,
		now:     now,
		keys:    defaultDashboardKeys(),
		spinner: sp,
		loading: true,
	}
	m.refresh()
	return m
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.load(), tick(), m.spinner.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(dashboardTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *dashboardModel) load() tea.Cmd {
	return func() tea.Msg {
		m.sync.Load(m.ctx)
		return changedMsg{}
	}
}

func (m *dashboardModel) submit(at catalog.ActivityType, value int64) tea.Cmd {
	m.submitting = true
	return func() tea.Msg {
		ok := m.sync.Submit(m.ctx, at.ID, value)
		return submitDoneMsg{ok: ok, at: at, value: value, reason: m.sync.LastError()}
	}
}

func (m *dashboardModel) refresh() {
	m.totals = m.sync.Totals()
	m.summary = m.sync.Summary()
	m.cooldown = m.sync.CooldownRemaining()
	if m.sync.Loaded() {
		m.loading = false
	}
	if m.cursor >= len(m.totals) {
		m.cursor = max(0, len(m.totals)-1)
	}
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh()
		if !m.flashUntil.IsZero() && m.now().After(m.flashUntil) {
			m.flash, m.flashUntil = "", time.Time{}
		}
		return m, tick()

	case changedMsg:
		m.refresh()
		return m, nil

	case submitDoneMsg:
		m.submitting = false
		m.refresh()
		if msg.ok {
			m.flash = fmt.Sprintf("%s %s offered!", formatDelta(msg.at, msg.value), msg.at.Name)
			m.flashUntil = m.now().Add(flashDuration)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.totals)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, m.load()
		case key.Matches(msg, m.keys.Submit):
			if at, ok := m.selected(); ok && m.ready() {
				value := int64(1)
				if at.Unit == catalog.UnitMinutes {
					value = quickMinutes
				}
				return m, m.submit(at, value)
			}
		case key.Matches(msg, m.keys.Long):
			if at, ok := m.selected(); ok && at.Unit == catalog.UnitMinutes && m.ready() {
				return m, m.submit(at, longMinutes)
			}
		}
	}
	return m, nil
}

func (m *dashboardModel) selected() (catalog.ActivityType, bool) {
	if m.cursor < 0 || m.cursor >= len(m.totals) {
		return catalog.ActivityType{}, false
	}
	return m.totals[m.cursor].ActivityType, true
}

// ready mirrors the disabled state of the submit buttons.
func (m *dashboardModel) ready() bool {
	return !m.submitting && m.cooldown == 0
}

func (m *dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("✝ Prayer Repository"))
	if !m.sync.Configured() {
		b.WriteString(StyleWarn.Render("  demo mode"))
	}
	if m.loading {
		b.WriteString("  " + m.spinner.View())
	}
	b.WriteString("\n\n")

	b.WriteString(RenderSummary(m.summary))
	b.WriteString("\n\n")
	b.WriteString(RenderTotals(m.totals, m.cursor))
	b.WriteString("\n")
	b.WriteString(m.status())
	b.WriteString("\n\n")
	b.WriteString(m.helpLine())
	return b.String()
}

func (m *dashboardModel) status() string {
	switch {
	case m.submitting:
		return m.spinner.View() + StyleDim.Render(" Submitting...")
	case m.flash != "":
		return StyleOK.Render("✓ " + m.flash)
	case m.cooldown > 0:
		return StyleWarn.Render(aggregates.CooldownMessage(m.cooldown))
	}
	if msg := m.sync.LastError(); msg != "" {
		return StyleError.Render(msg)
	}
	if msg := m.sync.LoadError(); msg != "" {
		return StyleError.Render(msg)
	}
	return StyleDim.Render("Ready")
}

func (m *dashboardModel) helpLine() string {
	parts := make([]string, 0, 6)
	for _, binding := range m.keys.help() {
		h := binding.Help()
		parts = append(parts, StyleFg.Render(h.Key)+" "+StyleDim.Render(h.Desc))
	}
	return strings.Join(parts, StyleDim.Render(" • "))
}
