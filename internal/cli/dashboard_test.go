package cli

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/prayer/internal/aggregates"
	"example.com/prayer/internal/catalog"
	"example.com/prayer/internal/guard"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestDashboard(t *testing.T) (*dashboardModel, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)}
	s := aggregates.New(nil,
		guard.New(guard.NewMemoryStore(), guard.WithClock(clock.Now)),
		aggregates.WithClock(clock.Now),
		aggregates.WithDemoDelay(0),
	)
	m := newDashboardModel(context.Background(), s, clock.Now)
	m.Update(m.load()())
	return m, clock
}

func press(m *dashboardModel, keys string) tea.Cmd {
	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func TestDashboardLoadsEveryActivity(t *testing.T) {
	m, _ := newTestDashboard(t)

	assert.False(t, m.loading)
	require.Len(t, m.totals, catalog.Len())
	view := m.View()
	for _, at := range catalog.All() {
		assert.Contains(t, view, at.Name)
	}
	assert.Contains(t, view, "demo mode")
}

func TestDashboardSubmitStartsCooldown(t *testing.T) {
	m, clock := newTestDashboard(t)
	before := m.totals[0].Total

	cmd := press(m, "enter")
	require.NotNil(t, cmd)
	assert.True(t, m.submitting)
	m.Update(cmd())

	assert.False(t, m.submitting)
	assert.Equal(t, before+1, m.totals[0].Total)
	assert.Contains(t, m.View(), "+1 Holy Mass offered!")
	assert.Equal(t, 5, m.cooldown)

	assert.Nil(t, press(m, "enter"), "submissions are disabled while cooling down")

	clock.now = clock.now.Add(2 * time.Second)
	m.Update(tickMsg(clock.now))
	assert.Equal(t, 3, m.cooldown)
	assert.Contains(t, m.View(), "Please wait 3 seconds")
}

func TestDashboardTimedSubmissions(t *testing.T) {
	m, _ := newTestDashboard(t)

	assert.Nil(t, press(m, "t"), "counted activities ignore the long offering key")

	press(m, "down")
	press(m, "down")
	at, ok := m.selected()
	require.True(t, ok)
	require.Equal(t, catalog.UnitMinutes, at.Unit)
	before := m.totals[m.cursor].Total

	cmd := press(m, "t")
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, before+30, m.totals[m.cursor].Total)
}

func TestDashboardCursorBounds(t *testing.T) {
	m, _ := newTestDashboard(t)

	press(m, "up")
	assert.Equal(t, 0, m.cursor)
	for i := 0; i < catalog.Len()+3; i++ {
		press(m, "down")
	}
	assert.Equal(t, catalog.Len()-1, m.cursor)
}

func TestDashboardQuitAndRefresh(t *testing.T) {
	m, _ := newTestDashboard(t)

	cmd := press(m, "r")
	require.NotNil(t, cmd)
	assert.True(t, m.loading)
	m.Update(cmd())
	assert.False(t, m.loading)

	cmd = press(m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
