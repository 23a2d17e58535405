package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"example.com/prayer/internal/aggregates"
	"example.com/prayer/internal/api"
	"example.com/prayer/internal/catalog"
	"example.com/prayer/internal/domain"
)

var (
	colorGold   = lipgloss.Color("#fabd2f")
	colorPurple = lipgloss.Color("#d3869b")
	colorGreen  = lipgloss.Color("#8ec07c")
	colorRed    = lipgloss.Color("#fb4934")
	colorDim    = lipgloss.Color("#928374")
	colorFg     = lipgloss.Color("#ebdbb2")
)

// Shared styles.
var (
	StyleHeader = lipgloss.NewStyle().Foreground(colorGold).Bold(true)
	StyleTitle  = lipgloss.NewStyle().Foreground(colorPurple).Bold(true)
	StyleOK     = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarn   = lipgloss.NewStyle().Foreground(colorGold)
	StyleError  = lipgloss.NewStyle().Foreground(colorRed)
	StyleDim    = lipgloss.NewStyle().Foreground(colorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(colorFg)
	StyleCursor = lipgloss.NewStyle().Foreground(colorGold).Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 2)
)

// Symbol returns the terminal rendering of a glyph.
func Symbol(g catalog.Glyph) string {
	switch g {
	case catalog.GlyphChurch:
		return "⌂"
	case catalog.GlyphBeads:
		return "∞"
	case catalog.GlyphSun:
		return "☀"
	case catalog.GlyphBook:
		return "≡"
	case catalog.GlyphShield:
		return "◈"
	case catalog.GlyphStar:
		return "★"
	case catalog.GlyphCross:
		return "✝"
	case catalog.GlyphFlower:
		return "✿"
	case catalog.GlyphClock:
		return "◷"
	default:
		return "♥"
	}
}

// FormatNumber abbreviates large totals: 1.5K, 2.3M.
func FormatNumber(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// FormatMinutes renders a minute total as "45m", "2h" or "2h 15m".
func FormatMinutes(minutes int64) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours, mins := minutes/60, minutes%60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// groupThousands renders n with comma separators.
func groupThousands(n int64) string {
	raw := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(raw, "-") {
		sign, raw = "-", raw[1:]
	}
	var b strings.Builder
	for i, r := range raw {
		if i > 0 && (len(raw)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

func formatTotal(at catalog.ActivityType, total int64) string {
	if at.Unit == catalog.UnitMinutes {
		return FormatMinutes(total)
	}
	return groupThousands(total)
}

func formatDelta(at catalog.ActivityType, value int64) string {
	if at.Unit == catalog.UnitMinutes {
		return fmt.Sprintf("+%d min", value)
	}
	return fmt.Sprintf("+%d", value)
}

// RenderTotals lays the totals out as a table. The row at cursor is highlighted; pass -1 for
// none.
func RenderTotals(totals []aggregates.Total, cursor int) string {
	rows := make([][]string, 0, len(totals))
	for i, t := range totals {
		marker := " "
		if i == cursor {
			marker = StyleCursor.Render("›")
		}
		unit := "prayers"
		if t.Unit == catalog.UnitMinutes {
			unit = "time offered"
		}
		rows = append(rows, []string{
			marker + " " + Symbol(t.Glyph),
			t.Name,
			formatTotal(t.ActivityType, t.Total),
			StyleDim.Render(unit),
		})
	}
	return renderTable([]string{"", "Activity", "Total", ""}, rows)
}

// RenderSummary renders the headline statistics.
func RenderSummary(s domain.Summary) string {
	parts := []string{
		StyleHeader.Render(FormatNumber(s.TotalPrayers)) + StyleDim.Render(" prayers"),
		StyleHeader.Render(FormatMinutes(s.TotalMinutes)) + StyleDim.Render(" in prayer"),
		StyleHeader.Render(fmt.Sprintf("%d/%d", s.ActiveTypes, s.CatalogSize)) + StyleDim.Render(" devotions active"),
	}
	return boxStyle.Render(strings.Join(parts, StyleDim.Render("  ·  ")))
}

// RenderEntries renders the admin feed.
func RenderEntries(items []api.AdminEntryView) string {
	if len(items) == 0 {
		return StyleDim.Render("No entries yet.") + "\n"
	}
	rows := make([][]string, 0, len(items))
	for _, e := range items {
		device := e.DeviceHash
		if len(device) > 12 {
			device = device[:12] + "…"
		}
		value := strconv.FormatInt(e.Value, 10)
		if e.Value > 0 {
			value = "+" + value
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(time.DateTime),
			e.ActivityName,
			value,
			StyleDim.Render(device),
		})
	}
	return renderTable([]string{"When", "Activity", "Value", "Device"}, rows)
}

func renderTable(headers []string, rows [][]string) string {
	const gap = 2
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(widths) && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style *lipgloss.Style) {
		for i, cell := range cells {
			rendered := cell
			if style != nil {
				rendered = style.Render(cell)
			}
			b.WriteString(rendered)
			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+gap))
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers, &StyleHeader)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	writeRow(sep, &StyleDim)
	for _, row := range rows {
		writeRow(row, nil)
	}
	return b.String()
}
