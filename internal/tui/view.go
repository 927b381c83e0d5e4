package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/roach88/tracesync/internal/engine"
	"github.com/roach88/tracesync/internal/ir"
	"github.com/roach88/tracesync/internal/markers"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	statusColors = map[ir.Status]lipgloss.Color{
		ir.StatusPassed:  lipgloss.Color("10"),
		ir.StatusFailed:  lipgloss.Color("9"),
		ir.StatusWarning: lipgloss.Color("11"),
		ir.StatusInfo:    lipgloss.Color("12"),
	}
)

const (
	playheadGlyph = "▼"
	markerGlyph   = "┃"
	emptyGlyph    = "─"
	groupIndent   = "  "
)

func (m Model) View() string {
	if m.err != nil && !m.ready {
		return errorStyle.Render("error: "+m.err.Error()) + "\n"
	}
	if !m.ready {
		return "loading…\n"
	}

	width := max(m.width, 40)
	var b strings.Builder
	b.WriteString(m.header(width))
	b.WriteString("\n")
	b.WriteString(scrubBar(m.snap.Strip, m.snap.State.CurrentVideoTime, width))
	b.WriteString("\n\n")

	detail := m.detail(width)
	listHeight := m.height - lipgloss.Height(detail) - 8
	b.WriteString(m.list(width, max(listHeight, 3)))
	b.WriteString("\n")
	b.WriteString(detail)
	b.WriteString("\n")

	if m.searching {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(statusStyle.Render(truncate(m.status, width)))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) header(width int) string {
	s := m.snap.State
	media := "media"
	if !s.MediaAvailable {
		media = "timeline-only"
	}
	left := titleStyle.Render(m.snap.RunID) + " " + dimStyle.Render(fmt.Sprintf(
		"%s · %gx · tour %dms · %s",
		s.Mode, s.PlaybackRate, s.TourIntervalMs(), media,
	))
	right := dimStyle.Render(fmt.Sprintf("%d/%d shown · filter %s", len(m.snap.Items), m.snap.Counts.Total, m.snap.Filter))
	if m.snap.Dropped > 0 {
		right += errorStyle.Render(fmt.Sprintf(" · %d dropped", m.snap.Dropped))
	}
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left + "\n" + right
	}
	return left + strings.Repeat(" ", gap) + right
}

// scrubBar renders the marker strip with the playhead above it.
func scrubBar(strip *markers.Strip, current float64, width int) string {
	if strip == nil || strip.Duration() <= 0 {
		return dimStyle.Render("no video")
	}
	cells := strip.Cells(width)
	head := markers.Column(current/strip.Duration(), width)

	var top, bar strings.Builder
	top.WriteString(strings.Repeat(" ", head))
	top.WriteString(playheadGlyph)
	for _, c := range cells {
		if c.Count == 0 {
			bar.WriteString(dimStyle.Render(emptyGlyph))
			continue
		}
		style := lipgloss.NewStyle()
		if color, ok := statusColors[c.Status]; ok {
			style = style.Foreground(color)
		}
		bar.WriteString(style.Render(markerGlyph))
	}
	return top.String() + "\n" + bar.String() + "\n" +
		dimStyle.Render(fmt.Sprintf("%s / %s", formatOffset(current), formatOffset(strip.Duration())))
}

func (m Model) list(width, height int) string {
	items := m.snap.Items
	if len(items) == 0 {
		return dimStyle.Render("no items match the filter")
	}

	cur := m.snap.State.CurrentIndex
	start := 0
	if cur >= height {
		start = cur - height/2
	}
	end := min(len(items), start+height)
	start = max(0, end-height)

	var lines []string
	lastGroup := ""
	for i := start; i < end; i++ {
		it := items[i]
		prefix := ""
		if m.snap.Filter.GroupByTest {
			if g := it.GroupKey(); g != lastGroup {
				lines = append(lines, titleStyle.Render(g))
				lastGroup = g
			}
			prefix = groupIndent
		}
		line := prefix + itemLine(it, width-len(prefix))
		if i == cur {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func itemLine(it ir.TimelineItem, width int) string {
	offset := "     -"
	if off, ok := it.VideoOffset(); ok {
		offset = fmt.Sprintf("%6s", formatOffset(off))
	}
	status := string(it.Status)
	if status == "" {
		status = "-"
	}
	head := fmt.Sprintf("%s %-19s %-7s ", offset, it.Kind, status)
	title := truncate(it.Title, width-runewidth.StringWidth(head))
	if color, ok := statusColors[it.Status]; ok {
		head = fmt.Sprintf("%s %-19s %s ", offset, it.Kind,
			lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%-7s", status)))
	}
	return head + title
}

func (m Model) detail(width int) string {
	if !m.snap.HasCurrent {
		return panelStyle.Width(width - 2).Render(dimStyle.Render("nothing selected"))
	}
	it := m.snap.Current
	inner := width - 6

	lines := []string{
		titleStyle.Render(truncate(it.Title, inner)),
		dimStyle.Render(fmt.Sprintf("%s · %s · %s", it.ID, it.Timestamp.UTC().Format(time.RFC3339Nano), it.GroupKey())),
	}
	if it.Description != "" {
		for _, l := range strings.Split(it.Description, "\n") {
			lines = append(lines, truncate(l, inner))
		}
	}
	if step := m.snap.State.SelectedStepID; step != "" && step != it.SourceID {
		lines = append(lines, dimStyle.Render("step "+step))
	}
	for _, a := range m.snap.Artifacts {
		lines = append(lines, dimStyle.Render(truncate(fmt.Sprintf("%s: %s", a.Type, a.URL), inner)))
	}
	if m.snap.MediaErr != nil && m.snap.State.Mode != engine.ModeMediaPlaying {
		lines = append(lines, errorStyle.Render(truncate(m.snap.MediaErr.Error(), inner)))
	}
	return panelStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

// truncate cuts s to width display columns.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

func formatOffset(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(100 * time.Millisecond)
	m := int(d / time.Minute)
	s := (d % time.Minute).Seconds()
	return fmt.Sprintf("%d:%04.1f", m, s)
}
