// Package tui is the interactive terminal player: a timeline list, a marker
// scrub bar and a detail panel over a player.Player.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/tracesync/internal/engine"
	"github.com/roach88/tracesync/internal/media"
	"github.com/roach88/tracesync/internal/player"
	"github.com/roach88/tracesync/internal/timeline"
)

// RefreshInterval is how often the view re-reads the controller while a
// tour or the media advances on its own.
const RefreshInterval = 100 * time.Millisecond

// Model is the bubbletea model for one playback session.
type Model struct {
	ctx    context.Context
	player *player.Player
	events *Events

	keys      keyMap
	help      help.Model
	search    textinput.Model
	searching bool

	width  int
	height int

	snap   player.Snapshot
	ready  bool
	status string
	err    error
}

type snapshotMsg struct {
	snap player.Snapshot
	err  error
}

type commandMsg struct {
	name string
	err  error
}

type refreshMsg struct{}

// New builds a model. events must be the listener the player was opened
// with, or nil to rely on periodic refresh alone.
func New(ctx context.Context, p *player.Player, events *Events) Model {
	ti := textinput.New()
	ti.Placeholder = "search titles and descriptions"
	ti.Prompt = "/ "
	ti.CharLimit = 128
	ti.Cursor.SetMode(cursor.CursorStatic)

	h := help.New()
	h.ShowAll = false

	return Model{
		ctx:    ctx,
		player: p,
		events: events,
		keys:   defaultKeys(),
		help:   h,
		search: ti,
		width:  80,
		height: 24,
	}
}

// Run opens the full-screen player and blocks until the user quits.
func Run(ctx context.Context, p *player.Player, events *Events) error {
	prog := tea.NewProgram(New(ctx, p, events), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.snapshot(), refresh()}
	if m.events != nil {
		cmds = append(cmds, m.events.wait())
	}
	return tea.Batch(cmds...)
}

func refresh() tea.Cmd {
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

func (m Model) snapshot() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.player.Snapshot(m.ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

// do runs fn on the playback loop and reports the result.
func (m Model) do(name string, fn func(*engine.Controller) error) tea.Cmd {
	return func() tea.Msg {
		return commandMsg{name: name, err: m.player.Do(m.ctx, name, fn)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case refreshMsg:
		return m, tea.Batch(m.snapshot(), refresh())

	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			if engine.IsClosed(msg.err) {
				return m, tea.Quit
			}
			return m, nil
		}
		m.snap = msg.snap
		m.ready = true
		return m, nil

	case commandMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.name, msg.err)
		}
		return m, m.snapshot()

	case stepMsg:
		if msg.stepID == "" {
			m.status = "selection cleared"
		}
		return m, m.events.wait()

	case timeMsg:
		return m, m.events.wait()

	case unavailableMsg:
		m.status = fmt.Sprintf("media unavailable, timeline-only: %v", msg.err)
		return m, tea.Batch(m.snapshot(), m.events.wait())

	case reloadedMsg:
		m.status = fmt.Sprintf("reloaded %s (%d dropped)", msg.runID, msg.dropped)
		return m, tea.Batch(m.snapshot(), m.events.wait())

	case reloadFailedMsg:
		m.status = fmt.Sprintf("reload failed, keeping previous run: %v", msg.err)
		return m, m.events.wait()

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		f := m.snap.Filter
		f.Search = strings.TrimSpace(m.search.Value())
		return m, m.setFilter(f)
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		return m, m.do("step", func(c *engine.Controller) error { return c.Step(-1) })
	case key.Matches(msg, m.keys.Next):
		return m, m.do("step", func(c *engine.Controller) error { return c.Step(1) })
	case key.Matches(msg, m.keys.First):
		return m, m.do("select", func(c *engine.Controller) error { return c.SelectIndex(0) })
	case key.Matches(msg, m.keys.Last):
		return m, m.do("select", func(c *engine.Controller) error {
			return c.SelectIndex(c.View().Len() - 1)
		})
	case key.Matches(msg, m.keys.Play):
		return m, m.do("play", func(c *engine.Controller) error { return c.TogglePlay() })
	case key.Matches(msg, m.keys.Tour):
		return m, m.do("tour", func(c *engine.Controller) error { return c.ToggleTour() })
	case key.Matches(msg, m.keys.Faster):
		return m, m.setRate(nextRate(m.snap.State.PlaybackRate, 1))
	case key.Matches(msg, m.keys.Slower):
		return m, m.setRate(nextRate(m.snap.State.PlaybackRate, -1))
	case key.Matches(msg, m.keys.NextMarker):
		return m, m.do("next marker", func(c *engine.Controller) error { return c.NextMarker() })
	case key.Matches(msg, m.keys.PrevMarker):
		return m, m.do("prev marker", func(c *engine.Controller) error { return c.PrevMarker() })
	case key.Matches(msg, m.keys.Jump):
		ratio := float64(msg.String()[0]-'0') / 10
		return m, m.do("jump", func(c *engine.Controller) error { return c.JumpToRatio(ratio) })
	case key.Matches(msg, m.keys.ErrorsOnly):
		f := m.snap.Filter
		f.ErrorsOnly = !f.ErrorsOnly
		return m, m.setFilter(f)
	case key.Matches(msg, m.keys.Group):
		f := m.snap.Filter
		f.GroupByTest = !f.GroupByTest
		return m, m.setFilter(f)
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(m.snap.Filter.Search)
		m.search.CursorEnd()
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Clear):
		if m.snap.Filter.IsZero() && !m.snap.Filter.GroupByTest {
			return m, nil
		}
		m.search.SetValue("")
		return m, m.setFilter(timeline.Filter{})
	}
	return m, nil
}

func (m Model) setRate(rate float64) tea.Cmd {
	return m.do("rate", func(c *engine.Controller) error { return c.SetRate(rate) })
}

func (m Model) setFilter(f timeline.Filter) tea.Cmd {
	return m.do("filter", func(c *engine.Controller) error { return c.SetFilter(f) })
}

// nextRate steps through media.AllowedRates, staying put at either end.
func nextRate(current float64, dir int) float64 {
	rates := media.AllowedRates
	i := slices.Index(rates, current)
	if i < 0 {
		return 1
	}
	i = max(0, min(i+dir, len(rates)-1))
	return rates[i]
}
