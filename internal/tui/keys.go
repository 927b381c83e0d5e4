package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Prev       key.Binding
	Next       key.Binding
	First      key.Binding
	Last       key.Binding
	Play       key.Binding
	Tour       key.Binding
	Faster     key.Binding
	Slower     key.Binding
	NextMarker key.Binding
	PrevMarker key.Binding
	Jump       key.Binding
	ErrorsOnly key.Binding
	Group      key.Binding
	Search     key.Binding
	Clear      key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Prev:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev item")),
		Next:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next item")),
		First:      key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first")),
		Last:       key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last")),
		Play:       key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		Tour:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tour")),
		Faster:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
		Slower:     key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "slower")),
		NextMarker: key.NewBinding(key.WithKeys("]", "tab"), key.WithHelp("]", "next marker")),
		PrevMarker: key.NewBinding(key.WithKeys("[", "shift+tab"), key.WithHelp("[", "prev marker")),
		Jump:       key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("0-9", "jump to 0%-90%")),
		ErrorsOnly: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "errors only")),
		Group:      key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "group by test")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Clear:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear filter")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Tour, k.Next, k.Prev, k.NextMarker, k.Search, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.First, k.Last},
		{k.Play, k.Tour, k.Faster, k.Slower},
		{k.NextMarker, k.PrevMarker, k.Jump},
		{k.ErrorsOnly, k.Group, k.Search, k.Clear},
		{k.Help, k.Quit},
	}
}
