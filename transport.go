package main

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Action is a transport command. Keyboard shortcuts and mouse clicks both
// resolve to an Action so every control has one implementation.
type Action int

const (
	ActionNone Action = iota
	ActionPlayPause
	ActionStop
	ActionNext
	ActionPrev
	ActionToggleLoop
	ActionToggleShuffle
	ActionSeekForward
	ActionSeekBackward
	ActionVolumeUp
	ActionVolumeDown
)

var actionNames = map[Action]string{
	ActionNone:          "none",
	ActionPlayPause:     "play/pause",
	ActionStop:          "stop",
	ActionNext:          "next",
	ActionPrev:          "prev",
	ActionToggleLoop:    "loop",
	ActionToggleShuffle: "shuffle",
	ActionSeekForward:   "seek +5s",
	ActionSeekBackward:  "seek -5s",
	ActionVolumeUp:      "volume up",
	ActionVolumeDown:    "volume down",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Dispatch runs a transport command.
func (c *Controller) Dispatch(a Action) Attempt {
	switch a {
	case ActionPlayPause:
		return c.PlayPause()
	case ActionStop:
		c.Stop()
	case ActionNext:
		return c.NextTrack()
	case ActionPrev:
		return c.PrevTrack()
	case ActionToggleLoop:
		c.ToggleLoop()
	case ActionToggleShuffle:
		c.ToggleShuffle()
	case ActionSeekForward:
		c.SeekBy(seekStep)
	case ActionSeekBackward:
		c.SeekBy(-seekStep)
	case ActionVolumeUp:
		c.SetVolume(c.media.Volume() + volumeStep)
	case ActionVolumeDown:
		c.SetVolume(c.media.Volume() - volumeStep)
	}
	return Attempt{}
}

// keyMap holds every key binding of the player.
type keyMap struct {
	PlayPause    key.Binding
	Stop         key.Binding
	Next         key.Binding
	Prev         key.Binding
	Loop         key.Binding
	Shuffle      key.Binding
	SeekForward  key.Binding
	SeekBackward key.Binding
	VolumeUp     key.Binding
	VolumeDown   key.Binding
	Up           key.Binding
	Down         key.Binding
	Open         key.Binding
	Filter       key.Binding
	Download     key.Binding
	Theme        key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		PlayPause:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Stop:         key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Next:         key.NewBinding(key.WithKeys("n", "N"), key.WithHelp("n", "next")),
		Prev:         key.NewBinding(key.WithKeys("p", "P"), key.WithHelp("p", "prev")),
		Loop:         key.NewBinding(key.WithKeys("l", "L"), key.WithHelp("l", "loop")),
		Shuffle:      key.NewBinding(key.WithKeys("s", "S"), key.WithHelp("s", "shuffle")),
		SeekForward:  key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "+5s")),
		SeekBackward: key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "-5s")),
		VolumeUp:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "vol up")),
		VolumeDown:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "vol down")),
		Up:           key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:         key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open album")),
		Filter:       key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Download:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
		Theme:        key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Next, k.Prev, k.Loop, k.Shuffle, k.Open, k.Filter, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Stop, k.SeekForward, k.SeekBackward},
		{k.Next, k.Prev, k.Loop, k.Shuffle},
		{k.VolumeUp, k.VolumeDown, k.Download, k.Theme},
		{k.Up, k.Down, k.Open, k.Filter, k.Help, k.Quit},
	}
}

// transportAction maps a key press to its transport command.
func (k keyMap) transportAction(msg tea.KeyMsg) Action {
	switch {
	case key.Matches(msg, k.PlayPause):
		return ActionPlayPause
	case key.Matches(msg, k.Stop):
		return ActionStop
	case key.Matches(msg, k.Next):
		return ActionNext
	case key.Matches(msg, k.Prev):
		return ActionPrev
	case key.Matches(msg, k.Loop):
		return ActionToggleLoop
	case key.Matches(msg, k.Shuffle):
		return ActionToggleShuffle
	case key.Matches(msg, k.SeekForward):
		return ActionSeekForward
	case key.Matches(msg, k.SeekBackward):
		return ActionSeekBackward
	case key.Matches(msg, k.VolumeUp):
		return ActionVolumeUp
	case key.Matches(msg, k.VolumeDown):
		return ActionVolumeDown
	}
	return ActionNone
}
