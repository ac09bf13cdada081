// Package menu implements the menu state machine. It owns the current menu
// and the per-menu render state. It never touches the display.
package menu

import (
	"fmt"

	"github.com/BeatGlow/inkpet/internal/state"
)

// ID identifies a menu.
type ID int

// Menus in ACTION order.
const (
	Main ID = iota
	Messages
	Stats
	Settings
	Count
)

func (id ID) String() string {
	switch id {
	case Main:
		return "main"
	case Messages:
		return "messages"
	case Stats:
		return "stats"
	case Settings:
		return "settings"
	default:
		return fmt.Sprintf("ID(%d)", int(id))
	}
}

// Paging and list limits.
const (
	StatsPages      = 2
	VisibleMessages = 3
)

// State is the render state of one menu.
type State struct {
	// BaseValid is true while the panel holds a base image committed for
	// this menu.
	BaseValid bool

	// LastRendered holds the value drawn in every named region.
	LastRendered map[string]string

	Cursor   int           // selected message
	Page     int           // stats page
	Selected state.Setting // selected setting
}

// EffectKind is what a button press asks the orchestrator to do: feed the
// pet, queue an outgoing poke, go back to Main, mark all messages read,
// redraw after a menu-local change or cycle Effect.Setting.
type EffectKind int

// Effects.
const (
	None EffectKind = iota
	Feed
	SendPoke
	Back
	MarkRead
	Redraw
	ChangeSetting
)

var effectNames = [...]string{"none", "feed", "send-poke", "back", "mark-read", "redraw", "change-setting"}

func (k EffectKind) String() string {
	if k >= 0 && int(k) < len(effectNames) {
		return effectNames[k]
	}
	return fmt.Sprintf("EffectKind(%d)", int(k))
}

// Effect is the result of a context action.
type Effect struct {
	Kind    EffectKind
	Setting state.Setting
}

// Machine is the menu state machine.
type Machine struct {
	current ID
	menus   [Count]State
}

// New creates a machine on the Main menu with every base image invalid.
func New() *Machine {
	m := new(Machine)
	for i := range m.menus {
		m.menus[i].LastRendered = make(map[string]string)
	}
	return m
}

// Current returns the active menu.
func (m *Machine) Current() ID {
	return m.current
}

// State returns the render state of a menu.
func (m *Machine) State(id ID) *State {
	return &m.menus[id]
}

// CurrentState returns the render state of the active menu.
func (m *Machine) CurrentState() *State {
	return &m.menus[m.current]
}

// InvalidateAll marks the base image of every menu invalid and forgets what
// was rendered, the panel ghosting state is shared by all menus.
func (m *Machine) InvalidateAll() {
	for i := range m.menus {
		m.menus[i].BaseValid = false
		clear(m.menus[i].LastRendered)
	}
}

// Advance moves to the next menu, cyclically.
func (m *Machine) Advance() ID {
	return m.enter((m.current + 1) % Count)
}

// GoBack returns to Main. It reports false if Main is already current.
func (m *Machine) GoBack() (ID, bool) {
	if m.current == Main {
		return Main, false
	}
	return m.enter(Main), true
}

func (m *Machine) enter(id ID) ID {
	m.InvalidateAll()
	m.current = id
	return id
}

// HandleReturn is the RETURN action: feed on Main, back elsewhere.
func (m *Machine) HandleReturn() Effect {
	if m.current == Main {
		return Effect{Kind: Feed}
	}
	return Effect{Kind: Back}
}

// HandleGo is the GO action. messages is the number of messages on display.
func (m *Machine) HandleGo(messages int) Effect {
	s := &m.menus[m.current]
	switch m.current {
	case Main:
		return Effect{Kind: SendPoke}
	case Messages:
		if messages <= 0 {
			return Effect{}
		}
		s.Cursor = (s.Cursor + 1) % min(messages, VisibleMessages)
		return Effect{Kind: MarkRead}
	case Stats:
		s.Page = (s.Page + 1) % StatsPages
		return Effect{Kind: Redraw}
	case Settings:
		e := Effect{Kind: ChangeSetting, Setting: s.Selected}
		s.Selected = state.Setting((int(s.Selected) + 1) % state.SettingCount)
		return e
	}
	return Effect{}
}
