package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit         key.Binding
	reload       key.Binding
	toggleHelp   key.Binding
	moveLeft     key.Binding
	moveRight    key.Binding
	moveUp       key.Binding
	moveDown     key.Binding
	grab         key.Binding
	grabColumn   key.Binding
	drop         key.Binding
	cancel       key.Binding
	prioritySort key.Binding
	detail       key.Binding
	yank         key.Binding
}

// KeyConfig holds user overrides for the configurable bindings. Blank fields keep defaults.
type KeyConfig struct {
	Grab         string
	GrabColumn   string
	Drop         string
	Cancel       string
	PrioritySort string
	Reload       string
	Detail       string
	Yank         string
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "left")),
		moveRight:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "right")),
		moveUp:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		moveDown:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		grab:         key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "grab task")),
		grabColumn:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "grab column")),
		drop:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop")),
		cancel:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		prioritySort: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "priority sort")),
		detail:       key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "task info")),
		yank:         key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id/commit")),
	}
}

// applyConfig overrides configurable bindings, keeping defaults for blank values.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.grab, cfg.Grab, "space", "grab task")
	configureBinding(&k.grabColumn, cfg.GrabColumn, "m", "grab column")
	configureBinding(&k.drop, cfg.Drop, "enter", "drop")
	configureBinding(&k.cancel, cfg.Cancel, "esc", "cancel")
	configureBinding(&k.prioritySort, cfg.PrioritySort, "p", "priority sort")
	configureBinding(&k.reload, cfg.Reload, "r", "reload")
	configureBinding(&k.detail, cfg.Detail, "i", "task info")
	configureBinding(&k.yank, cfg.Yank, "y", "copy id/commit")
}

// configureBinding replaces one binding's keys and help text.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys maps one configured key name onto the strings key.Matches compares against.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "space") {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.grab, k.grabColumn, k.drop, k.cancel, k.detail, k.prioritySort, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.grab, k.grabColumn, k.drop, k.cancel},
		{k.detail, k.yank, k.prioritySort, k.reload, k.toggleHelp, k.quit},
	}
}
