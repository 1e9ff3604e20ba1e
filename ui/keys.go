package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"datachat/config"
)

type keyMap struct {
	Send       key.Binding
	Cancel     key.Binding
	Copy       key.Binding
	Clear      key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Help       key.Binding
}

func newKeyMap(kb config.KeyBindings) keyMap {
	bind := func(action, help string) key.Binding {
		return key.NewBinding(
			key.WithKeys(strings.Split(kb.GetActionKey(action), ",")...),
			key.WithHelp(kb.DisplayActionKey(action), help),
		)
	}
	return keyMap{
		Send:       bind(config.ActionSend, "Send"),
		Cancel:     bind(config.ActionCancel, "Cancel"),
		Copy:       bind(config.ActionCopy, "Copy reply"),
		Clear:      bind(config.ActionClear, "New chat"),
		Quit:       bind(config.ActionQuit, "Quit"),
		ScrollUp:   bind(config.ActionScrollUp, "Scroll up"),
		ScrollDown: bind(config.ActionScrollDown, "Scroll down"),
		Help:       bind(config.ActionHelp, "Help"),
	}
}

func (k keyMap) footer(busy bool) string {
	bindings := []key.Binding{k.Send, k.Copy, k.Clear, k.Help, k.Quit}
	if busy {
		bindings = []key.Binding{k.Cancel, k.Copy, k.Quit}
	}
	parts := make([]string, 0, len(bindings)*2)
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key, h.Desc)
	}
	return FormatFooter(parts...)
}
