package config

import (
	"fmt"
	"sort"
	"strings"
)

// KeyBindings holds per-action overrides from the [keys] table. Actions not
// listed keep their defaults.
type KeyBindings map[string]string

// Actions the chat view binds.
const (
	ActionSend       = "send"
	ActionCancel     = "cancel"
	ActionCopy       = "copy"
	ActionClear      = "clear"
	ActionQuit       = "quit"
	ActionScrollUp   = "scroll_up"
	ActionScrollDown = "scroll_down"
	ActionHelp       = "help"
)

var actionRegistry = map[string]string{
	ActionSend:       "enter",
	ActionCancel:     "esc",
	ActionCopy:       "ctrl+y",
	ActionClear:      "ctrl+l",
	ActionQuit:       "ctrl+c",
	ActionScrollUp:   "pgup",
	ActionScrollDown: "pgdown",
	ActionHelp:       "alt+h",
}

// GetActionKey returns the keybinding for a specific action
// Checks user overrides first, then falls back to the defaults
func (kb KeyBindings) GetActionKey(action string) string {
	if override, ok := kb[action]; ok && override != "" {
		return override
	}
	return actionRegistry[action]
}

// DisplayActionKey returns a display-friendly version of an action's keybinding
// Example: "ctrl+shift+j" -> "Ctrl+Shift+J"
func (kb KeyBindings) DisplayActionKey(action string) string {
	key := kb.GetActionKey(action)
	if key == "" {
		return ""
	}
	return capitalizeKeybinding(key)
}

// capitalizeKeybinding capitalizes a keybinding string for display
// Examples:
//
//	"ctrl+shift+j" -> "Ctrl+Shift+J"
//	"alt+D" -> "Alt+Shift+D" (uppercase D = Shift+D)
//	"esc" -> "Esc"
func capitalizeKeybinding(key string) string {
	parts := strings.Split(key, "+")
	hasShift := false
	for _, p := range parts {
		if strings.EqualFold(p, "shift") {
			hasShift = true
			break
		}
	}

	var result []string
	for i, part := range parts {
		if part == "" {
			continue
		}
		if len(part) == 1 && part[0] >= 'A' && part[0] <= 'Z' {
			if !hasShift && i > 0 {
				result = append(result, "Shift")
			}
			result = append(result, part)
			continue
		}
		result = append(result, strings.ToUpper(part[:1])+part[1:])
	}
	return strings.Join(result, "+")
}

// Validate checks if the configuration is valid
// Returns (isValid, warningMessage)
func (kb KeyBindings) Validate() (bool, string) {
	names := make([]string, 0, len(kb))
	for action := range kb {
		names = append(names, action)
	}
	sort.Strings(names)

	for _, action := range names {
		if _, ok := actionRegistry[action]; !ok {
			return false, fmt.Sprintf("unknown action %q", action)
		}
		if kb[action] == "" {
			return false, fmt.Sprintf("empty binding for %q", action)
		}
	}

	seen := make(map[string]string, len(actionRegistry))
	actions := make([]string, 0, len(actionRegistry))
	for action := range actionRegistry {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	for _, action := range actions {
		key := kb.GetActionKey(action)
		if other, dup := seen[key]; dup {
			return false, fmt.Sprintf("%q is bound to both %s and %s", key, other, action)
		}
		seen[key] = action
	}
	return true, ""
}
