package router

import (
	"strings"
	"unicode"

	kit "kursbot/internal/transport"
)

const (
	maxMenuCommands  = 100
	maxCommandLen    = 32
	maxMenuDescBytes = 256
)

// sanitizeTelegramCommand converts a command name into the [a-z0-9_]{1,32}
// form Telegram accepts in the command menu.
func sanitizeTelegramCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if r == '_' || r == '-' || r == '/' || unicode.IsSpace(r) {
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "_")
	if len(out) > maxCommandLen {
		out = strings.TrimRight(out[:maxCommandLen], "_")
	}
	return out
}

// buildMenu lists public commands in registration order. Admin-only
// commands stay out of the menu.
func buildMenu(cmds []Command) []kit.BotCommand {
	seen := map[string]bool{}
	out := make([]kit.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		if c.Access != AccessEveryone || c.Handle == nil {
			continue
		}
		name := sanitizeTelegramCommand(c.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		desc := strings.ReplaceAll(strings.TrimSpace(c.Description), "\n", " ")
		if desc == "" {
			desc = name
		}
		if len(desc) > maxMenuDescBytes {
			desc = desc[:maxMenuDescBytes]
		}
		out = append(out, kit.BotCommand{Command: name, Description: desc})
		if len(out) >= maxMenuCommands {
			break
		}
	}
	return out
}

// Menu returns the command menu derived from the last SetRegistry call.
func (r *Router) Menu() []kit.BotCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]kit.BotCommand(nil), r.menu...)
}
