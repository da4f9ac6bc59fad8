package tgui

import (
	"fmt"
	"html"
	"strings"
)

// H is HTML that is already safe for ParseMode=HTML.
type H string

func (h H) String() string { return string(h) }

// Esc escapes plain text.
func Esc(s string) H { return H(html.EscapeString(s)) }

// Raw marks s as already-safe HTML.
func Raw(s string) H { return H(s) }

// Escf formats then escapes.
func Escf(format string, args ...any) H { return Esc(fmt.Sprintf(format, args...)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + string(inner) + "</" + tag + ">") }

func B(s string) H    { return wrap("b", Esc(s)) }
func I(s string) H    { return wrap("i", Esc(s)) }
func Code(s string) H { return wrap("code", Esc(s)) }

func Link(text, url string) H {
	return H(`<a href="` + html.EscapeString(url) + `">` + html.EscapeString(text) + `</a>`)
}

// Mention links to a Telegram user by ID.
func Mention(name string, userID int64) H {
	return Link(name, fmt.Sprintf("tg://user?id=%d", userID))
}

// JoinH joins parts with sep, skipping blank parts.
func JoinH(sep string, parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(string(p)) == "" {
			continue
		}
		ss = append(ss, string(p))
	}
	return H(strings.Join(ss, sep))
}

// Lines accumulates HTML lines; blank lines are kept.
type Lines struct {
	b strings.Builder
	n int
}

func (l *Lines) Add(parts ...H) *Lines {
	if l.n > 0 {
		l.b.WriteByte('\n')
	}
	for _, p := range parts {
		l.b.WriteString(string(p))
	}
	l.n++
	return l
}

// Blank appends an empty line.
func (l *Lines) Blank() *Lines { return l.Add() }

func (l *Lines) H() H { return H(l.b.String()) }
