package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline builds inline keyboards row by row.
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a row. Empty rows are skipped.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	if len(btn) == 0 {
		return i
	}
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Rows returns the number of rows added so far.
func (i *Inline) Rows() int { return len(i.rows) }

func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Btn creates a callback button; data is used verbatim.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// Grid splits buttons into rows of n columns.
func Grid(n int, buttons ...tele.Btn) *Inline {
	if n <= 0 {
		n = 1
	}
	in := NewInline()
	for start := 0; start < len(buttons); start += n {
		end := start + n
		if end > len(buttons) {
			end = len(buttons)
		}
		in.Row(buttons[start:end]...)
	}
	return in
}
