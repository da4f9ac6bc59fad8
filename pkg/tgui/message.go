package tgui

import (
	kit "kursbot/internal/transport"
)

// Message is rendered HTML plus an optional inline keyboard.
type Message struct {
	Text     H
	Keyboard *Inline
}

func Msg(text H) Message { return Message{Text: text} }

func (m Message) With(kb *Inline) Message {
	m.Keyboard = kb
	return m
}

// Options returns send options for HTML parse mode with previews disabled.
func (m Message) Options() *kit.SendOptions {
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if m.Keyboard != nil && m.Keyboard.Rows() > 0 {
		opt.ReplyMarkupAdapter = m.Keyboard.Markup()
	}
	return opt
}
