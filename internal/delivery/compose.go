package delivery

import (
	"kursbot/internal/currency"
	"kursbot/internal/transport"
)

// Recipient is a user with their stored language code.
type Recipient struct {
	UserID   int64
	Language string
}

// Selector picks the text for one recipient. An empty result skips the recipient.
type Selector func(r Recipient) string

// Literal sends the same text to everyone.
func Literal(text string) Selector {
	return func(Recipient) string { return text }
}

// ByLanguage picks the recipient's language text, falling back to Russian
// when the language is unknown or has no text.
func ByLanguage(texts map[currency.Language]string) Selector {
	return func(r Recipient) string {
		if l, ok := currency.LanguageOf(r.Language); ok {
			if t := texts[l]; t != "" {
				return t
			}
		}
		return texts[currency.RU]
	}
}

// Compose builds one envelope per recipient. opts is shared by every envelope.
func Compose(recipients []Recipient, sel Selector, opts *transport.SendOptions) []Envelope {
	out := make([]Envelope, 0, len(recipients))
	for _, r := range recipients {
		text := sel(r)
		if text == "" {
			continue
		}
		out = append(out, Envelope{UserID: r.UserID, Text: text, Options: opts})
	}
	return out
}
