package adapter

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "kursbot/internal/transport"
)

// classify wraps a telebot error into *transport.SendError. Any 403 (blocked,
// deactivated, never started) and "chat not found" mean the user is gone.
func classify(chatID int64, err error) error {
	if err == nil {
		return nil
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &kit.SendError{ChatID: chatID, Code: 429, Err: err}
	}
	var te *tele.Error
	if errors.As(err, &te) {
		return &kit.SendError{ChatID: chatID, Code: te.Code, Unreachable: unreachable(te), Err: err}
	}
	return &kit.SendError{ChatID: chatID, Err: err}
}

func unreachable(te *tele.Error) bool {
	if te.Code == 403 {
		return true
	}
	return te.Code == 400 && strings.Contains(strings.ToLower(te.Description), "chat not found")
}
