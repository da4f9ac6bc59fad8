package transport

import (
	"errors"
	"fmt"
)

// ErrUnreachable marks a permanent per-recipient failure: the user blocked
// the bot, deleted the account or never started a chat.
var ErrUnreachable = errors.New("recipient unreachable")

// SendError carries the platform error code alongside the classification.
type SendError struct {
	ChatID      int64
	Code        int
	Unreachable bool
	Err         error
}

func (e *SendError) Error() string {
	kind := "send failed"
	if e.Unreachable {
		kind = "recipient unreachable"
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s (chat=%d code=%d): %v", kind, e.ChatID, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (chat=%d): %v", kind, e.ChatID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

func (e *SendError) Is(target error) bool {
	return target == ErrUnreachable && e.Unreachable
}

// IsUnreachable reports whether err means the recipient can no longer be messaged.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
