package transport

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsUnreachable(t *testing.T) {
	base := errors.New("Forbidden: bot was blocked by the user")
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", base, false},
		{"unreachable", &SendError{ChatID: 1, Code: 403, Unreachable: true, Err: base}, true},
		{"other", &SendError{ChatID: 1, Code: 429, Err: base}, false},
		{"wrapped", fmt.Errorf("deliver: %w", &SendError{ChatID: 2, Unreachable: true, Err: base}), true},
		{"sentinel", ErrUnreachable, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUnreachable(tc.err); got != tc.want {
				t.Fatalf("IsUnreachable=%v want %v", got, tc.want)
			}
		})
	}
}

func TestSendErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := &SendError{ChatID: 7, Err: base}
	if !errors.Is(err, base) {
		t.Fatalf("expected errors.Is to reach the wrapped error")
	}
	if err.Error() == "" {
		t.Fatalf("empty message")
	}
}
