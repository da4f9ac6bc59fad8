package rates

import (
	"errors"
	"fmt"

	"kursbot/internal/currency"
)

// ErrFetch marks a failed retrieval or extraction.
var ErrFetch = errors.New("rate fetch failed")

type FetchError struct {
	Symbol currency.Symbol
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }
