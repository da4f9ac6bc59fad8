package format

import (
	"strconv"
	"strings"
)

// GroupThousands renders n with a space between digit groups: 12750 -> "12 750".
func GroupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

// Trend is the direction of a rate against a reference value.
type Trend int

const (
	TrendNone Trend = iota
	TrendUp
	TrendDown
)

// TrendOf is None when previous is absent or zero, current is zero, or they are equal.
func TrendOf(current, previous int64) Trend {
	if previous == 0 || current == 0 {
		return TrendNone
	}
	switch {
	case current > previous:
		return TrendUp
	case current < previous:
		return TrendDown
	}
	return TrendNone
}

// Arrow is the suffix shown after a rate: " ↑", " ↓" or "".
func (t Trend) Arrow() string {
	switch t {
	case TrendUp:
		return " ↑"
	case TrendDown:
		return " ↓"
	}
	return ""
}

// Arrow is TrendOf(current, previous).Arrow().
func Arrow(current, previous int64) string { return TrendOf(current, previous).Arrow() }
