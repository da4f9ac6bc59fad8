package tgui

import (
	"strings"
	"testing"
)

func TestParseData(t *testing.T) {
	cases := []struct {
		in                  string
		ns, action, payload string
		ok                  bool
	}{
		{"rate:kurs:USD", "rate", "kurs", "USD", true},
		{"sub:time:USD:9", "sub", "time", "USD:9", true},
		{"adm:stats", "adm", "stats", "", true},
		{"broken", "", "", "", false},
		{":x", "", "", "", false},
	}
	for _, tc := range cases {
		ns, action, payload, ok := ParseData(tc.in)
		if ok != tc.ok || ns != tc.ns || action != tc.action || payload != tc.payload {
			t.Fatalf("ParseData(%q)=%q,%q,%q,%v", tc.in, ns, action, payload, ok)
		}
	}
}

func TestDataRoundTrip(t *testing.T) {
	d := Data("sub", "time", "EUR:18")
	if d != "sub:time:EUR:18" {
		t.Fatalf("Data=%q", d)
	}
	if err := CheckData(d); err != nil {
		t.Fatalf("CheckData: %v", err)
	}
	if err := CheckData(strings.Repeat("x", MaxCallbackDataLen+1)); err != ErrCallbackDataTooLong {
		t.Fatalf("expected too long, got %v", err)
	}
}

func TestEscapingAndLines(t *testing.T) {
	var l Lines
	l.Add(B("a<b")).Blank().Add(Esc("x & y"), " ", Code("1"))
	want := "<b>a&lt;b</b>\n\nx &amp; y <code>1</code>"
	if got := l.H().String(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := JoinH(", ", "a", " ", "b"); got != "a, b" {
		t.Fatalf("JoinH=%q", got)
	}
}

func TestGridRows(t *testing.T) {
	kb := Grid(4, Btn("6", "a"), Btn("7", "b"), Btn("8", "c"), Btn("9", "d"), Btn("10", "e"))
	if kb.Rows() != 2 {
		t.Fatalf("rows=%d", kb.Rows())
	}
	m := Msg("hi").With(kb).Options()
	if m.ParseMode != "HTML" || m.ReplyMarkupAdapter == nil {
		t.Fatalf("unexpected options %+v", m)
	}
	if Msg("hi").Options().ReplyMarkupAdapter != nil {
		t.Fatalf("expected no markup")
	}
}

func TestTruncRunes(t *testing.T) {
	if got := TruncRunes("Привет", 3); got != "При…" {
		t.Fatalf("got %q", got)
	}
	if got := TruncRunes("abc", 3); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
