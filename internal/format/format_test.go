package format

import (
	"strings"
	"testing"
	"time"

	"kursbot/internal/activity"
	"kursbot/internal/currency"
	"kursbot/internal/history"
	"kursbot/internal/rates"
	"kursbot/internal/storage"
)

var day = time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)

func usdSnapshot() rates.Snapshot {
	return rates.Snapshot{
		Symbol: currency.USD,
		CBRate: 12750,
		Buy:    []rates.Offer{{Bank: "Kapitalbank", Rate: 12650}, {Bank: "Ipak Yuli", Rate: 12640}, {Bank: "Hamkorbank", Rate: 12600}},
		Sell:   []rates.Offer{{Bank: "Ipak Yuli", Rate: 12700}, {Bank: "Kapitalbank", Rate: 12720}, {Bank: "Agrobank", Rate: 12800}},
	}
}

func TestGroupThousands(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		12:       "12",
		999:      "999",
		1000:     "1 000",
		12750:    "12 750",
		1234567:  "1 234 567",
		-1234567: "-1 234 567",
	}
	for in, want := range cases {
		if got := GroupThousands(in); got != want {
			t.Fatalf("GroupThousands(%d)=%q want %q", in, got, want)
		}
	}
}

func TestTrendOf(t *testing.T) {
	cases := []struct {
		cur, prev int64
		want      Trend
	}{
		{12750, 12700, TrendUp},
		{12650, 12700, TrendDown},
		{12700, 12700, TrendNone},
		{12700, 0, TrendNone},
		{0, 12700, TrendNone},
	}
	for _, tc := range cases {
		if got := TrendOf(tc.cur, tc.prev); got != tc.want {
			t.Fatalf("TrendOf(%d,%d)=%v want %v", tc.cur, tc.prev, got, tc.want)
		}
	}
}

func TestDates(t *testing.T) {
	cases := []struct {
		lang        currency.Language
		long, short string
	}{
		{currency.RU, "5 марта 2024 г.", "5 мар."},
		{currency.EN, "March 5, 2024", "Mar 5"},
		{currency.UZ, "5-mart, 2024", "5-mar"},
	}
	for _, tc := range cases {
		if got := LongDate(tc.lang, day); got != tc.long {
			t.Fatalf("LongDate(%s)=%q want %q", tc.lang, got, tc.long)
		}
		if got := ShortDate(tc.lang, day); got != tc.short {
			t.Fatalf("ShortDate(%s)=%q want %q", tc.lang, got, tc.short)
		}
	}
}

func TestForFallsBackToEnglish(t *testing.T) {
	if got := For("ru-RU").Lang; got != currency.RU {
		t.Fatalf("ru-RU -> %q", got)
	}
	fb := For("de")
	if fb.Lang != "" || fb.DateLang() != currency.EN {
		t.Fatalf("fallback lang=%q date=%q", fb.Lang, fb.DateLang())
	}
	if got := For("en").Subscribed(currency.EUR, 9); got != "🔔 Subscribed to EUR rate (9:00)" {
		t.Fatalf("Subscribed=%q", got)
	}
}

func TestCurrencyCardShowsArrowAndSwappedSides(t *testing.T) {
	got := string(CurrencyCard(For("en"), currency.USD, usdSnapshot(), 12700, day))

	for _, want := range []string{
		"<b>USD — US Dollar</b>",
		"📅 March 5, 2024",
		"CB Rate: <b>12 750</b> ↑",
		"🔹 Buy: <b>12 700</b> (🏦 Ipak Yuli)",
		"🔸 Sell: <b>12 650</b> (🏦 Kapitalbank)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("card missing %q:\n%s", want, got)
		}
	}
}

func TestCurrencyCardWithoutCBRate(t *testing.T) {
	snap := usdSnapshot()
	snap.CBRate = 0
	got := string(CurrencyCard(For("en"), currency.USD, snap, 12700, day))
	if strings.Contains(got, "CB Rate") {
		t.Fatalf("unexpected cb line:\n%s", got)
	}
}

func TestAllRatesSkipsMissing(t *testing.T) {
	snaps := map[currency.Symbol]rates.Snapshot{currency.USD: usdSnapshot()}
	got := string(AllRates(For("en"), currency.All, snaps, map[currency.Symbol]int64{currency.USD: 12800}, day))
	if !strings.Contains(got, "(CB Rate: 12 750 ↓)") {
		t.Fatalf("missing cb with arrow:\n%s", got)
	}
	if strings.Contains(got, "EUR") {
		t.Fatalf("EUR rendered without data:\n%s", got)
	}
}

func TestSpreads(t *testing.T) {
	rows := Spreads(usdSnapshot())
	if len(rows) != 2 {
		t.Fatalf("rows=%+v", rows)
	}
	// Ipak Yuli: 12700-12640=60, Kapitalbank: 12720-12650=70
	if rows[0].Bank != "Ipak Yuli" || rows[0].Spread != 60 {
		t.Fatalf("first=%+v", rows[0])
	}
	if rows[1].Bank != "Kapitalbank" || rows[1].Spread != 70 {
		t.Fatalf("second=%+v", rows[1])
	}
	if got := rows[0].Percent(); got != "0.47" {
		t.Fatalf("percent=%q", got)
	}

	out := string(Spread(For("en"), currency.USD, usdSnapshot(), day))
	if !strings.Contains(out, "🥇 <b>Ipak Yuli</b>") || !strings.Contains(out, "🥈 <b>Kapitalbank</b>") {
		t.Fatalf("medals missing:\n%s", out)
	}
	if strings.Contains(out, "Agrobank") || strings.Contains(out, "Hamkorbank") {
		t.Fatalf("one-sided bank rendered:\n%s", out)
	}
}

func TestBankRatingEmptySide(t *testing.T) {
	snap := usdSnapshot()
	snap.Buy = nil
	got := string(BankRating(For("en"), currency.USD, snap, day))
	if !strings.Contains(got, "1. Ipak Yuli — <b>12 700</b>") {
		t.Fatalf("missing buy list:\n%s", got)
	}
	if !strings.Contains(got, "No data") {
		t.Fatalf("missing no-data marker:\n%s", got)
	}
}

func TestHistoryMarks(t *testing.T) {
	recs := []history.Record{
		{Date: day, CBRate: 12750, SellRate: 12800, SellName: "Agrobank"},
		{Date: day.AddDate(0, 0, -1), CBRate: 12700},
		{Date: day.AddDate(0, 0, -2), CBRate: 12700},
		{Date: day.AddDate(0, 0, -3)},
	}
	got := string(History(For("en"), currency.USD, recs))
	for _, want := range []string{
		"<b>Mar 5</b> 📈",
		"<b>Mar 4</b> ➡️",
		"🔹 Buy: 12 800 — Agrobank",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("history missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "<b>Mar 3</b> ") || strings.Contains(got, "<b>Mar 2</b> ") {
		t.Fatalf("unexpected mark without both rates:\n%s", got)
	}
}

func TestHistoryEmpty(t *testing.T) {
	if got := string(History(For("ru"), currency.EUR, nil)); !strings.Contains(got, "Нет данных") {
		t.Fatalf("got:\n%s", got)
	}
}

func TestEscapesBankNames(t *testing.T) {
	snap := rates.Snapshot{Symbol: currency.USD, Sell: []rates.Offer{{Bank: "A&B <Bank>", Rate: 1}}}
	got := string(CurrencyCard(For("en"), currency.USD, snap, 0, day))
	if !strings.Contains(got, "A&amp;B &lt;Bank&gt;") {
		t.Fatalf("bank name not escaped:\n%s", got)
	}
}

func TestUsersList(t *testing.T) {
	if got := string(UsersList(nil, nil)); !strings.Contains(got, "нет пользователей") {
		t.Fatalf("empty list=%q", got)
	}
	users := []storage.User{
		{ID: 42, FirstName: "Ann", Username: "ann", Language: "en", CreatedAt: day},
		{ID: 43, FirstName: "Bob", CreatedAt: day},
	}
	got := string(UsersList(users, time.UTC))
	for _, want := range []string{"(2):", "<code>42</code>", "@ann", "Язык: неизвестен", "05.03.2024 09:00"} {
		if !strings.Contains(got, want) {
			t.Fatalf("users missing %q:\n%s", want, got)
		}
	}
}

func TestStatsWithoutSubscriptions(t *testing.T) {
	got := string(Stats(storage.UserStats{Total: 10, Today: 1, Week: 4}, nil))
	if !strings.Contains(got, "👥 Всего: <b>10</b>") || !strings.Contains(got, "Подписок нет") {
		t.Fatalf("stats:\n%s", got)
	}
}

func TestDigest(t *testing.T) {
	snap := activity.Snapshot{
		Actions:     map[string]int{"kurs": 3, "all": 1},
		ActiveUsers: 2,
		NewUsers:    []activity.NewUser{{Name: "Ann", Username: "ann"}},
		Currencies:  map[currency.Symbol]int{currency.USD: 3},
		SubsAdded:   1,
		Blocked:     2,
	}
	got := string(Digest(DigestInput{
		Date:     day,
		Activity: snap,
		Users:    storage.UserStats{Total: 5},
		Subs:     []storage.CurrencyCount{{Currency: "USD", Count: 2}},
	}))
	for _, want := range []string{
		"5 марта 2024 г.",
		"Активных: <b>2</b>",
		"Действий: <b>4</b>",
		"kurs: 3",
		"• Ann (@ann)",
		"Подписки: +1 / -0",
		"Заблокировали: 2",
		"🇺🇸 USD: <b>2</b>",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("digest missing %q:\n%s", want, got)
		}
	}
}

func TestNewUserNotice(t *testing.T) {
	if got := string(NewUserNotice("Ann", "")); got != "🆕 Новый: Ann (без юзернейма)" {
		t.Fatalf("got %q", got)
	}
}
