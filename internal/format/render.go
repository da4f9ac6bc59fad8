package format

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"kursbot/internal/currency"
	"kursbot/internal/history"
	"kursbot/internal/rates"
	"kursbot/pkg/tgui"
)

// The user's "buy" is the bank's sell side and vice versa.

// CurrencyCard is the single-currency view, also used for subscription sends.
// prev is the previous day's central-bank rate (0 when unknown).
func CurrencyCard(t Texts, sym currency.Symbol, snap rates.Snapshot, prev int64, now time.Time) tgui.H {
	var l tgui.Lines
	l.Add(tgui.Esc(sym.Flag()+" "), tgui.B(sym.String()+" — "+sym.Name(t.DateLang())))
	l.Add(tgui.Esc("📅 " + LongDate(t.DateLang(), now)))
	l.Blank()
	if snap.CBRate > 0 {
		l.Add(tgui.Esc("💰 "+t.CB+": "), tgui.B(GroupThousands(snap.CBRate)), tgui.Esc(Arrow(snap.CBRate, prev)))
		l.Blank()
	}
	l.Add(tgui.Esc(t.BestRates + ":"))
	if o, ok := snap.BestSell(); ok {
		l.Add(tgui.Esc(t.Buy+": "), tgui.B(GroupThousands(o.Rate)), tgui.Esc(" (🏦 "+o.Bank+")"))
	}
	if o, ok := snap.BestBuy(); ok {
		l.Add(tgui.Esc(t.Sell+": "), tgui.B(GroupThousands(o.Rate)), tgui.Esc(" (🏦 "+o.Bank+")"))
	}
	return l.H()
}

// AllRates lists every currency in order with its best offers.
func AllRates(t Texts, syms []currency.Symbol, snaps map[currency.Symbol]rates.Snapshot, prev map[currency.Symbol]int64, now time.Time) tgui.H {
	var l tgui.Lines
	l.Add(tgui.B(t.AllTitle))
	l.Add(tgui.Esc("📅 " + LongDate(t.DateLang(), now)))
	for _, sym := range syms {
		snap, ok := snaps[sym]
		if !ok {
			continue
		}
		l.Blank()
		head := []tgui.H{tgui.Esc(sym.Flag() + " "), tgui.B(sym.String())}
		if snap.CBRate > 0 {
			head = append(head, tgui.Esc("  ("+t.CB+": "+GroupThousands(snap.CBRate)+Arrow(snap.CBRate, prev[sym])+")"))
		}
		l.Add(head...)
		if o, ok := snap.BestSell(); ok {
			l.Add(tgui.Esc("  " + t.Buy + ": " + GroupThousands(o.Rate) + " — " + o.Bank))
		}
		if o, ok := snap.BestBuy(); ok {
			l.Add(tgui.Esc("  " + t.Sell + ": " + GroupThousands(o.Rate) + " — " + o.Bank))
		}
	}
	return l.H()
}

// BankRating lists every published offer on both sides.
func BankRating(t Texts, sym currency.Symbol, snap rates.Snapshot, now time.Time) tgui.H {
	var l tgui.Lines
	l.Add(tgui.Esc(sym.Flag()+" "), tgui.B(t.BanksTitle+" — "+sym.String()))
	l.Add(tgui.Esc("📅 " + LongDate(t.DateLang(), now)))
	l.Blank()
	offerList(&l, t, t.Buy, snap.Sell)
	l.Blank()
	offerList(&l, t, t.Sell, snap.Buy)
	return l.H()
}

func offerList(l *tgui.Lines, t Texts, title string, offers []rates.Offer) {
	l.Add(tgui.B(title + ":"))
	if len(offers) == 0 {
		l.Add(tgui.Esc(t.NoData))
		return
	}
	for i, o := range offers {
		l.Add(tgui.Esc("  "+strconv.Itoa(i+1)+". "+o.Bank+" — "), tgui.B(GroupThousands(o.Rate)))
	}
}

// SpreadRow is one bank quoting both sides.
type SpreadRow struct {
	Bank     string
	UserBuy  int64 // bank sells
	UserSell int64 // bank buys
	Spread   int64
}

// Percent is Spread / UserSell * 100 with two decimals.
func (r SpreadRow) Percent() string {
	if r.UserSell == 0 {
		return "0.00"
	}
	return decimal.NewFromInt(r.Spread).
		Div(decimal.NewFromInt(r.UserSell)).
		Mul(decimal.NewFromInt(100)).
		StringFixed(2)
}

// Spreads joins both sides by bank name and sorts by spread ascending.
// Banks quoting only one side are left out.
func Spreads(snap rates.Snapshot) []SpreadRow {
	type sides struct{ buy, sell int64 }
	order := []string{}
	byBank := map[string]*sides{}
	get := func(bank string) *sides {
		s, ok := byBank[bank]
		if !ok {
			s = &sides{}
			byBank[bank] = s
			order = append(order, bank)
		}
		return s
	}
	for _, o := range snap.Buy {
		get(o.Bank).sell = o.Rate
	}
	for _, o := range snap.Sell {
		get(o.Bank).buy = o.Rate
	}

	var out []SpreadRow
	for _, bank := range order {
		s := byBank[bank]
		if s.buy > 0 && s.sell > 0 {
			out = append(out, SpreadRow{Bank: bank, UserBuy: s.buy, UserSell: s.sell, Spread: s.buy - s.sell})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Spread < out[j].Spread })
	return out
}

var medals = []string{"🥇", "🥈", "🥉"}

func Spread(t Texts, sym currency.Symbol, snap rates.Snapshot, now time.Time) tgui.H {
	var l tgui.Lines
	l.Add(tgui.Esc(sym.Flag()+" "), tgui.B(t.SpreadTitle+" — "+sym.String()))
	l.Add(tgui.Esc("📅 " + LongDate(t.DateLang(), now)))
	l.Blank()

	rows := Spreads(snap)
	if len(rows) == 0 {
		l.Add(tgui.Esc(t.NoData))
		return l.H()
	}
	for i, r := range rows {
		prefix := strconv.Itoa(i+1) + "."
		if i < len(medals) {
			prefix = medals[i]
		}
		l.Add(tgui.Esc(prefix+" "), tgui.B(r.Bank), tgui.Esc(" — "+t.Difference+": "), tgui.B(GroupThousands(r.Spread)), tgui.Esc(" ("+r.Percent()+"%)"))
		l.Add(tgui.Esc("   " + t.Buy + ": " + GroupThousands(r.UserBuy) + " | " + t.Sell + ": " + GroupThousands(r.UserSell)))
	}
	return l.H()
}

// History shows stored days newest first; each day is compared with the
// older day below it.
func History(t Texts, sym currency.Symbol, recs []history.Record) tgui.H {
	var l tgui.Lines
	l.Add(tgui.Esc(sym.Flag()+" "), tgui.B(t.HistoryTitle+" — "+sym.String()))
	l.Blank()
	if len(recs) == 0 {
		l.Add(tgui.Esc(t.NoData))
		return l.H()
	}
	for i, r := range recs {
		if i > 0 {
			l.Blank()
		}
		mark := ""
		if i+1 < len(recs) {
			mark = historyMark(r.CBRate, recs[i+1].CBRate)
		}
		l.Add(tgui.B(ShortDate(t.DateLang(), r.Date)), tgui.Esc(mark))
		if r.CBRate > 0 {
			l.Add(tgui.Esc("  💰 " + t.CB + ": " + GroupThousands(r.CBRate)))
		}
		if r.SellRate > 0 {
			l.Add(tgui.Esc("  " + t.Buy + ": " + GroupThousands(r.SellRate) + withBank(r.SellName)))
		}
		if r.BuyRate > 0 {
			l.Add(tgui.Esc("  " + t.Sell + ": " + GroupThousands(r.BuyRate) + withBank(r.BuyName)))
		}
	}
	return l.H()
}

func historyMark(cur, older int64) string {
	if cur <= 0 || older <= 0 {
		return ""
	}
	switch {
	case cur > older:
		return " 📈"
	case cur < older:
		return " 📉"
	}
	return " ➡️"
}

func withBank(name string) string {
	if name == "" {
		return ""
	}
	return " — " + name
}

// Help renders the command list.
func Help(t Texts) tgui.H {
	var l tgui.Lines
	l.Add(tgui.B(t.HelpTitle))
	l.Blank()
	for _, line := range t.HelpLines {
		l.Add(tgui.Esc(line))
	}
	return l.H()
}

// Welcome is the /start reply.
func Welcome(t Texts) tgui.H {
	return tgui.Esc(t.Start + "\n\n" + t.Info)
}
