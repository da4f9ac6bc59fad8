package bot

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"kursbot/internal/currency"
	"kursbot/internal/format"
	"kursbot/pkg/tgui"
)

// Callback namespaces and actions.
const (
	nsRate  = "rate"
	nsSub   = "sub"
	nsAdmin = "adm"

	viewKurs    = "kurs"
	viewBanks   = "banks"
	viewSpread  = "spread"
	viewHistory = "history"

	subToggle = "toggle"
	subTime   = "time"

	admUsers     = "users"
	admStats     = "stats"
	admBroadcast = "broadcast"
	admCleanup   = "cleanup"
)

var views = []string{viewKurs, viewBanks, viewSpread, viewHistory}

// hoursPerRow matches the two-row picker of the default eight hours.
const hoursPerRow = 4

func currencyKeyboard(syms []currency.Symbol) *tgui.Inline {
	btns := make([]tele.Btn, 0, len(syms))
	for _, s := range syms {
		btns = append(btns, tgui.Btn(s.Flag()+" "+s.String(), tgui.Data(nsRate, viewKurs, s.String())))
	}
	return tgui.NewInline().Row(btns...)
}

func viewLabel(t format.Texts, view string) string {
	switch view {
	case viewKurs:
		return t.NavKurs
	case viewBanks:
		return t.NavBanks
	case viewSpread:
		return t.NavSpread
	case viewHistory:
		return t.NavHistory
	}
	return view
}

// navKeyboard links to every view except the current one, plus the
// subscription toggle.
func navKeyboard(t format.Texts, sym currency.Symbol, current string, subscribed bool) *tgui.Inline {
	btns := make([]tele.Btn, 0, len(views))
	for _, v := range views {
		if v == current {
			continue
		}
		btns = append(btns, tgui.Btn(viewLabel(t, v), tgui.Data(nsRate, v, sym.String())))
	}
	label := t.NavSubscribe
	if subscribed {
		label = t.NavUnsubscribe
	}
	return tgui.NewInline().
		Row(btns...).
		Row(tgui.Btn(label, tgui.Data(nsSub, subToggle, sym.String())))
}

func hourKeyboard(sym currency.Symbol, hours []int) *tgui.Inline {
	btns := make([]tele.Btn, 0, len(hours))
	for _, h := range hours {
		btns = append(btns, tgui.Btn(format.HourLabel(h), tgui.Data(nsSub, subTime, sym.String()+":"+strconv.Itoa(h))))
	}
	return tgui.Grid(hoursPerRow, btns...)
}

func adminKeyboard() *tgui.Inline {
	return tgui.NewInline().
		Row(tgui.Btn(format.BtnAdminUsers, tgui.Data(nsAdmin, admUsers, "")), tgui.Btn(format.BtnAdminStats, tgui.Data(nsAdmin, admStats, ""))).
		Row(tgui.Btn(format.BtnAdminBcast, tgui.Data(nsAdmin, admBroadcast, "")), tgui.Btn(format.BtnAdminCleanup, tgui.Data(nsAdmin, admCleanup, "")))
}
