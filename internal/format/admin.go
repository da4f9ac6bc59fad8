package format

import (
	"strconv"
	"time"

	"kursbot/internal/activity"
	"kursbot/internal/currency"
	"kursbot/internal/storage"
	"kursbot/pkg/tgui"
)

// Administrator-facing texts are Russian only.

const (
	AdminPanelTitle  = "⚙️ Админ-панель"
	BtnAdminUsers    = "📋 Пользователи"
	BtnAdminStats    = "📊 Статистика"
	BtnAdminBcast    = "📢 Рассылка"
	BtnAdminCleanup  = "🧹 Очистка"
	CleanupStarted   = "🧹 Проверяю пользователей..."
	BroadcastAborted = "❌ Рассылка отменена."
	BroadcastStarted = "⏳ Рассылка начата..."
)

const userDateLayout = "02.01.2006 15:04"

func AdminPanel() tgui.H { return tgui.B(AdminPanelTitle) }

// UsersList renders every known user, oldest first.
func UsersList(users []storage.User, loc *time.Location) tgui.H {
	if len(users) == 0 {
		return tgui.Esc("📭 В базе данных нет пользователей.")
	}
	if loc == nil {
		loc = time.UTC
	}
	var l tgui.Lines
	l.Add(tgui.B("📋 Список пользователей (" + strconv.Itoa(len(users)) + "):"))
	for i, u := range users {
		l.Blank()
		l.Add(tgui.Esc(strconv.Itoa(i+1)+". 🆔 "), tgui.Code(strconv.FormatInt(u.ID, 10)))
		name := u.FirstName
		if name == "" {
			name = "—"
		}
		l.Add(tgui.Esc("👤 Имя: "), tgui.Mention(name, u.ID))
		if u.Username != "" {
			l.Add(tgui.Esc("🔗 Юзернейм: @" + u.Username))
		} else {
			l.Add(tgui.Esc("🔗 Юзернейм: нет"))
		}
		lang := u.Language
		if lang == "" {
			lang = "неизвестен"
		}
		l.Add(tgui.Esc("🌐 Язык: " + lang))
		l.Add(tgui.Esc("📅 Дата: " + u.CreatedAt.In(loc).Format(userDateLayout)))
	}
	return l.H()
}

// Stats renders user totals and subscription counts per currency.
func Stats(st storage.UserStats, subs []storage.CurrencyCount) tgui.H {
	var l tgui.Lines
	l.Add(tgui.B("📊 Статистика"))
	l.Blank()
	l.Add(tgui.Esc("👥 Всего: "), tgui.B(strconv.Itoa(st.Total)))
	l.Add(tgui.Esc("🆕 Сегодня: "), tgui.B(strconv.Itoa(st.Today)))
	l.Add(tgui.Esc("📅 За неделю: "), tgui.B(strconv.Itoa(st.Week)))
	l.Blank()
	subCounts(&l, subs)
	return l.H()
}

func subCounts(l *tgui.Lines, subs []storage.CurrencyCount) {
	if len(subs) == 0 {
		l.Add(tgui.Esc("🔔 Подписок нет"))
		return
	}
	l.Add(tgui.Esc("🔔 Подписки:"))
	for _, c := range subs {
		flag := ""
		if sym, ok := currency.Parse(c.Currency); ok {
			flag = sym.Flag() + " "
		}
		l.Add(tgui.Esc("  "+flag+c.Currency+": "), tgui.B(strconv.Itoa(c.Count)))
	}
}

func CleanupDone(checked, removed int) tgui.H {
	return tgui.Esc("🧹 Очистка завершена. Проверено: " + strconv.Itoa(checked) + ", удалено: " + strconv.Itoa(removed))
}

// NewUserNotice is sent to the administrator when a user starts the bot for the first time.
func NewUserNotice(name, username string) tgui.H {
	uname := "без юзернейма"
	if username != "" {
		uname = "@" + username
	}
	return tgui.Esc("🆕 Новый: " + name + " (" + uname + ")")
}

// BroadcastSummary reports a finished broadcast.
func BroadcastSummary(sent, blocked, errs int) tgui.H {
	var l tgui.Lines
	l.Add(tgui.B("📢 Рассылка завершена!"))
	l.Blank()
	l.Add(tgui.Esc("✅ Отправлено: " + strconv.Itoa(sent)))
	l.Add(tgui.Esc("🚫 Заблокировали: " + strconv.Itoa(blocked)))
	l.Add(tgui.Esc("❌ Ошибок: " + strconv.Itoa(errs)))
	return l.H()
}

// DigestInput is everything the daily digest shows.
type DigestInput struct {
	Date     time.Time
	Activity activity.Snapshot
	Users    storage.UserStats
	Subs     []storage.CurrencyCount
}

// Digest renders the daily administrator report.
func Digest(in DigestInput) tgui.H {
	a := in.Activity
	var l tgui.Lines
	l.Add(tgui.B("📊 Дайджест · " + LongDate(currency.RU, in.Date)))
	l.Blank()
	l.Add(tgui.Esc("👤 Активных: "), tgui.B(strconv.Itoa(a.ActiveUsers)))
	l.Add(tgui.Esc("🔄 Действий: "), tgui.B(strconv.Itoa(a.TotalActions())))
	for _, c := range a.TopActions() {
		l.Add(tgui.Esc("  " + c.Key + ": " + strconv.Itoa(c.Count)))
	}
	if top := a.TopCurrencies(); len(top) > 0 {
		l.Add(tgui.Esc("💱 Валюты:"))
		for _, c := range top {
			l.Add(tgui.Esc("  " + c.Key + ": " + strconv.Itoa(c.Count)))
		}
	}
	l.Add(tgui.Esc("🆕 Новых: "), tgui.B(strconv.Itoa(len(a.NewUsers))))
	for _, u := range a.NewUsers {
		uname := ""
		if u.Username != "" {
			uname = " (@" + u.Username + ")"
		}
		l.Add(tgui.Esc("  • " + u.Name + uname))
	}
	l.Add(tgui.Esc("🔔 Подписки: +" + strconv.Itoa(a.SubsAdded) + " / -" + strconv.Itoa(a.SubsRemoved)))
	l.Add(tgui.Esc("🚫 Заблокировали: " + strconv.Itoa(a.Blocked)))
	l.Blank()
	l.Add(tgui.Esc("👥 Всего: "+strconv.Itoa(in.Users.Total)+" · сегодня: "+strconv.Itoa(in.Users.Today)+" · за неделю: "+strconv.Itoa(in.Users.Week)))
	subCounts(&l, in.Subs)
	return l.H()
}
