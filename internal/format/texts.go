package format

import (
	"strconv"
	"strings"

	"kursbot/internal/currency"
)

// Texts is one language's string table.
type Texts struct {
	Lang currency.Language // empty for the fallback table

	Start          string
	Info           string
	HelpTitle      string
	HelpLines      []string
	CB             string
	BestRates      string
	Buy            string
	Sell           string
	Difference     string
	ChooseCurrency string
	AllTitle       string
	BanksTitle     string
	SpreadTitle    string
	HistoryTitle   string
	NoData         string
	Error          string
	NavKurs        string
	NavBanks       string
	NavSpread      string
	NavHistory     string
	NavSubscribe   string
	NavUnsubscribe string
	chooseTime     string
	subscribed     string
	unsubscribed   string
}

var tables = map[currency.Language]Texts{
	currency.RU: {
		Lang:      currency.RU,
		Start:     "👋 Привет! Добро пожаловать.",
		Info:      "📌 Чтобы узнать курс валют, отправьте /kurs\n\n📖 Все команды: /help",
		HelpTitle: "📖 Доступные команды:",
		HelpLines: []string{
			"/kurs — курс валюты (банки, спред, история — через кнопки)",
			"/all — курсы всех валют",
			"/help — список команд",
		},
		CB:             "Курс ЦБ РУз",
		BestRates:      "🏦 Лучшие курсы в банках",
		Buy:            "🔹 Купить",
		Sell:           "🔸 Продать",
		Difference:     "Разница",
		ChooseCurrency: "Выберите валюту:",
		AllTitle:       "📊 Все курсы на сегодня",
		BanksTitle:     "🏦 Рейтинг банков",
		SpreadTitle:    "📊 Спред по банкам",
		HistoryTitle:   "📈 История курса",
		NoData:         "Нет данных",
		Error:          "❌ Ошибка получения курса валют.",
		NavKurs:        "📊 Курс",
		NavBanks:       "🏦 Банки",
		NavSpread:      "📈 Спред",
		NavHistory:     "📅 История",
		NavSubscribe:   "🔔 Подписка",
		NavUnsubscribe: "🔕 Отписка",
		chooseTime:     "🕐 Выберите время рассылки {currency}:",
		subscribed:     "🔔 Подписка на курс {currency} ({time})",
		unsubscribed:   "🔕 Отписка от курса {currency}",
	},
	currency.EN: {
		Lang:      currency.EN,
		Start:     "👋 Hello! Welcome.",
		Info:      "📌 To get exchange rates, send /kurs\n\n📖 All commands: /help",
		HelpTitle: "📖 Available commands:",
		HelpLines: []string{
			"/kurs — currency rate (banks, spread, history — via buttons)",
			"/all — all currency rates",
			"/help — command list",
		},
		CB:             "CB Rate",
		BestRates:      "🏦 Best rates in banks",
		Buy:            "🔹 Buy",
		Sell:           "🔸 Sell",
		Difference:     "Difference",
		ChooseCurrency: "Choose currency:",
		AllTitle:       "📊 All rates for today",
		BanksTitle:     "🏦 Bank rating",
		SpreadTitle:    "📊 Bank spreads",
		HistoryTitle:   "📈 Rate history",
		NoData:         "No data",
		Error:          "❌ Error getting exchange rate.",
		NavKurs:        "📊 Rate",
		NavBanks:       "🏦 Banks",
		NavSpread:      "📈 Spread",
		NavHistory:     "📅 History",
		NavSubscribe:   "🔔 Subscribe",
		NavUnsubscribe: "🔕 Unsubscribe",
		chooseTime:     "🕐 Choose delivery time for {currency}:",
		subscribed:     "🔔 Subscribed to {currency} rate ({time})",
		unsubscribed:   "🔕 Unsubscribed from {currency} rate",
	},
	currency.UZ: {
		Lang:      currency.UZ,
		Start:     "👋 Salom! Xush kelibsiz.",
		Info:      "📌 Valyuta kursini bilish uchun /kurs yuboring\n\n📖 Barcha buyruqlar: /help",
		HelpTitle: "📖 Mavjud buyruqlar:",
		HelpLines: []string{
			"/kurs — valyuta kursi (banklar, spred, tarix — tugmalar orqali)",
			"/all — barcha valyuta kurslari",
			"/help — buyruqlar ro'yxati",
		},
		CB:             "MB kursi",
		BestRates:      "🏦 Banklardagi eng yaxshi kurslar",
		Buy:            "🔹 Sotib olish",
		Sell:           "🔸 Sotish",
		Difference:     "Farq",
		ChooseCurrency: "Valyutani tanlang:",
		AllTitle:       "📊 Bugungi barcha kurslar",
		BanksTitle:     "🏦 Banklar reytingi",
		SpreadTitle:    "📊 Banklar bo'yicha spred",
		HistoryTitle:   "📈 Kurs tarixi",
		NoData:         "Ma'lumot yo'q",
		Error:          "❌ Valyuta kursini olishda xatolik.",
		NavKurs:        "📊 Kurs",
		NavBanks:       "🏦 Banklar",
		NavSpread:      "📈 Spred",
		NavHistory:     "📅 Tarix",
		NavSubscribe:   "🔔 Obuna",
		NavUnsubscribe: "🔕 Bekor qilish",
		chooseTime:     "🕐 {currency} uchun yuborish vaqtini tanlang:",
		subscribed:     "🔔 {currency} kursiga obuna ({time})",
		unsubscribed:   "🔕 {currency} kursidan obuna bekor qilindi",
	},
}

var fallback = func() Texts {
	t := tables[currency.EN]
	t.Lang = ""
	t.Start = "👋 Welcome!"
	t.HelpLines = []string{
		"/kurs — currency rate (banks, spread, history — via buttons)",
		"/all — all rates",
		"/help — command list",
	}
	return t
}()

// For picks the table for a client language code; unknown codes get the
// English fallback.
func For(code string) Texts {
	if l, ok := currency.LanguageOf(code); ok {
		return tables[l]
	}
	return fallback
}

// DateLang is the language used for month names.
func (t Texts) DateLang() currency.Language {
	if t.Lang == "" {
		return currency.EN
	}
	return t.Lang
}

func HourLabel(h int) string { return strconv.Itoa(h) + ":00" }

func (t Texts) ChooseTime(sym currency.Symbol) string {
	return strings.ReplaceAll(t.chooseTime, "{currency}", sym.String())
}

func (t Texts) Subscribed(sym currency.Symbol, hour int) string {
	return strings.NewReplacer("{currency}", sym.String(), "{time}", HourLabel(hour)).Replace(t.subscribed)
}

func (t Texts) Unsubscribed(sym currency.Symbol) string {
	return strings.ReplaceAll(t.unsubscribed, "{currency}", sym.String())
}
