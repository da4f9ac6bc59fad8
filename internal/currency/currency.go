// Package currency holds the fixed set of tracked currencies and the
// languages the bot speaks.
package currency

import "strings"

// Symbol is one of the tracked currency codes.
type Symbol string

const (
	USD Symbol = "USD"
	EUR Symbol = "EUR"
	RUB Symbol = "RUB"
	GBP Symbol = "GBP"
	KZT Symbol = "KZT"
)

// All lists the tracked currencies in display order.
var All = []Symbol{USD, EUR, RUB, GBP, KZT}

type meta struct {
	flag string
	slug string
	name map[Language]string
}

var metas = map[Symbol]meta{
	USD: {flag: "🇺🇸", slug: "dollar-ssha", name: map[Language]string{RU: "Доллар США", EN: "US Dollar", UZ: "AQSH dollari"}},
	EUR: {flag: "🇪🇺", slug: "evro", name: map[Language]string{RU: "Евро", EN: "Euro", UZ: "Yevro"}},
	RUB: {flag: "🇷🇺", slug: "rossiyskiy-rubl", name: map[Language]string{RU: "Российский рубль", EN: "Russian Ruble", UZ: "Rossiya rubli"}},
	GBP: {flag: "🇬🇧", slug: "funt-sterlingov", name: map[Language]string{RU: "Фунт стерлингов", EN: "British Pound", UZ: "Britaniya funti"}},
	KZT: {flag: "🇰🇿", slug: "kzt", name: map[Language]string{RU: "Казахстанский тенге", EN: "Kazakh Tenge", UZ: "Qozog'iston tengesi"}},
}

// Parse accepts a currency code in any case.
func Parse(s string) (Symbol, bool) {
	sym := Symbol(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := metas[sym]
	return sym, ok
}

func (s Symbol) Valid() bool {
	_, ok := metas[s]
	return ok
}

func (s Symbol) String() string { return string(s) }

func (s Symbol) Flag() string { return metas[s].flag }

// Slug is the path segment of the currency page on the rate site.
func (s Symbol) Slug() string { return metas[s].slug }

// Name returns the localized currency name, English when the language is unknown.
func (s Symbol) Name(lang Language) string {
	m := metas[s]
	if n, ok := m.name[lang]; ok {
		return n
	}
	return m.name[EN]
}
