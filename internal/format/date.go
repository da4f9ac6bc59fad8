package format

import (
	"fmt"
	"time"

	"kursbot/internal/currency"
)

var monthsLong = map[currency.Language][12]string{
	currency.RU: {"января", "февраля", "марта", "апреля", "мая", "июня", "июля", "августа", "сентября", "октября", "ноября", "декабря"},
	currency.EN: {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
	currency.UZ: {"yanvar", "fevral", "mart", "aprel", "may", "iyun", "iyul", "avgust", "sentabr", "oktabr", "noyabr", "dekabr"},
}

var monthsShort = map[currency.Language][12]string{
	currency.RU: {"янв.", "февр.", "мар.", "апр.", "мая", "июн.", "июл.", "авг.", "сент.", "окт.", "нояб.", "дек."},
	currency.EN: {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	currency.UZ: {"yan", "fev", "mar", "apr", "may", "iyn", "iyl", "avg", "sen", "okt", "noy", "dek"},
}

// LongDate renders a full localized date, e.g. "5 марта 2024 г." or "March 5, 2024".
func LongDate(lang currency.Language, t time.Time) string {
	m := int(t.Month()) - 1
	switch lang {
	case currency.RU:
		return fmt.Sprintf("%d %s %d г.", t.Day(), monthsLong[lang][m], t.Year())
	case currency.UZ:
		return fmt.Sprintf("%d-%s, %d", t.Day(), monthsLong[lang][m], t.Year())
	default:
		return fmt.Sprintf("%s %d, %d", monthsLong[currency.EN][m], t.Day(), t.Year())
	}
}

// ShortDate renders day and abbreviated month, e.g. "5 мар." or "Mar 5".
func ShortDate(lang currency.Language, t time.Time) string {
	m := int(t.Month()) - 1
	switch lang {
	case currency.RU:
		return fmt.Sprintf("%d %s", t.Day(), monthsShort[lang][m])
	case currency.UZ:
		return fmt.Sprintf("%d-%s", t.Day(), monthsShort[lang][m])
	default:
		return fmt.Sprintf("%s %d", monthsShort[currency.EN][m], t.Day())
	}
}
