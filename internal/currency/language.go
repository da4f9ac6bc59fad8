package currency

import "strings"

// Language is a supported interface language.
type Language string

const (
	RU Language = "ru"
	EN Language = "en"
	UZ Language = "uz"
)

// Languages lists the broadcast languages in prompt order.
var Languages = []Language{RU, EN, UZ}

// LanguageOf maps a client language code ("ru", "en-US", ...) to a supported language.
func LanguageOf(code string) (Language, bool) {
	c := strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(c, "-_"); i > 0 {
		c = c[:i]
	}
	switch Language(c) {
	case RU, EN, UZ:
		return Language(c), true
	}
	return "", false
}

func (l Language) Flag() string {
	switch l {
	case RU:
		return "🇷🇺"
	case EN:
		return "🇬🇧"
	case UZ:
		return "🇺🇿"
	}
	return ""
}
