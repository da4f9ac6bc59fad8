package broadcast

import (
	"kursbot/internal/currency"
	"kursbot/pkg/tgui"
)

// Callback data understood by the bot router and mapped to events.
const (
	CbNamespace  = "bc"
	CbSingle     = "bc:single"
	CbMulti      = "bc:multi"
	CbSend       = "bc:send"
	CbCancel     = "bc:cancel"
	CbEditSingle = "bc:edit:single"
	CbEditRU     = "bc:edit:ru"
	CbEditEN     = "bc:edit:en"
	CbEditUZ     = "bc:edit:uz"
)

var (
	promptChooseType = tgui.Raw("📢 <b>Рассылка</b>\n\nВыберите тип:")
	promptSingle     = tgui.Esc("📝 Введите текст рассылки:")
	promptSingleEdit = tgui.Esc("📝 Введите новый текст рассылки:")
	promptLang       = map[currency.Language]tgui.H{
		currency.RU: tgui.Raw("🇷🇺 Введите текст на <b>русском</b>:"),
		currency.EN: tgui.Raw("🇬🇧 Введите текст на <b>английском</b>:"),
		currency.UZ: tgui.Raw("🇺🇿 Введите текст на <b>узбекском</b>:"),
	}
	promptLangEdit = map[currency.Language]tgui.H{
		currency.RU: tgui.Raw("🇷🇺 Введите новый текст на <b>русском</b>:"),
		currency.EN: tgui.Raw("🇬🇧 Введите новый текст на <b>английском</b>:"),
		currency.UZ: tgui.Raw("🇺🇿 Введите новый текст на <b>узбекском</b>:"),
	}
	langTitle = map[currency.Language]string{
		currency.RU: "🇷🇺 Русский:",
		currency.EN: "🇬🇧 English:",
		currency.UZ: "🇺🇿 O'zbek:",
	}
)

// usersFailed tells the admin the fan-out could not load its recipients.
var usersFailed = tgui.Esc("❌ Не удалось получить список пользователей.")

func chooseTypeKeyboard() *tgui.Inline {
	return tgui.NewInline().
		Row(tgui.Btn("🌐 Мультиязычный", CbMulti), tgui.Btn("📝 Один для всех", CbSingle)).
		Row(tgui.Btn("❌ Отмена", CbCancel))
}

// preview shows the composed texts as they will be delivered. Broadcast
// texts are administrator-authored HTML and are embedded unescaped.
func preview(s *session) tgui.Message {
	var l tgui.Lines
	l.Add(tgui.B("📢 Превью рассылки:"))
	l.Blank()

	kb := tgui.NewInline()
	if s.mode == ModeSingle {
		l.Add(tgui.Raw(s.texts[""]))
		kb.Row(tgui.Btn("✏️ Изменить", CbEditSingle))
	} else {
		for i, lang := range currency.Languages {
			if i > 0 {
				l.Blank()
			}
			l.Add(tgui.B(langTitle[lang]))
			l.Add(tgui.Raw(s.texts[lang]))
		}
		kb.Row(tgui.Btn("✏️ RU", CbEditRU), tgui.Btn("✏️ EN", CbEditEN), tgui.Btn("✏️ UZ", CbEditUZ))
	}
	kb.Row(tgui.Btn("✅ Отправить", CbSend), tgui.Btn("❌ Отмена", CbCancel))
	return tgui.Msg(l.H()).With(kb)
}

// EventForCallback maps bc:* callback data to an event kind.
func EventForCallback(data string) (EventKind, bool) {
	switch data {
	case CbSingle:
		return EvSingle, true
	case CbMulti:
		return EvMulti, true
	case CbSend:
		return EvSend, true
	case CbCancel:
		return EvCancel, true
	case CbEditSingle:
		return EvEditSingle, true
	case CbEditRU:
		return EvEditRU, true
	case CbEditEN:
		return EvEditEN, true
	case CbEditUZ:
		return EvEditUZ, true
	}
	return 0, false
}
