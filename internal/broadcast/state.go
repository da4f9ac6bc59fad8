package broadcast

import (
	"strconv"

	"kursbot/internal/currency"
)

type State int

const (
	Idle State = iota
	ChooseType
	InputSingle
	InputRU
	InputEN
	InputUZ
	Confirm
)

var stateNames = [...]string{"idle", "choose_type", "input_single", "input_ru", "input_en", "input_uz", "confirm"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

type EventKind int

const (
	EvStart EventKind = iota
	EvSingle
	EvMulti
	EvText
	EvEditSingle
	EvEditRU
	EvEditEN
	EvEditUZ
	EvSend
	EvCancel
)

// Event is one administrator input. Text is set for EvText only.
type Event struct {
	Kind   EventKind
	UserID int64
	ChatID int64
	Text   string
}

type Mode int

const (
	ModeSingle Mode = iota + 1
	ModeMulti
)

// inputOrder is the prompt sequence of a multi-language compose.
var inputOrder = []State{InputRU, InputEN, InputUZ}

var inputLang = map[State]currency.Language{
	InputRU: currency.RU,
	InputEN: currency.EN,
	InputUZ: currency.UZ,
}

// session is the single live compose. Texts are keyed by language;
// a single-mode text is stored under the empty key.
type session struct {
	id      string
	chatID  int64
	state   State
	mode    Mode
	texts   map[currency.Language]string
	editing bool
}

func (s *session) complete() bool {
	if s.mode == ModeSingle {
		return s.texts[""] != ""
	}
	for _, l := range currency.Languages {
		if s.texts[l] == "" {
			return false
		}
	}
	return true
}
