// Package broadcast implements the administrator's compose-and-send
// conversation. There is one global session; starting a new compose
// replaces it, and sending clears it before the fan-out begins.
package broadcast

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kursbot/internal/currency"
	"kursbot/internal/delivery"
	"kursbot/internal/format"
	"kursbot/internal/storage"
	"kursbot/internal/transport"
	logx "kursbot/pkg/logx"
	"kursbot/pkg/tgui"
)

const SourceBroadcast = "broadcast"

type Audience interface {
	Users(ctx context.Context) ([]storage.User, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, source string, envs []delivery.Envelope) delivery.Result
}

// Spawner runs a detached fan-out.
type Spawner func(name string, fn func(ctx context.Context))

type Option func(*Conversation)

func WithSpawner(sp Spawner) Option {
	return func(c *Conversation) {
		if sp != nil {
			c.spawn = sp
		}
	}
}

type Conversation struct {
	adminID int64
	sender  transport.TextSender
	users   Audience
	deliv   Deliverer
	log     logx.Logger
	spawn   Spawner

	mu   sync.Mutex
	sess *session
}

func New(adminID int64, sender transport.TextSender, users Audience, deliv Deliverer, log logx.Logger, opts ...Option) *Conversation {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Conversation{
		adminID: adminID,
		sender:  sender,
		users:   users,
		deliv:   deliv,
		log:     log.With(logx.String("comp", "broadcast")),
	}
	c.spawn = c.goDetached
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current state, Idle when there is no session.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return Idle
	}
	return c.sess.state
}

type outcome struct {
	replies []tgui.Message
	job     *job
}

type transitionKey struct {
	from State
	kind EventKind
}

type transitionFunc func(c *Conversation, s *session, ev Event) (outcome, bool)

// transitions lists every legal (state, event) pair. EvStart and EvCancel
// are accepted in any state and handled before the lookup.
var transitions = map[transitionKey]transitionFunc{
	{ChooseType, EvSingle}:  chooseMode(ModeSingle),
	{ChooseType, EvMulti}:   chooseMode(ModeMulti),
	{InputSingle, EvText}:   acceptText,
	{InputRU, EvText}:       acceptText,
	{InputEN, EvText}:       acceptText,
	{InputUZ, EvText}:       acceptText,
	{Confirm, EvEditSingle}: edit(ModeSingle, InputSingle),
	{Confirm, EvEditRU}:     edit(ModeMulti, InputRU),
	{Confirm, EvEditEN}:     edit(ModeMulti, InputEN),
	{Confirm, EvEditUZ}:     edit(ModeMulti, InputUZ),
	{Confirm, EvSend}:       send,
}

// Handle interprets one event. It reports whether the event was consumed;
// events from anyone but the administrator never are, and neither is text
// starting with "/".
func (c *Conversation) Handle(ctx context.Context, ev Event) bool {
	if ev.UserID != c.adminID {
		return false
	}
	if ev.Kind == EvText && (strings.TrimSpace(ev.Text) == "" || strings.HasPrefix(strings.TrimSpace(ev.Text), "/")) {
		return false
	}
	if ev.ChatID == 0 {
		ev.ChatID = ev.UserID
	}

	c.mu.Lock()
	out, ok := c.step(ev)
	c.mu.Unlock()
	if !ok {
		return false
	}

	for _, m := range out.replies {
		if _, err := c.sender.SendText(ctx, transport.ChatTarget{ChatID: ev.ChatID}, string(m.Text), m.Options()); err != nil {
			c.log.Warn("reply failed", logx.Err(err))
		}
	}
	if out.job != nil {
		c.spawn("broadcast."+out.job.id, out.job.run)
	}
	return true
}

func (c *Conversation) step(ev Event) (outcome, bool) {
	switch ev.Kind {
	case EvStart:
		if c.sess != nil {
			c.log.Info("compose replaced", logx.String("session", c.sess.id), logx.String("state", c.sess.state.String()))
		}
		c.sess = &session{
			id:     uuid.NewString(),
			chatID: ev.ChatID,
			state:  ChooseType,
			texts:  map[currency.Language]string{},
		}
		c.log.Info("compose started", logx.String("session", c.sess.id))
		return outcome{replies: []tgui.Message{tgui.Msg(promptChooseType).With(chooseTypeKeyboard())}}, true
	case EvCancel:
		if c.sess == nil {
			return outcome{}, false
		}
		c.log.Info("compose cancelled", logx.String("session", c.sess.id), logx.String("state", c.sess.state.String()))
		c.sess = nil
		return outcome{replies: []tgui.Message{tgui.Msg(tgui.Esc(format.BroadcastAborted))}}, true
	}

	if c.sess == nil {
		return outcome{}, false
	}
	fn, ok := transitions[transitionKey{from: c.sess.state, kind: ev.Kind}]
	if !ok {
		return outcome{}, false
	}
	return fn(c, c.sess, ev)
}

func chooseMode(m Mode) transitionFunc {
	return func(c *Conversation, s *session, ev Event) (outcome, bool) {
		s.mode = m
		if m == ModeSingle {
			s.state = InputSingle
			return prompt(promptSingle), true
		}
		s.state = InputRU
		return prompt(promptLang[currency.RU]), true
	}
}

func acceptText(c *Conversation, s *session, ev Event) (outcome, bool) {
	if s.state == InputSingle {
		s.texts[""] = ev.Text
	} else {
		s.texts[inputLang[s.state]] = ev.Text
	}

	if next, ok := nextInput(s.state); ok && !s.editing && s.mode == ModeMulti {
		s.state = next
		return prompt(promptLang[inputLang[next]]), true
	}
	s.state = Confirm
	s.editing = false
	return outcome{replies: []tgui.Message{preview(s)}}, true
}

func nextInput(st State) (State, bool) {
	for i, s := range inputOrder {
		if s == st && i+1 < len(inputOrder) {
			return inputOrder[i+1], true
		}
	}
	return Idle, false
}

func edit(m Mode, target State) transitionFunc {
	return func(c *Conversation, s *session, ev Event) (outcome, bool) {
		if s.mode != m {
			return outcome{}, false
		}
		s.state = target
		s.editing = true
		if target == InputSingle {
			return prompt(promptSingleEdit), true
		}
		return prompt(promptLangEdit[inputLang[target]]), true
	}
}

func send(c *Conversation, s *session, ev Event) (outcome, bool) {
	if !s.complete() {
		return outcome{}, false
	}
	j := &job{
		id:     s.id,
		conv:   c,
		chatID: s.chatID,
		mode:   s.mode,
		texts:  s.texts,
	}
	c.sess = nil
	return outcome{replies: []tgui.Message{tgui.Msg(tgui.Esc(format.BroadcastStarted))}, job: j}, true
}

func prompt(h tgui.H) outcome {
	return outcome{replies: []tgui.Message{tgui.Msg(h)}}
}

// job is a detached fan-out. It owns the texts taken from the cleared session.
type job struct {
	id     string
	conv   *Conversation
	chatID int64
	mode   Mode
	texts  map[currency.Language]string
}

func (j *job) run(ctx context.Context) {
	c := j.conv
	log := c.log.With(logx.String("session", j.id))
	started := time.Now()

	users, err := c.users.Users(ctx)
	if err != nil {
		log.Error("load recipients failed", logx.Err(err))
		j.reply(ctx, usersFailed)
		return
	}
	recipients := make([]delivery.Recipient, 0, len(users))
	for _, u := range users {
		if u.ID == c.adminID {
			continue
		}
		recipients = append(recipients, delivery.Recipient{UserID: u.ID, Language: u.Language})
	}

	var sel delivery.Selector
	if j.mode == ModeSingle {
		sel = delivery.Literal(j.texts[""])
	} else {
		sel = delivery.ByLanguage(j.texts)
	}
	envs := delivery.Compose(recipients, sel, &transport.SendOptions{ParseMode: "HTML"})

	log.Info("broadcast started", logx.Int("recipients", len(envs)), logx.Bool("multi", j.mode == ModeMulti))
	res := c.deliv.Deliver(ctx, SourceBroadcast, envs)
	log.Info("broadcast finished",
		logx.Int("sent", res.Sent),
		logx.Int("blocked", res.Blocked),
		logx.Int("errors", res.Errors),
		logx.Duration("took", time.Since(started)),
	)
	j.reply(ctx, format.BroadcastSummary(res.Sent, res.Blocked, res.Errors))
}

func (j *job) reply(ctx context.Context, h tgui.H) {
	m := tgui.Msg(h)
	if _, err := j.conv.sender.SendText(context.WithoutCancel(ctx), transport.ChatTarget{ChatID: j.chatID}, string(m.Text), m.Options()); err != nil {
		j.conv.log.Warn("broadcast summary failed", logx.String("session", j.id), logx.Err(err))
	}
}

func (c *Conversation) goDetached(name string, fn func(ctx context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("fan-out panicked", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		fn(context.Background())
	}()
}
