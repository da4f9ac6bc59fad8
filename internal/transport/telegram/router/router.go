package router

import (
	"context"
	"hash/fnv"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	kit "kursbot/internal/transport"
	"kursbot/internal/runtime/supervisor"
	logx "kursbot/pkg/logx"
	"kursbot/pkg/tgui"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessAdminOnly
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Access      Access

	Timeout time.Duration // optional per-command override
	Handle  HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

// CallbackRoute handles callback data of the form "ns:action[:payload]".
type CallbackRoute struct {
	Namespace string
	Action    string
	Access    Access
	Timeout   time.Duration
	Handle    CallbackHandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	From    kit.Sender
	Command string // command name or "cb:ns:action"
	Args    []string
	Text    string
	Payload string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends msg to the chat the request came from.
func (r *Request) Reply(ctx context.Context, msg tgui.Message) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, msg.Text.String(), msg.Options())
	return err
}

// Observer is notified once per handled update with its route label.
type Observer interface {
	UpdateHandled(route string)
}

type Config struct {
	AdminID   int64
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type Option func(*Router)

func WithObserver(o Observer) Option {
	return func(r *Router) { r.obs = o }
}

// Router routes updates to commands, callbacks and the plain-text hook.
// Updates of one chat always land on the same worker, so they are
// handled in arrival order.
type Router struct {
	mu        sync.RWMutex
	commands  map[string]Command
	callbacks map[string]map[string]CallbackRoute // ns -> action -> route
	menu      []kit.BotCommand
	text      HandlerFunc
	global    []Middleware

	cfg     Config
	log     logx.Logger
	adapter kit.Adapter
	obs     Observer

	queues []chan func()
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger, opts ...Option) *Router {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	r := &Router{
		commands:  map[string]Command{},
		callbacks: map[string]map[string]CallbackRoute{},
		cfg:       cfg,
		log:       log.With(logx.String("comp", "telegram.router")),
		adapter:   adapter,
	}
	for _, o := range opts {
		o(r)
	}
	per := cfg.QueueSize / cfg.Workers
	if per < 1 {
		per = 1
	}
	r.queues = make([]chan func(), cfg.Workers)
	for i := range r.queues {
		r.queues[i] = make(chan func(), per)
	}
	return r
}

// Use appends middleware applied to every handler, after the built-in ones.
func (r *Router) Use(m ...Middleware) {
	r.mu.Lock()
	r.global = append(r.global, m...)
	r.mu.Unlock()
}

// SetRegistry replaces the command and callback tables.
func (r *Router) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	commands := map[string]Command{}
	for _, c := range cmds {
		name := normalizeCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		if _, dup := commands[name]; dup {
			r.log.Warn("duplicate command ignored", logx.String("cmd", name))
			continue
		}
		commands[name] = c
		for _, a := range c.Aliases {
			a = normalizeCommand(a)
			if a == "" {
				continue
			}
			if _, dup := commands[a]; dup {
				r.log.Warn("duplicate alias ignored", logx.String("alias", a))
				continue
			}
			commands[a] = c
		}
	}

	callbacks := map[string]map[string]CallbackRoute{}
	for _, cb := range cbs {
		if cb.Namespace == "" || cb.Action == "" || cb.Handle == nil {
			continue
		}
		actions := callbacks[cb.Namespace]
		if actions == nil {
			actions = map[string]CallbackRoute{}
			callbacks[cb.Namespace] = actions
		}
		if _, dup := actions[cb.Action]; dup {
			r.log.Warn("duplicate callback ignored", logx.String("cb", cb.Namespace+":"+cb.Action))
			continue
		}
		actions[cb.Action] = cb
	}

	menu := buildMenu(cmds)

	r.mu.Lock()
	r.commands = commands
	r.callbacks = callbacks
	r.menu = menu
	r.mu.Unlock()
}

// OnText sets the handler for messages that are not commands.
func (r *Router) OnText(h HandlerFunc) {
	r.mu.Lock()
	r.text = h
	r.mu.Unlock()
}

// DispatchLoop reads updates until ctx is done or the channel closes.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(r.log), supervisor.WithCancelOnError(false))
	for i, q := range r.queues {
		idx, queue := i, q
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-queue:
					r.runJob(idx, job)
				}
			}
		}, supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}
	r.log.Info("router started", logx.Int("workers", len(r.queues)))

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		r.log.Info("router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in router job", logx.Int("worker", worker), logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		r.routeMessage(ctx, up)
	case kit.UpdateCallback:
		r.routeCallback(ctx, up)
	}
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	req := r.newRequest(up, msg.ChatID, msg.From)
	req.Text = text

	if !strings.HasPrefix(text, "/") {
		r.mu.RLock()
		h := r.text
		r.mu.RUnlock()
		if h == nil || text == "" {
			return
		}
		req.Command = "text"
		r.enqueue(ctx, req, h, 0)
		return
	}

	fields := strings.Fields(text)
	name := normalizeCommand(fields[0])
	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok {
		r.log.Debug("unknown command", logx.String("cmd", name), logx.Int64("from_id", msg.From.ID))
		return
	}
	if cmd.Access == AccessAdminOnly && msg.From.ID != r.cfg.AdminID {
		return
	}
	req.Command = normalizeCommand(cmd.Name)
	req.Args = fields[1:]
	r.enqueue(ctx, req, cmd.Handle, cmd.Timeout)
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	ns, action, payload, ok := tgui.ParseData(cb.Data)
	var route CallbackRoute
	if ok {
		r.mu.RLock()
		route, ok = r.callbacks[ns][action]
		r.mu.RUnlock()
	}
	if !ok {
		r.log.Debug("unknown callback", logx.String("data", cb.Data))
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	if route.Access == AccessAdminOnly && cb.From.ID != r.cfg.AdminID {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	req := r.newRequest(up, cb.ChatID, cb.From)
	req.Command = "cb:" + ns + ":" + action
	req.Payload = payload
	h := func(c context.Context, rq *Request) error { return route.Handle(c, rq, payload) }
	r.enqueue(ctx, req, func(c context.Context, rq *Request) error {
		err := h(c, rq)
		// stops the client-side spinner
		_ = r.adapter.AnswerCallback(c, cb.ID, "")
		return err
	}, route.Timeout)
}

func (r *Router) newRequest(up kit.Update, chatID int64, from kit.Sender) *Request {
	rid := uuid.NewString()
	return &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: chatID},
		From:    from,
		ReqID:   rid,
		Adapter: r.adapter,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chatID),
			logx.Int64("from_id", from.ID),
		),
	}
}

func (r *Router) enqueue(ctx context.Context, req *Request, h HandlerFunc, timeout time.Duration) {
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}
	r.mu.RLock()
	global := append([]Middleware(nil), r.global...)
	r.mu.RUnlock()

	mws := []Middleware{
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWObserve(r.obs),
		MWTimeout(timeout),
	}
	final := Chain(h, append(mws, global...)...)

	q := r.queues[shard(req.Chat.ChatID, len(r.queues))]
	select {
	case q <- func() { _ = final(ctx, req) }:
	default:
		req.Logger.Warn("router queue full, update dropped", logx.String("cmd", req.Command))
	}
}

func shard(chatID int64, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(chatID, 10)))
	return int(h.Sum32() % uint32(n))
}

// normalizeCommand turns "/Kurs@SomeBot" into "kurs".
func normalizeCommand(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "/")
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
