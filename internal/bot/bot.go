// Package bot holds the update handlers: user commands, rate views,
// subscription buttons and the administrator panel.
package bot

import (
	"context"
	"runtime/debug"
	"time"

	"kursbot/internal/activity"
	"kursbot/internal/broadcast"
	"kursbot/internal/currency"
	"kursbot/internal/delivery"
	"kursbot/internal/history"
	"kursbot/internal/rates"
	"kursbot/internal/storage"
	"kursbot/internal/transport"
	"kursbot/internal/transport/telegram/router"
	logx "kursbot/pkg/logx"
)

// DefaultHistoryDays is how many stored days the history view shows.
const DefaultHistoryDays = 7

type Store interface {
	AddUser(ctx context.Context, u storage.User) (bool, error)
	Users(ctx context.Context) ([]storage.User, error)
	UserIDs(ctx context.Context) ([]int64, error)
	DeleteUser(ctx context.Context, userID int64) error
	UserStats(ctx context.Context, dayStart, weekStart time.Time) (storage.UserStats, error)
	Subscribe(ctx context.Context, userID int64, currency string, hour int) error
	Unsubscribe(ctx context.Context, userID int64, currency string) (bool, error)
	IsSubscribed(ctx context.Context, userID int64, currency string) (bool, error)
	SubscriptionCounts(ctx context.Context) ([]storage.CurrencyCount, error)
}

type Rates interface {
	Symbols() []currency.Symbol
	GetRate(ctx context.Context, sym currency.Symbol) (rates.Snapshot, error)
	GetAllRates(ctx context.Context) (map[currency.Symbol]rates.Snapshot, error)
	YesterdayRates(ctx context.Context) (map[currency.Symbol]int64, error)
}

type History interface {
	History(ctx context.Context, sym currency.Symbol, limit int) ([]history.Record, error)
}

type Cleaner interface {
	Cleanup(ctx context.Context, userIDs []int64, prober delivery.Prober, remover delivery.Remover) delivery.CleanupResult
}

type Conversation interface {
	Handle(ctx context.Context, ev broadcast.Event) bool
}

type Config struct {
	AdminID     int64
	Location    *time.Location
	SendHours   []int
	HistoryDays int
}

type Deps struct {
	Store    Store
	Rates    Rates
	History  History
	Cleaner  Cleaner
	Prober   delivery.Prober
	Conv     Conversation
	Activity *activity.Log
	Notifier transport.TextSender
}

type Bot struct {
	cfg   Config
	deps  Deps
	log   logx.Logger
	now   func() time.Time
	spawn Spawner
}

// Spawner runs a detached job such as the user cleanup.
type Spawner func(name string, fn func(ctx context.Context))

type Option func(*Bot)

func WithSpawner(sp Spawner) Option {
	return func(b *Bot) {
		if sp != nil {
			b.spawn = sp
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Bot) {
		if now != nil {
			b.now = now
		}
	}
}

func New(cfg Config, deps Deps, log logx.Logger, opts ...Option) *Bot {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = DefaultHistoryDays
	}
	if deps.Activity == nil {
		deps.Activity = activity.New(cfg.AdminID)
	}
	b := &Bot{cfg: cfg, deps: deps, log: log.With(logx.String("comp", "bot")), now: time.Now}
	b.spawn = b.goDetached
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bot) goDetached(name string, fn func(ctx context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("detached job panicked", logx.String("job", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		fn(context.Background())
	}()
}

// Routes returns the command and callback tables for the router.
func (b *Bot) Routes() ([]router.Command, []router.CallbackRoute) {
	cmds := []router.Command{
		{Name: "start", Description: "Start", Handle: b.start},
		{Name: "kurs", Description: "Currency rate", Handle: b.kurs},
		{Name: "all", Description: "All rates", Handle: b.all},
		{Name: "help", Description: "Help", Handle: b.help},
		{Name: "admin", Access: router.AccessAdminOnly, Handle: b.admin},
		{Name: "cancel", Access: router.AccessAdminOnly, Handle: b.cancel},
	}

	var cbs []router.CallbackRoute
	for _, v := range views {
		cbs = append(cbs, router.CallbackRoute{Namespace: nsRate, Action: v, Handle: b.view(v)})
	}
	cbs = append(cbs,
		router.CallbackRoute{Namespace: nsSub, Action: subToggle, Handle: b.subToggle},
		router.CallbackRoute{Namespace: nsSub, Action: subTime, Handle: b.subTime},
		router.CallbackRoute{Namespace: nsAdmin, Action: admUsers, Access: router.AccessAdminOnly, Handle: b.admUsers},
		router.CallbackRoute{Namespace: nsAdmin, Action: admStats, Access: router.AccessAdminOnly, Handle: b.admStats},
		router.CallbackRoute{Namespace: nsAdmin, Action: admCleanup, Access: router.AccessAdminOnly, Handle: b.admCleanup},
		router.CallbackRoute{Namespace: nsAdmin, Action: admBroadcast, Access: router.AccessAdminOnly, Handle: b.admBroadcast},
	)
	for _, a := range broadcastActions {
		cbs = append(cbs, router.CallbackRoute{Namespace: broadcast.CbNamespace, Action: a, Access: router.AccessAdminOnly, Handle: b.broadcastCallback})
	}
	return cmds, cbs
}

// Register installs the handlers on r.
func (b *Bot) Register(r *router.Router) {
	r.SetRegistry(b.Routes())
	r.OnText(b.text)
}

func (b *Bot) dayStart() time.Time {
	now := b.now().In(b.cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.cfg.Location)
}

func (b *Bot) hourAllowed(h int) bool {
	for _, x := range b.cfg.SendHours {
		if x == h {
			return true
		}
	}
	return false
}

func (b *Bot) tracked(sym currency.Symbol) bool {
	for _, s := range b.deps.Rates.Symbols() {
		if s == sym {
			return true
		}
	}
	return false
}
