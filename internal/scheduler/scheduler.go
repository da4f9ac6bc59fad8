// Package scheduler dispatches hourly subscription messages and the daily
// administrator digest. Both are driven by a short cron tick and guarded by
// watermarks, so at most one dispatch happens per hour key and one digest
// per date. Missed slots are not caught up.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"kursbot/internal/activity"
	"kursbot/internal/currency"
	"kursbot/internal/delivery"
	"kursbot/internal/format"
	"kursbot/internal/rates"
	"kursbot/internal/storage"
	"kursbot/internal/transport"
	logx "kursbot/pkg/logx"
	"kursbot/pkg/tgui"
)

const (
	hourKeyLayout = "2006-01-02T15"
	dateLayout    = "2006-01-02"

	SourceSubscription = "subscription"
)

// Store is the persistence the scheduler reads.
type Store interface {
	DueSubscriptions(ctx context.Context, hour int) ([]storage.Due, error)
	UserStats(ctx context.Context, dayStart, weekStart time.Time) (storage.UserStats, error)
	SubscriptionCounts(ctx context.Context) ([]storage.CurrencyCount, error)
}

type Rates interface {
	GetRate(ctx context.Context, sym currency.Symbol) (rates.Snapshot, error)
	YesterdayRates(ctx context.Context) (map[currency.Symbol]int64, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, source string, envs []delivery.Envelope) delivery.Result
}

type Config struct {
	Location   *time.Location
	Tick       time.Duration
	DigestHour int
	AdminID    int64
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

type Scheduler struct {
	cfg      Config
	store    Store
	rates    Rates
	delivery Deliverer
	sender   transport.TextSender
	activity *activity.Log
	log      logx.Logger
	now      func() time.Time

	mu             sync.Mutex
	lastHourKey    string
	lastDigestDate string

	c *cron.Cron
}

func New(cfg Config, store Store, r Rates, d Deliverer, sender transport.TextSender, act *activity.Log, log logx.Logger, opts ...Option) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		cfg:      cfg,
		store:    store,
		rates:    r,
		delivery: d,
		sender:   sender,
		activity: act,
		log:      log.With(logx.String("comp", "scheduler")),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start begins ticking. Ticks run with ctx, so cancelling it aborts an
// in-progress batch.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Tick), func() { s.Tick(ctx, s.now()) }); err != nil {
		return fmt.Errorf("scheduler: add tick: %w", err)
	}
	c.Start()
	s.c = c
	s.log.Info("scheduler started", logx.String("tz", s.cfg.Location.String()), logx.Duration("tick", s.cfg.Tick), logx.Int("digest_hour", s.cfg.DigestHour))
	return nil
}

// Stop stops ticking and waits for a running tick until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Tick evaluates both triggers for now, read in the reference timezone.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	now = now.In(s.cfg.Location)
	if now.Minute() != 0 {
		return
	}
	if s.claimHour(now) {
		s.dispatch(ctx, now)
	}
	if now.Hour() == s.cfg.DigestHour && s.claimDigest(now) {
		s.digest(ctx, now)
	}
}

// claimHour advances the hour watermark before any work so a slow batch
// cannot be started twice.
func (s *Scheduler) claimHour(now time.Time) bool {
	key := now.Format(hourKeyLayout)
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.lastHourKey {
		return false
	}
	s.lastHourKey = key
	return true
}

func (s *Scheduler) claimDigest(now time.Time) bool {
	date := now.Format(dateLayout)
	s.mu.Lock()
	defer s.mu.Unlock()
	if date == s.lastDigestDate {
		return false
	}
	s.lastDigestDate = date
	return true
}

func (s *Scheduler) dispatch(ctx context.Context, now time.Time) {
	hour := now.Hour()
	due, err := s.store.DueSubscriptions(ctx, hour)
	if err != nil {
		s.log.Error("load due subscriptions failed", logx.Int("hour", hour), logx.Err(err))
		return
	}
	if len(due) == 0 {
		return
	}

	prev, err := s.rates.YesterdayRates(ctx)
	if err != nil {
		s.log.Warn("previous day rates unavailable", logx.Err(err))
		prev = nil
	}

	snaps := map[currency.Symbol]rates.Snapshot{}
	failed := map[currency.Symbol]bool{}
	envs := make([]delivery.Envelope, 0, len(due))
	for _, d := range due {
		sym, ok := currency.Parse(d.Currency)
		if !ok || failed[sym] {
			continue
		}
		snap, ok := snaps[sym]
		if !ok {
			snap, err = s.rates.GetRate(ctx, sym)
			if err != nil {
				failed[sym] = true
				s.log.Warn("skipping currency for this slot", logx.String("currency", sym.String()), logx.Int("hour", hour), logx.Err(err))
				continue
			}
			snaps[sym] = snap
		}
		text := format.CurrencyCard(format.For(d.Language), sym, snap, prev[sym], now)
		msg := tgui.Msg(text)
		envs = append(envs, delivery.Envelope{UserID: d.UserID, Text: string(msg.Text), Options: msg.Options()})
	}

	s.log.Info("dispatching subscriptions", logx.Int("hour", hour), logx.Int("due", len(due)), logx.Int("envelopes", len(envs)))
	s.delivery.Deliver(ctx, SourceSubscription, envs)
}

func (s *Scheduler) digest(ctx context.Context, now time.Time) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
	in := format.DigestInput{Date: now}
	if s.activity != nil {
		in.Activity = s.activity.SnapshotAndReset()
	}

	var err error
	if in.Users, err = s.store.UserStats(ctx, dayStart, dayStart.AddDate(0, 0, -7)); err != nil {
		s.log.Warn("digest user stats failed", logx.Err(err))
	}
	if in.Subs, err = s.store.SubscriptionCounts(ctx); err != nil {
		s.log.Warn("digest subscription counts failed", logx.Err(err))
	}

	if s.sender == nil || s.cfg.AdminID == 0 {
		return
	}
	msg := tgui.Msg(format.Digest(in))
	if _, err := s.sender.SendText(ctx, transport.ChatTarget{ChatID: s.cfg.AdminID}, string(msg.Text), msg.Options()); err != nil {
		s.log.Warn("digest send failed", logx.Err(err))
		return
	}
	s.log.Info("digest sent", logx.Int("actions", in.Activity.TotalActions()), logx.Int("active_users", in.Activity.ActiveUsers))
}

// cronLogger routes cron's own messages through logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
