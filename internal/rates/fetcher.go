package rates

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"kursbot/internal/currency"
	logx "kursbot/pkg/logx"
)

// Persister records a fresh fetch. It runs detached from the caller.
type Persister interface {
	UpsertToday(ctx context.Context, sym currency.Symbol, snap Snapshot) error
	Backfill(ctx context.Context, sym currency.Symbol, series []SeriesPoint) error
}

// Observer receives fetch events, typically for metrics.
type Observer interface {
	FetchDone(sym currency.Symbol, took time.Duration, err error)
	CacheHit(sym currency.Symbol)
	PersistFailed(sym currency.Symbol)
}

type nopObserver struct{}

func (nopObserver) FetchDone(currency.Symbol, time.Duration, error) {}
func (nopObserver) CacheHit(currency.Symbol)                        {}
func (nopObserver) PersistFailed(currency.Symbol)                   {}

type Config struct {
	Symbols        []currency.Symbol
	TTL            time.Duration
	PersistTimeout time.Duration
	// FetchTimeout bounds one shared retrieval, independent of callers.
	FetchTimeout time.Duration
	// Location decides which calendar day is "today".
	Location *time.Location
}

type Option func(*Fetcher)

func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

func WithObserver(o Observer) Option {
	return func(f *Fetcher) {
		if o != nil {
			f.obs = o
		}
	}
}

// Fetcher serves snapshots cache-first and persists every fresh fetch.
type Fetcher struct {
	cfg     Config
	src     Source
	persist Persister
	log     logx.Logger
	obs     Observer
	now     func() time.Time

	cache *Cache
	prev  *prevDay
	group singleflight.Group

	wg sync.WaitGroup
}

func NewFetcher(cfg Config, src Source, persist Persister, prev PrevDayStore, log logx.Logger, opts ...Option) *Fetcher {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = append([]currency.Symbol(nil), currency.All...)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 30 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	f := &Fetcher{
		cfg:     cfg,
		src:     src,
		persist: persist,
		log:     log.With(logx.String("comp", "rates")),
		obs:     nopObserver{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	f.cache = NewCache(cfg.TTL, f.now)
	f.prev = &prevDay{store: prev, loc: cfg.Location, now: f.now}
	return f
}

// Symbols returns the configured currencies in display order.
func (f *Fetcher) Symbols() []currency.Symbol {
	return append([]currency.Symbol(nil), f.cfg.Symbols...)
}

func (f *Fetcher) tracked(sym currency.Symbol) bool {
	for _, s := range f.cfg.Symbols {
		if s == sym {
			return true
		}
	}
	return false
}

// GetRate returns a cached snapshot if still valid; otherwise it fetches,
// caches and schedules persistence. On failure the cache is left as is.
func (f *Fetcher) GetRate(ctx context.Context, sym currency.Symbol) (Snapshot, error) {
	if !f.tracked(sym) {
		return Snapshot{}, &FetchError{Symbol: sym, Err: errors.New("currency not tracked")}
	}
	if snap, ok := f.cache.Get(sym); ok {
		f.obs.CacheHit(sym)
		return snap, nil
	}

	// The shared fetch outlives any single caller; each caller only stops
	// waiting when its own ctx ends.
	ch := f.group.DoChan(string(sym), func() (any, error) {
		if snap, ok := f.cache.Get(sym); ok {
			return snap, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.FetchTimeout)
		defer cancel()
		return f.fetch(fctx, sym)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, &FetchError{Symbol: sym, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, sym currency.Symbol) (Snapshot, error) {
	started := time.Now()
	page, err := f.retrieve(ctx, sym)
	f.obs.FetchDone(sym, time.Since(started), err)
	if err != nil {
		f.log.Warn("rate fetch failed", logx.String("currency", sym.String()), logx.Err(err))
		return Snapshot{}, &FetchError{Symbol: sym, Err: err}
	}

	snap := page.Snapshot
	snap.Symbol = sym
	snap.FetchedAt = f.now()
	f.cache.Put(snap)
	f.log.Debug("rate fetched",
		logx.String("currency", sym.String()),
		logx.Int64("cb_rate", snap.CBRate),
		logx.Int("buy_offers", len(snap.Buy)),
		logx.Int("sell_offers", len(snap.Sell)),
		logx.Int("series", len(page.Series)),
	)
	f.schedulePersist(sym, snap, page.Series)
	return snap, nil
}

func (f *Fetcher) retrieve(ctx context.Context, sym currency.Symbol) (Page, error) {
	doc, err := f.src.Retrieve(ctx, sym)
	if err != nil {
		return Page{}, err
	}
	return Extract(sym, doc)
}

// schedulePersist writes today's row and backfills the series on its own
// goroutine and timeout. Failures are logged and counted only.
func (f *Fetcher) schedulePersist(sym currency.Symbol, snap Snapshot, series []SeriesPoint) {
	if f.persist == nil {
		return
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				f.obs.PersistFailed(sym)
				f.log.Error("rate persist panicked", logx.String("currency", sym.String()), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.PersistTimeout)
		defer cancel()

		if err := f.persist.UpsertToday(ctx, sym, snap); err != nil {
			f.obs.PersistFailed(sym)
			f.log.Warn("rate persist failed", logx.String("currency", sym.String()), logx.String("step", "today"), logx.Err(err))
		}
		if len(series) == 0 {
			return
		}
		if err := f.persist.Backfill(ctx, sym, series); err != nil {
			f.obs.PersistFailed(sym)
			f.log.Warn("rate persist failed", logx.String("currency", sym.String()), logx.String("step", "backfill"), logx.Err(err))
		}
	}()
}

// Drain waits for in-flight persist tasks or until ctx is done.
func (f *Fetcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetAllRates fetches every configured currency concurrently. The first
// failure aborts the whole call; there is no partial result.
func (f *Fetcher) GetAllRates(ctx context.Context) (map[currency.Symbol]Snapshot, error) {
	g, gctx := errgroup.WithContext(ctx)
	snaps := make([]Snapshot, len(f.cfg.Symbols))
	for i, sym := range f.cfg.Symbols {
		g.Go(func() error {
			snap, err := f.GetRate(gctx, sym)
			if err != nil {
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[currency.Symbol]Snapshot, len(snaps))
	for i, sym := range f.cfg.Symbols {
		out[sym] = snaps[i]
	}
	return out, nil
}

// YesterdayRates returns the latest positive central-bank rate per currency
// before today, queried at most once per calendar day. The returned map is
// shared and must not be modified.
func (f *Fetcher) YesterdayRates(ctx context.Context) (map[currency.Symbol]int64, error) {
	if f.prev.store == nil {
		return map[currency.Symbol]int64{}, nil
	}
	data, err := f.prev.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("previous day rates: %w", err)
	}
	return data, nil
}
