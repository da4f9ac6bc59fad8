// Package app wires the bot together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kursbot/internal/activity"
	"kursbot/internal/bot"
	"kursbot/internal/broadcast"
	"kursbot/internal/config"
	"kursbot/internal/delivery"
	"kursbot/internal/history"
	"kursbot/internal/metrics"
	"kursbot/internal/rates"
	"kursbot/internal/runtime/supervisor"
	"kursbot/internal/scheduler"
	"kursbot/internal/storage"
	kit "kursbot/internal/transport"
	"kursbot/internal/transport/telegram/adapter"
	"kursbot/internal/transport/telegram/router"
	logx "kursbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor
	// jobs runs detached work (broadcast fan-out, cleanup); a failure there
	// must not stop the bot.
	jobs *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	db   *storage.DB

	adapter *adapter.Adapter
	fetcher *rates.Fetcher
	sched   *scheduler.Scheduler
	router  *router.Router
	metrics *metrics.Server

	schedEnabled bool
	updates      chan kit.Update
}

// New loads the config at cfgPath and builds every component. Storage is
// opened and migrated here; nothing talks to Telegram until Start.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	adCfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := adapter.New(adCfg, logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	// logx.New applies immediately; start with Telegram logging off so the
	// missing target doesn't warn, then set it and apply the final config.
	logCfg := mapLogConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg, ad)
	logSvc.SetTelegramTarget(cfg.Telegram.AdminID)
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}
	stCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	ratesCfg, err := mapRatesConfig(cfg, loc)
	if err != nil {
		return nil, err
	}
	baseURL, userAgent, httpTimeout, err := mapRatesSource(cfg)
	if err != nil {
		return nil, err
	}
	schedCfg, err := mapSchedulerConfig(cfg, loc)
	if err != nil {
		return nil, err
	}
	delivCfg, err := mapDeliveryConfig(cfg)
	if err != nil {
		return nil, err
	}
	routerCfg, err := mapRouterConfig(cfg)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(ctx, stCfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgm:         cfgm,
		log:          log,
		logs:         logSvc,
		db:           db,
		adapter:      ad,
		schedEnabled: cfg.Scheduler.Enabled,
		updates:      make(chan kit.Update, 256),
	}

	m := metrics.New()
	a.metrics = metrics.NewServer(mapMetricsConfig(cfg), m, log)

	hist := history.New(db, loc, nil)
	a.fetcher = rates.NewFetcher(ratesCfg,
		rates.NewHTTPSource(baseURL, userAgent, httpTimeout),
		hist, hist, log,
		rates.WithObserver(m))

	act := activity.New(cfg.Telegram.AdminID)
	deliv := delivery.New(delivCfg, ad, db, log,
		delivery.WithObserver(m),
		delivery.WithBlockedHook(act.AddBlocked))

	a.sched = scheduler.New(schedCfg, db, a.fetcher, deliv, ad, act, log)

	conv := broadcast.New(cfg.Telegram.AdminID, ad, db, deliv, log, broadcast.WithSpawner(a.spawn))

	a.router = router.New(routerCfg, ad, log, router.WithObserver(m))
	bot.New(bot.Config{
		AdminID:   cfg.Telegram.AdminID,
		Location:  loc,
		SendHours: cfg.Scheduler.Hours(),
	}, bot.Deps{
		Store:    db,
		Rates:    a.fetcher,
		History:  hist,
		Cleaner:  deliv,
		Prober:   ad,
		Conv:     conv,
		Activity: act,
		Notifier: ad,
	}, log, bot.WithSpawner(a.spawn)).Register(a.router)

	return a, nil
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) spawn(name string, fn func(ctx context.Context)) {
	if a.jobs == nil {
		a.log.Warn("job spawned before start; dropped", logx.String("job", name))
		return
	}
	a.jobs.Go0(name, fn)
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.jobs = supervisor.New(a.sup.Context(), supervisor.WithLogger(a.log.With(logx.String("comp", "jobs"))))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	if err := a.metrics.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.adapter.SetCommands(a.sup.Context(), a.router.Menu()); err != nil {
		a.log.Warn("set commands failed", logx.Err(err))
	}
	if a.schedEnabled {
		if err := a.sched.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig applies logging and the scheduler switch live; every other
// change only takes effect after a restart.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, fields := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.SetTelegramTarget(newCfg.Telegram.AdminID)
	a.logs.Apply(mapLogConfig(newCfg))

	if newCfg.Scheduler.Enabled != a.schedEnabled {
		a.schedEnabled = newCfg.Scheduler.Enabled
		if a.schedEnabled {
			a.log.Info("scheduler enabled via config")
			if err := a.sched.Start(ctx); err != nil {
				a.log.Warn("scheduler start failed", logx.Err(err))
			}
		} else {
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		}
	}

	var restart []string
	for _, s := range sections {
		if !config.LiveSections[s] {
			restart = append(restart, s)
		}
	}
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so loops and running batches start unwinding.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		if max > 0 {
			// never extend the caller's deadline
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", time.Since(start)))
				}
			}()
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("jobs", 3*time.Second, func(c context.Context) error { return a.jobs.Wait(c) })
	// pending history writes need the database
	step("rates", 3*time.Second, func(c context.Context) error { return a.fetcher.Drain(c) })
	step("metrics", 1*time.Second, func(c context.Context) error { a.metrics.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(c context.Context) error { return a.db.Close() })

	// config watch/reload and the dispatcher
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
