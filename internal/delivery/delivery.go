// Package delivery sends batches of messages one at a time, paced under the
// platform's global send ceiling, and prunes recipients that can no longer be
// reached.
package delivery

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"kursbot/internal/transport"
	logx "kursbot/pkg/logx"
)

const DefaultInterval = 35 * time.Millisecond

// Envelope is one message for one user.
type Envelope struct {
	UserID int64
	Text   string
	// Options may be nil for plain text.
	Options *transport.SendOptions
}

// Result counts one batch. Every attempted envelope lands in exactly one bucket.
type Result struct {
	Sent    int
	Blocked int
	Errors  int
}

func (r Result) Total() int { return r.Sent + r.Blocked + r.Errors }

// Pruner removes what belongs to an unreachable user.
type Pruner interface {
	DeleteSubscriptions(ctx context.Context, userID int64) (int64, error)
}

// Observer receives per-send outcomes, typically for metrics.
type Observer interface {
	Delivered(source string, outcome Outcome)
}

type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeBlocked Outcome = "blocked"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

type nopObserver struct{}

func (nopObserver) Delivered(string, Outcome) {}

type Config struct {
	Interval time.Duration
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.obs = o
		}
	}
}

// WithBlockedHook is called once per batch with the number of newly blocked users.
func WithBlockedHook(fn func(n int)) Option {
	return func(e *Engine) { e.onBlocked = fn }
}

// Engine is safe for concurrent use. All batches and cleanups share one
// limiter, so concurrent callers together stay under the send ceiling.
type Engine struct {
	cfg    Config
	sender transport.TextSender
	pruner Pruner
	log    logx.Logger
	obs    Observer

	onBlocked func(n int)

	lim *rate.Limiter
}

func New(cfg Config, sender transport.TextSender, pruner Pruner, log logx.Logger, opts ...Option) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		cfg:    cfg,
		sender: sender,
		pruner: pruner,
		log:    log.With(logx.String("comp", "delivery")),
		obs:    nopObserver{},
		lim:    rate.NewLimiter(rate.Every(cfg.Interval), 1),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Deliver sends envelopes in order. Cancelling ctx stops the batch; envelopes
// not yet attempted are not counted.
func (e *Engine) Deliver(ctx context.Context, source string, envs []Envelope) Result {
	var res Result
	if len(envs) == 0 {
		return res
	}
	log := e.log.With(logx.String("source", source))
	blocked := map[int64]bool{}
	started := time.Now()

	for _, env := range envs {
		if blocked[env.UserID] {
			e.obs.Delivered(source, OutcomeSkipped)
			continue
		}
		if err := e.lim.Wait(ctx); err != nil {
			log.Info("delivery interrupted", logx.Int("attempted", res.Total()), logx.Int("total", len(envs)), logx.Err(err))
			break
		}

		_, err := e.sender.SendText(ctx, transport.ChatTarget{ChatID: env.UserID}, env.Text, env.Options)
		switch {
		case err == nil:
			res.Sent++
			e.obs.Delivered(source, OutcomeSent)
		case transport.IsUnreachable(err):
			res.Blocked++
			blocked[env.UserID] = true
			e.obs.Delivered(source, OutcomeBlocked)
			e.prune(ctx, log, env.UserID)
		default:
			res.Errors++
			e.obs.Delivered(source, OutcomeError)
			log.Warn("send failed", logx.Int64("user_id", env.UserID), logx.Err(err))
		}
	}

	if res.Blocked > 0 && e.onBlocked != nil {
		e.onBlocked(res.Blocked)
	}
	log.Info("delivery finished",
		logx.Int("sent", res.Sent),
		logx.Int("blocked", res.Blocked),
		logx.Int("errors", res.Errors),
		logx.Duration("took", time.Since(started)),
	)
	return res
}

func (e *Engine) prune(ctx context.Context, log logx.Logger, userID int64) {
	if e.pruner == nil {
		return
	}
	n, err := e.pruner.DeleteSubscriptions(context.WithoutCancel(ctx), userID)
	if err != nil {
		log.Warn("prune subscriptions failed", logx.Int64("user_id", userID), logx.Err(err))
		return
	}
	log.Info("recipient unreachable, subscriptions removed", logx.Int64("user_id", userID), logx.Int64("removed", n))
}
