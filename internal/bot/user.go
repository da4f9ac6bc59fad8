package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"kursbot/internal/currency"
	"kursbot/internal/format"
	"kursbot/internal/storage"
	"kursbot/internal/transport"
	"kursbot/internal/transport/telegram/router"
	logx "kursbot/pkg/logx"
	"kursbot/pkg/tgui"
)

func (b *Bot) start(ctx context.Context, req *router.Request) error {
	from := req.From
	inserted, err := b.deps.Store.AddUser(ctx, storage.User{
		ID:        from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		Language:  from.LanguageCode,
	})
	if err != nil {
		req.Logger.Warn("register user failed", logx.Err(err))
	} else if inserted && from.ID != b.cfg.AdminID {
		b.newUser(ctx, from)
	}
	return req.Reply(ctx, tgui.Msg(format.Welcome(format.For(from.LanguageCode))))
}

func (b *Bot) newUser(ctx context.Context, from transport.Sender) {
	name := from.FirstName
	if name == "" {
		name = "User"
	}
	b.deps.Activity.AddNewUser(name, from.Username)
	b.log.Info("new user", logx.Int64("user_id", from.ID))

	if b.cfg.AdminID == 0 || b.deps.Notifier == nil {
		return
	}
	msg := tgui.Msg(format.NewUserNotice(name, from.Username))
	if _, err := b.deps.Notifier.SendText(ctx, transport.ChatTarget{ChatID: b.cfg.AdminID}, msg.Text.String(), msg.Options()); err != nil {
		b.log.Warn("new user notice failed", logx.Err(err))
	}
}

func (b *Bot) help(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, tgui.Msg(format.Help(format.For(req.From.LanguageCode))))
}

func (b *Bot) kurs(ctx context.Context, req *router.Request) error {
	t := format.For(req.From.LanguageCode)
	return req.Reply(ctx, tgui.Msg(tgui.Esc(t.ChooseCurrency)).With(currencyKeyboard(b.deps.Rates.Symbols())))
}

func (b *Bot) all(ctx context.Context, req *router.Request) error {
	t := format.For(req.From.LanguageCode)
	defer b.deps.Activity.Record(req.From.ID, "all", "")

	snaps, err := b.deps.Rates.GetAllRates(ctx)
	if err != nil {
		_ = req.Reply(ctx, tgui.Msg(tgui.Esc(t.Error)))
		return err
	}
	prev, err := b.deps.Rates.YesterdayRates(ctx)
	if err != nil {
		req.Logger.Warn("previous day rates unavailable", logx.Err(err))
	}
	return req.Reply(ctx, tgui.Msg(format.AllRates(t, b.deps.Rates.Symbols(), snaps, prev, b.now())))
}

// view renders one rate view with navigation to the others.
func (b *Bot) view(name string) router.CallbackHandlerFunc {
	return func(ctx context.Context, req *router.Request, payload string) error {
		sym, ok := currency.Parse(payload)
		if !ok || !b.tracked(sym) {
			return nil
		}
		t := format.For(req.From.LanguageCode)

		text, err := b.render(ctx, t, name, sym)
		if err != nil {
			_ = req.Reply(ctx, tgui.Msg(tgui.Esc(t.Error)))
			return fmt.Errorf("%s %s: %w", name, sym, err)
		}
		subscribed, err := b.deps.Store.IsSubscribed(ctx, req.From.ID, sym.String())
		if err != nil {
			req.Logger.Warn("subscription lookup failed", logx.Err(err))
		}
		if err := req.Reply(ctx, tgui.Msg(text).With(navKeyboard(t, sym, name, subscribed))); err != nil {
			return err
		}
		b.deps.Activity.Record(req.From.ID, name, sym)
		return nil
	}
}

func (b *Bot) render(ctx context.Context, t format.Texts, view string, sym currency.Symbol) (tgui.H, error) {
	now := b.now()
	if view == viewHistory {
		recs, err := b.deps.History.History(ctx, sym, b.cfg.HistoryDays)
		if err != nil {
			return "", err
		}
		return format.History(t, sym, recs), nil
	}

	snap, err := b.deps.Rates.GetRate(ctx, sym)
	if err != nil {
		return "", err
	}
	switch view {
	case viewBanks:
		return format.BankRating(t, sym, snap, now), nil
	case viewSpread:
		return format.Spread(t, sym, snap, now), nil
	}
	prev, err := b.deps.Rates.YesterdayRates(ctx)
	if err != nil {
		b.log.Warn("previous day rates unavailable", logx.Err(err))
	}
	return format.CurrencyCard(t, sym, snap, prev[sym], now), nil
}

// subToggle unsubscribes when a subscription exists, otherwise offers the
// hour picker.
func (b *Bot) subToggle(ctx context.Context, req *router.Request, payload string) error {
	sym, ok := currency.Parse(payload)
	if !ok || !b.tracked(sym) {
		return nil
	}
	t := format.For(req.From.LanguageCode)

	removed, err := b.deps.Store.Unsubscribe(ctx, req.From.ID, sym.String())
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if removed {
		b.deps.Activity.SubRemoved()
		return req.Reply(ctx, tgui.Msg(tgui.Esc(t.Unsubscribed(sym))))
	}
	return req.Reply(ctx, tgui.Msg(tgui.Esc(t.ChooseTime(sym))).With(hourKeyboard(sym, b.cfg.SendHours)))
}

// subTime stores the subscription; payload is "<CODE>:<hour>".
func (b *Bot) subTime(ctx context.Context, req *router.Request, payload string) error {
	code, rawHour, found := strings.Cut(payload, ":")
	if !found {
		return nil
	}
	sym, ok := currency.Parse(code)
	if !ok || !b.tracked(sym) {
		return nil
	}
	hour, err := strconv.Atoi(rawHour)
	if err != nil || !b.hourAllowed(hour) {
		req.Logger.Debug("send hour rejected", logx.String("hour", rawHour))
		return nil
	}

	if err := b.deps.Store.Subscribe(ctx, req.From.ID, sym.String(), hour); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	b.deps.Activity.SubAdded()
	t := format.For(req.From.LanguageCode)
	return req.Reply(ctx, tgui.Msg(tgui.Esc(t.Subscribed(sym, hour))))
}
