package bot

import (
	"context"
	"fmt"

	"kursbot/internal/broadcast"
	"kursbot/internal/format"
	"kursbot/internal/transport/telegram/router"
	logx "kursbot/pkg/logx"
	"kursbot/pkg/tgui"
)

// broadcastActions are the bc:* actions handed to the conversation.
var broadcastActions = []string{"single", "multi", "send", "cancel", "edit"}

func (b *Bot) admin(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, tgui.Msg(format.AdminPanel()).With(adminKeyboard()))
}

// cancel aborts a broadcast in progress; without one it stays silent.
func (b *Bot) cancel(ctx context.Context, req *router.Request) error {
	b.deps.Conv.Handle(ctx, b.event(req, broadcast.EvCancel))
	return nil
}

func (b *Bot) admUsers(ctx context.Context, req *router.Request, _ string) error {
	users, err := b.deps.Store.Users(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	return req.Reply(ctx, tgui.Msg(format.UsersList(users, b.cfg.Location)))
}

func (b *Bot) admStats(ctx context.Context, req *router.Request, _ string) error {
	day := b.dayStart()
	st, err := b.deps.Store.UserStats(ctx, day, day.AddDate(0, 0, -7))
	if err != nil {
		return fmt.Errorf("user stats: %w", err)
	}
	subs, err := b.deps.Store.SubscriptionCounts(ctx)
	if err != nil {
		return fmt.Errorf("subscription counts: %w", err)
	}
	return req.Reply(ctx, tgui.Msg(format.Stats(st, subs)))
}

// admCleanup probes every user and removes the ones that blocked the bot.
// The paced walk runs detached from the request and reports when done.
func (b *Bot) admCleanup(ctx context.Context, req *router.Request, _ string) error {
	ids, err := b.deps.Store.UserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list user ids: %w", err)
	}
	if err := req.Reply(ctx, tgui.Msg(tgui.Esc(format.CleanupStarted))); err != nil {
		req.Logger.Warn("cleanup notice failed", logx.Err(err))
	}
	b.spawn("cleanup."+req.ReqID, func(ctx context.Context) {
		res := b.deps.Cleaner.Cleanup(ctx, ids, b.deps.Prober, b.deps.Store)
		b.deps.Activity.AddBlocked(res.Removed)
		if err := req.Reply(ctx, tgui.Msg(format.CleanupDone(res.Checked, res.Removed))); err != nil {
			req.Logger.Warn("cleanup report failed", logx.Err(err))
		}
	})
	return nil
}

func (b *Bot) admBroadcast(ctx context.Context, req *router.Request, _ string) error {
	b.deps.Conv.Handle(ctx, b.event(req, broadcast.EvStart))
	return nil
}

func (b *Bot) broadcastCallback(ctx context.Context, req *router.Request, _ string) error {
	data := req.Update.Callback.Data
	kind, ok := broadcast.EventForCallback(data)
	if !ok {
		return nil
	}
	if !b.deps.Conv.Handle(ctx, b.event(req, kind)) {
		req.Logger.Debug("broadcast callback ignored", logx.String("data", data))
	}
	return nil
}

// text feeds plain messages to the broadcast conversation.
func (b *Bot) text(ctx context.Context, req *router.Request) error {
	if req.From.ID != b.cfg.AdminID {
		return nil
	}
	ev := b.event(req, broadcast.EvText)
	ev.Text = req.Update.Message.Text
	b.deps.Conv.Handle(ctx, ev)
	return nil
}

func (b *Bot) event(req *router.Request, kind broadcast.EventKind) broadcast.Event {
	return broadcast.Event{Kind: kind, UserID: req.From.ID, ChatID: req.Chat.ChatID}
}
