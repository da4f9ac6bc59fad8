package delivery

import (
	"context"

	"kursbot/internal/transport"
	logx "kursbot/pkg/logx"
)

// Prober checks whether a chat can still be reached without sending a message.
type Prober interface {
	Probe(ctx context.Context, chatID int64) error
}

// Remover deletes a user together with their subscriptions.
type Remover interface {
	DeleteUser(ctx context.Context, userID int64) error
}

type CleanupResult struct {
	Checked int
	Removed int
}

// Cleanup probes every user at the delivery pace and removes the unreachable
// ones. Other probe errors leave the user in place.
func (e *Engine) Cleanup(ctx context.Context, userIDs []int64, prober Prober, remover Remover) CleanupResult {
	var res CleanupResult
	log := e.log.With(logx.String("source", "cleanup"))

	for _, id := range userIDs {
		if err := e.lim.Wait(ctx); err != nil {
			log.Info("cleanup interrupted", logx.Int("checked", res.Checked), logx.Err(err))
			break
		}
		res.Checked++
		err := prober.Probe(ctx, id)
		if err == nil {
			continue
		}
		if !transport.IsUnreachable(err) {
			log.Warn("probe failed", logx.Int64("user_id", id), logx.Err(err))
			continue
		}
		if err := remover.DeleteUser(context.WithoutCancel(ctx), id); err != nil {
			log.Warn("remove user failed", logx.Int64("user_id", id), logx.Err(err))
			continue
		}
		res.Removed++
		e.obs.Delivered("cleanup", OutcomeBlocked)
	}

	log.Info("cleanup finished", logx.Int("checked", res.Checked), logx.Int("removed", res.Removed))
	return res
}
