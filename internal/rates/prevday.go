package rates

import (
	"context"
	"sync"
	"time"

	"kursbot/internal/currency"
)

// PrevDayStore answers "latest positive central-bank rate before date".
type PrevDayStore interface {
	LatestBefore(ctx context.Context, date string) (map[currency.Symbol]int64, error)
}

// prevDay memoizes the previous-day rates for one calendar day.
type prevDay struct {
	store PrevDayStore
	loc   *time.Location
	now   func() time.Time

	mu   sync.Mutex
	day  string
	data map[currency.Symbol]int64
}

func (p *prevDay) get(ctx context.Context) (map[currency.Symbol]int64, error) {
	today := p.now().In(p.loc).Format("2006-01-02")

	// held across the query so one caller per day pays for it
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.day == today && p.data != nil {
		return p.data, nil
	}
	data, err := p.store.LatestBefore(ctx, today)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = map[currency.Symbol]int64{}
	}
	p.day, p.data = today, data
	return data, nil
}
