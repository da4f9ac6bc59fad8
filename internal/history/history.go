// Package history persists daily rate rows and answers history and
// previous-day queries.
package history

import (
	"context"
	"time"

	"kursbot/internal/currency"
	"kursbot/internal/rates"
	"kursbot/internal/storage"
)

const dateLayout = "2006-01-02"

// DefaultLimit is the number of days shown in the history view.
const DefaultLimit = 7

// Record is one stored day for a currency.
type Record struct {
	Date     time.Time
	CBRate   int64
	BuyRate  int64
	BuyName  string
	SellRate int64
	SellName string
}

type Store struct {
	db  *storage.DB
	loc *time.Location
	now func() time.Time
}

func New(db *storage.DB, loc *time.Location, now func() time.Time) *Store {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, loc: loc, now: now}
}

// Today is the current date in the reference timezone.
func (s *Store) Today() string {
	return s.now().In(s.loc).Format(dateLayout)
}

// UpsertToday overwrites today's row with the snapshot. The best offers are
// the first of each list; missing ones are stored as 0 and NULL.
func (s *Store) UpsertToday(ctx context.Context, sym currency.Symbol, snap rates.Snapshot) error {
	row := storage.RateRow{Date: s.Today(), Currency: sym.String(), CBRate: snap.CBRate}
	if o, ok := snap.BestBuy(); ok {
		row.BuyRate, row.BuyName = o.Rate, o.Bank
	}
	if o, ok := snap.BestSell(); ok {
		row.SellRate, row.SellName = o.Rate, o.Bank
	}
	return s.db.UpsertRate(ctx, row)
}

// Backfill writes cb_rate for the trailing window of the series, skipping
// non-positive values. Bank columns are never touched.
func (s *Store) Backfill(ctx context.Context, sym currency.Symbol, series []rates.SeriesPoint) error {
	if len(series) > rates.SeriesWindow {
		series = series[len(series)-rates.SeriesWindow:]
	}
	pts := make([]storage.CBPoint, 0, len(series))
	for _, p := range series {
		if p.Value <= 0 || p.Date == "" {
			continue
		}
		pts = append(pts, storage.CBPoint{Date: p.Date, Value: p.Value})
	}
	return s.db.BackfillCB(ctx, sym.String(), pts)
}

// History returns up to limit records, newest first.
func (s *Store) History(ctx context.Context, sym currency.Symbol, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.RateHistory(ctx, sym.String(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		d, err := parseDate(r.Date, s.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{
			Date:     d,
			CBRate:   r.CBRate,
			BuyRate:  r.BuyRate,
			BuyName:  r.BuyName,
			SellRate: r.SellRate,
			SellName: r.SellName,
		})
	}
	return out, nil
}

// LatestBefore returns the newest positive cb_rate per currency strictly
// before date. Unknown currency codes in storage are ignored.
func (s *Store) LatestBefore(ctx context.Context, date string) (map[currency.Symbol]int64, error) {
	raw, err := s.db.LatestCBBefore(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make(map[currency.Symbol]int64, len(raw))
	for code, v := range raw {
		if sym, ok := currency.Parse(code); ok {
			out[sym] = v
		}
	}
	return out, nil
}

// parseDate accepts "2006-01-02" plus timestamp forms some drivers return
// for DATE columns cast to text.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if len(s) >= len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.ParseInLocation(dateLayout, s, loc)
}
