package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertRate writes every value column for (date, currency). Last writer wins.
func (d *DB) UpsertRate(ctx context.Context, r RateRow) error {
	_, err := d.exec(ctx, d.db, `
		INSERT INTO rates_history (date, currency, cb_rate, bank_buy_rate, bank_buy_name, bank_sell_rate, bank_sell_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date, currency) DO UPDATE SET
			cb_rate = excluded.cb_rate,
			bank_buy_rate = excluded.bank_buy_rate,
			bank_buy_name = excluded.bank_buy_name,
			bank_sell_rate = excluded.bank_sell_rate,
			bank_sell_name = excluded.bank_sell_name`,
		r.Date, r.Currency, r.CBRate, r.BuyRate, nullStr(r.BuyName), r.SellRate, nullStr(r.SellName),
	)
	if err != nil {
		return fmt.Errorf("upsert rate %s %s: %w", r.Currency, r.Date, err)
	}
	return nil
}

// BackfillCB upserts only cb_rate for each point in one transaction; bank
// columns of existing rows are left alone.
func (d *DB) BackfillCB(ctx context.Context, currency string, points []CBPoint) error {
	if len(points) == 0 {
		return nil
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, rebind(d.driver, `
			INSERT INTO rates_history (date, currency, cb_rate)
			VALUES ($1, $2, $3)
			ON CONFLICT (date, currency) DO UPDATE SET cb_rate = excluded.cb_rate`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range points {
			if _, err := stmt.ExecContext(ctx, p.Date, currency, p.Value); err != nil {
				return fmt.Errorf("backfill %s %s: %w", currency, p.Date, err)
			}
		}
		return nil
	})
}

// RateHistory returns up to limit rows for currency, newest first.
func (d *DB) RateHistory(ctx context.Context, currency string, limit int) ([]RateRow, error) {
	if limit <= 0 {
		limit = 7
	}
	rows, err := d.query(ctx, d.db, `
		SELECT CAST(date AS TEXT), currency, cb_rate, bank_buy_rate, COALESCE(bank_buy_name, ''),
		       bank_sell_rate, COALESCE(bank_sell_name, '')
		FROM rates_history
		WHERE currency = $1
		ORDER BY date DESC
		LIMIT $2`, currency, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RateRow
	for rows.Next() {
		var r RateRow
		if err := rows.Scan(&r.Date, &r.Currency, &r.CBRate, &r.BuyRate, &r.BuyName, &r.SellRate, &r.SellName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestCBBefore returns, per currency, the newest cb_rate > 0 dated strictly
// before date ("2006-01-02").
func (d *DB) LatestCBBefore(ctx context.Context, date string) (map[string]int64, error) {
	rows, err := d.query(ctx, d.db, `
		SELECT h.currency, h.cb_rate
		FROM rates_history h
		JOIN (
			SELECT currency, MAX(date) AS d
			FROM rates_history
			WHERE cb_rate > 0 AND date < $1
			GROUP BY currency
		) latest ON latest.currency = h.currency AND latest.d = h.date`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var (
			cur  string
			rate int64
		)
		if err := rows.Scan(&cur, &rate); err != nil {
			return nil, err
		}
		out[cur] = rate
	}
	return out, rows.Err()
}
