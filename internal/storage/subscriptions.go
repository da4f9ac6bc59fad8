package storage

import (
	"context"
	"time"
)

// Subscribe creates or updates the send hour for (user, currency).
func (d *DB) Subscribe(ctx context.Context, userID int64, currency string, hour int) error {
	_, err := d.exec(ctx, d.db, `
		INSERT INTO subscriptions (user_id, currency, send_hour, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, currency) DO UPDATE SET send_hour = excluded.send_hour`,
		userID, currency, hour, time.Now().Unix(),
	)
	return err
}

// Unsubscribe reports whether a subscription was removed.
func (d *DB) Unsubscribe(ctx context.Context, userID int64, currency string) (bool, error) {
	res, err := d.exec(ctx, d.db, `DELETE FROM subscriptions WHERE user_id = $1 AND currency = $2`, userID, currency)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d *DB) IsSubscribed(ctx context.Context, userID int64, currency string) (bool, error) {
	var n int
	err := d.queryRow(ctx, d.db, `SELECT COUNT(*) FROM subscriptions WHERE user_id = $1 AND currency = $2`, userID, currency).Scan(&n)
	return n > 0, err
}

// DueSubscriptions lists subscriptions for hour joined with the user's language.
func (d *DB) DueSubscriptions(ctx context.Context, hour int) ([]Due, error) {
	rows, err := d.query(ctx, d.db, `
		SELECT s.user_id, s.currency, COALESCE(u.language, '')
		FROM subscriptions s
		LEFT JOIN users u ON u.user_id = s.user_id
		WHERE s.send_hour = $1
		ORDER BY s.user_id, s.currency`, hour)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Due
	for rows.Next() {
		var due Due
		if err := rows.Scan(&due.UserID, &due.Currency, &due.Language); err != nil {
			return nil, err
		}
		out = append(out, due)
	}
	return out, rows.Err()
}

// DeleteSubscriptions removes every subscription of userID.
func (d *DB) DeleteSubscriptions(ctx context.Context, userID int64) (int64, error) {
	res, err := d.exec(ctx, d.db, `DELETE FROM subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SubscriptionCounts returns subscriptions per currency, most popular first.
func (d *DB) SubscriptionCounts(ctx context.Context) ([]CurrencyCount, error) {
	rows, err := d.query(ctx, d.db, `
		SELECT currency, COUNT(*) AS n
		FROM subscriptions
		GROUP BY currency
		ORDER BY n DESC, currency`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CurrencyCount
	for rows.Next() {
		var c CurrencyCount
		if err := rows.Scan(&c.Currency, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
