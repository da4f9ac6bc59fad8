package storage

import (
	"context"
	"database/sql"
	"time"
)

// AddUser inserts u unless it exists. inserted reports a new row.
func (d *DB) AddUser(ctx context.Context, u User) (inserted bool, err error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	res, err := d.exec(ctx, d.db, `
		INSERT INTO users (user_id, username, first_name, language, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING`,
		u.ID, nullStr(u.Username), nullStr(u.FirstName), nullStr(u.Language), u.CreatedAt.Unix(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Users lists every user, oldest first.
func (d *DB) Users(ctx context.Context) ([]User, error) {
	rows, err := d.query(ctx, d.db, `
		SELECT user_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(language, ''), created_at
		FROM users
		ORDER BY created_at, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var (
			u  User
			ts int64
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.Language, &ts); err != nil {
			return nil, err
		}
		u.CreatedAt = time.Unix(ts, 0)
		out = append(out, u)
	}
	return out, rows.Err()
}

// UserIDs lists every user id.
func (d *DB) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.query(ctx, d.db, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteUser removes the user and their subscriptions.
func (d *DB) DeleteUser(ctx context.Context, userID int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := d.exec(ctx, tx, `DELETE FROM subscriptions WHERE user_id = $1`, userID); err != nil {
			return err
		}
		_, err := d.exec(ctx, tx, `DELETE FROM users WHERE user_id = $1`, userID)
		return err
	})
}

// UserStats counts all users and those created since dayStart and weekStart.
func (d *DB) UserStats(ctx context.Context, dayStart, weekStart time.Time) (UserStats, error) {
	var st UserStats
	err := d.queryRow(ctx, d.db, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN created_at >= $1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN created_at >= $2 THEN 1 ELSE 0 END), 0)
		FROM users`, dayStart.Unix(), weekStart.Unix()).Scan(&st.Total, &st.Today, &st.Week)
	return st, err
}
