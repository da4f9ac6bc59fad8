package storage

import (
	"errors"
	"time"
)

var ErrUnknownDriver = errors.New("storage: unknown driver")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver      string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RateRow is one rates_history row. Date is "2006-01-02".
type RateRow struct {
	Date     string
	Currency string
	CBRate   int64
	BuyRate  int64
	BuyName  string
	SellRate int64
	SellName string
}

// CBPoint is a single central-bank value for a date.
type CBPoint struct {
	Date  string
	Value int64
}

type User struct {
	ID        int64
	Username  string
	FirstName string
	Language  string
	CreatedAt time.Time
}

type UserStats struct {
	Total int
	Today int
	Week  int
}

// Due is a subscription that fires this hour, with the subscriber's language.
type Due struct {
	UserID   int64
	Currency string
	Language string
}

type CurrencyCount struct {
	Currency string
	Count    int
}
