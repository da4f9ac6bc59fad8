package rates

import (
	"time"

	"kursbot/internal/currency"
)

// Offer is one bank's published rate in sum.
type Offer struct {
	Bank string
	Rate int64
}

// Snapshot is one fetch result. Buy lists what banks pay (the user sells),
// Sell lists what banks charge (the user buys), in published order.
// Snapshots are never mutated after creation.
type Snapshot struct {
	Symbol    currency.Symbol
	CBRate    int64
	Buy       []Offer
	Sell      []Offer
	FetchedAt time.Time
}

// BestBuy is the first bank-buys offer.
func (s Snapshot) BestBuy() (Offer, bool) {
	if len(s.Buy) == 0 {
		return Offer{}, false
	}
	return s.Buy[0], true
}

// BestSell is the first bank-sells offer.
func (s Snapshot) BestSell() (Offer, bool) {
	if len(s.Sell) == 0 {
		return Offer{}, false
	}
	return s.Sell[0], true
}

// SeriesPoint is one day of the central-bank series embedded in the page.
type SeriesPoint struct {
	Date  string // 2006-01-02
	Value int64
}

// Page is everything extracted from one currency document.
type Page struct {
	Snapshot Snapshot
	Series   []SeriesPoint
}
