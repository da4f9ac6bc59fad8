package rates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"kursbot/internal/currency"
)

// Page markup selectors.
const (
	selCBRate     = ".col-2.cours-active"
	selCBValue    = ".semibold-text"
	selBuyBlocks  = ".bc-inner-blocks-left .bc-inner-block-left-texts"
	selSellBlocks = ".bc-inner-blocks-right .bc-inner-block-left-texts"
	selBankName   = ".bc-inner-block-left-text .medium-text"
	selOfferRate  = ".medium-text.green-date"
)

// SeriesWindow is how many trailing series points are kept.
const SeriesWindow = 30

var (
	errEmptyPage = errors.New("no central bank rate and no offers in document")

	chartDataRe = regexp.MustCompile(`chart\.data\s*=\s*(\[[\s\S]*?\]);`)
)

// Extract parses a currency page. Offers with a non-positive rate or an
// empty bank name are dropped.
func Extract(sym currency.Symbol, doc []byte) (Page, error) {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return Page{}, fmt.Errorf("parse document: %w", err)
	}

	snap := Snapshot{Symbol: sym}
	snap.CBRate = ParseAmount(d.Find(selCBRate).Eq(1).Find(selCBValue).Text())

	tab := d.Find("#best_" + string(sym))
	snap.Buy = offers(tab.Find(selBuyBlocks))
	snap.Sell = offers(tab.Find(selSellBlocks))

	if snap.CBRate <= 0 && len(snap.Buy) == 0 && len(snap.Sell) == 0 {
		return Page{}, errEmptyPage
	}
	return Page{Snapshot: snap, Series: ExtractSeries(doc)}, nil
}

func offers(sel *goquery.Selection) []Offer {
	var out []Offer
	sel.Each(func(_ int, el *goquery.Selection) {
		bank := strings.TrimSpace(el.Find(selBankName).First().Text())
		rate := ParseAmount(el.Find(selOfferRate).First().Text())
		if rate > 0 && bank != "" {
			out = append(out, Offer{Bank: bank, Rate: rate})
		}
	})
	return out
}

// ParseAmount reads the leading integer of a published amount such as
// "12 650,50 сум". Anything unparsable is 0.
func ParseAmount(s string) int64 {
	s = strings.ReplaceAll(strings.ToLower(s), "сум", "")
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	s = b.String()

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	var n int64
	digits := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int64(r-'0')
		digits++
		if digits > 15 {
			return 0
		}
	}
	if digits == 0 {
		return 0
	}
	if neg {
		return -n
	}
	return n
}

type seriesEntry struct {
	Date  string          `json:"date"`
	Value json.RawMessage `json:"value"`
}

var seriesDateLayouts = []string{"2006-01-02", "02.01.2006", "2006-01-02 15:04:05", time.RFC3339}

// ExtractSeries returns the trailing SeriesWindow points of the embedded
// chart data. Points with an unreadable date or a rounded value <= 0 are
// skipped. A missing or malformed array yields nil.
func ExtractSeries(doc []byte) []SeriesPoint {
	m := chartDataRe.FindSubmatch(doc)
	if m == nil {
		return nil
	}
	var entries []seriesEntry
	if err := json.Unmarshal(m[1], &entries); err != nil {
		return nil
	}
	if len(entries) > SeriesWindow {
		entries = entries[len(entries)-SeriesWindow:]
	}

	out := make([]SeriesPoint, 0, len(entries))
	for _, e := range entries {
		date, ok := normalizeDate(e.Date)
		if !ok {
			continue
		}
		v, ok := seriesValue(e.Value)
		if !ok || v <= 0 {
			continue
		}
		out = append(out, SeriesPoint{Date: date, Value: v})
	}
	return out
}

func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range seriesDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// seriesValue accepts a JSON number or a numeric string and rounds half away from zero.
func seriesValue(raw json.RawMessage) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, false
		}
		s = strings.ReplaceAll(strings.TrimSpace(str), ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.Round(0).IntPart(), true
}
