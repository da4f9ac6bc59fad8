package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"kursbot/internal/currency"
	logx "kursbot/pkg/logx"
)

const (
	DefaultTimezone       = "Asia/Tashkent"
	DefaultBaseURL        = "https://bank.uz/currency/"
	DefaultUserAgent      = "Mozilla/5.0 (compatible; kursbot/1.0)"
	DefaultCacheTTL       = 5 * time.Minute
	DefaultHTTPTimeout    = 15 * time.Second
	DefaultPersistTimeout = 30 * time.Second
	DefaultTick           = 30 * time.Second
	DefaultDigestHour     = 6
	DefaultInterval       = 35 * time.Millisecond
	DefaultPollTimeout    = 10 * time.Second
	DefaultMetricsAddr    = "127.0.0.1:9091"
)

// DefaultSendHours are the hours offered in the subscription picker.
var DefaultSendHours = []int{6, 7, 8, 9, 10, 12, 18, 21}

// Validate checks the whole config and joins every problem it finds.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add(errors.New("telegram.token is required (or BOT_TOKEN)"))
	}
	if c.Telegram.AdminID <= 0 {
		add(errors.New("telegram.admin_id must be a positive user id (or ADMIN_ID)"))
	}
	if c.Telegram.Workers < 0 {
		add(errors.New("telegram.workers must be >= 0"))
	}
	_, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout)
	add(err)
	_, err = ParseDurationField("telegram.handler_timeout", c.Telegram.HandlerTimeout)
	add(err)

	if !logx.ValidLevel(c.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if !logx.ValidLevel(c.Logging.Telegram.MinLevel) {
		add(fmt.Errorf("logging.telegram.min_level: unknown level %q", c.Logging.Telegram.MinLevel))
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "sqlite", "postgres":
	default:
		add(fmt.Errorf("storage.driver: unsupported %q", c.Storage.Driver))
	}
	_, err = ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	add(err)

	if raw := strings.TrimSpace(c.Rates.BaseURL); raw != "" {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			add(fmt.Errorf("rates.base_url: invalid url %q", raw))
		}
	}
	_, err = c.Rates.Symbols()
	add(err)
	for path, raw := range map[string]string{
		"rates.cache_ttl":       c.Rates.CacheTTL,
		"rates.http_timeout":    c.Rates.HTTPTimeout,
		"rates.persist_timeout": c.Rates.PersistTimeout,
		"delivery.interval":     c.Delivery.Interval,
	} {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	// minute 0 must be observed every hour
	if tick, err := ParseDurationField("scheduler.tick", c.Scheduler.Tick); err != nil {
		add(err)
	} else if tick >= time.Minute {
		add(fmt.Errorf("scheduler.tick: %s must be under a minute", tick))
	}

	_, err = c.Scheduler.Location()
	add(err)
	if h := c.Scheduler.Digest(); h < 0 || h > 23 {
		add(fmt.Errorf("scheduler.digest_hour: %d out of range 0..23", h))
	}
	for _, h := range c.Scheduler.SendHours {
		if h < 0 || h > 23 {
			add(fmt.Errorf("scheduler.send_hours: %d out of range 0..23", h))
		}
	}
	return errors.Join(errs...)
}

// Symbols returns the configured currencies, or all supported ones when empty.
func (r RatesConfig) Symbols() ([]currency.Symbol, error) {
	if len(r.Currencies) == 0 {
		return append([]currency.Symbol(nil), currency.All...), nil
	}
	out := make([]currency.Symbol, 0, len(r.Currencies))
	seen := map[currency.Symbol]bool{}
	for _, raw := range r.Currencies {
		sym, ok := currency.Parse(raw)
		if !ok {
			return nil, fmt.Errorf("rates.currencies: unknown currency %q", raw)
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out, nil
}

// Location loads the reference timezone, defaulting to DefaultTimezone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

func (s SchedulerConfig) Digest() int {
	if s.DigestHour == nil {
		return DefaultDigestHour
	}
	return *s.DigestHour
}

func (s SchedulerConfig) Hours() []int {
	if len(s.SendHours) == 0 {
		return append([]int(nil), DefaultSendHours...)
	}
	return append([]int(nil), s.SendHours...)
}
