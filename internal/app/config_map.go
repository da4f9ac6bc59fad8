package app

import (
	"strings"
	"time"

	"kursbot/internal/config"
	"kursbot/internal/delivery"
	"kursbot/internal/metrics"
	"kursbot/internal/rates"
	"kursbot/internal/scheduler"
	"kursbot/internal/storage"
	"kursbot/internal/transport/telegram/adapter"
	"kursbot/internal/transport/telegram/router"
	logx "kursbot/pkg/logx"
)

const defaultHandlerTimeout = 20 * time.Second

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapAdapterConfig(cfg *config.Config) (adapter.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	if err != nil {
		return adapter.Config{}, err
	}
	return adapter.Config{Token: strings.TrimSpace(cfg.Telegram.Token), PollTimeout: poll}, nil
}

func mapRouterConfig(cfg *config.Config) (router.Config, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.handler_timeout", cfg.Telegram.HandlerTimeout, defaultHandlerTimeout)
	if err != nil {
		return router.Config{}, err
	}
	return router.Config{
		AdminID: cfg.Telegram.AdminID,
		Workers: cfg.Telegram.Workers,
		Timeout: timeout,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.TrimSpace(cfg.Storage.Driver),
		DSN:         strings.TrimSpace(cfg.Storage.DSN),
		BusyTimeout: busy,
	}, nil
}

func mapRatesConfig(cfg *config.Config, loc *time.Location) (rates.Config, error) {
	syms, err := cfg.Rates.Symbols()
	if err != nil {
		return rates.Config{}, err
	}
	ttl, err := config.ParseDurationOrDefault("rates.cache_ttl", cfg.Rates.CacheTTL, config.DefaultCacheTTL)
	if err != nil {
		return rates.Config{}, err
	}
	persist, err := config.ParseDurationOrDefault("rates.persist_timeout", cfg.Rates.PersistTimeout, config.DefaultPersistTimeout)
	if err != nil {
		return rates.Config{}, err
	}
	fetch, err := config.ParseDurationOrDefault("rates.http_timeout", cfg.Rates.HTTPTimeout, config.DefaultHTTPTimeout)
	if err != nil {
		return rates.Config{}, err
	}
	return rates.Config{Symbols: syms, TTL: ttl, PersistTimeout: persist, FetchTimeout: fetch, Location: loc}, nil
}

// mapRatesSource returns the page source settings with defaults applied.
func mapRatesSource(cfg *config.Config) (baseURL, userAgent string, timeout time.Duration, err error) {
	baseURL = strings.TrimSpace(cfg.Rates.BaseURL)
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	userAgent = strings.TrimSpace(cfg.Rates.UserAgent)
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	timeout, err = config.ParseDurationOrDefault("rates.http_timeout", cfg.Rates.HTTPTimeout, config.DefaultHTTPTimeout)
	return baseURL, userAgent, timeout, err
}

func mapSchedulerConfig(cfg *config.Config, loc *time.Location) (scheduler.Config, error) {
	tick, err := config.ParseDurationOrDefault("scheduler.tick", cfg.Scheduler.Tick, config.DefaultTick)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Location:   loc,
		Tick:       tick,
		DigestHour: cfg.Scheduler.Digest(),
		AdminID:    cfg.Telegram.AdminID,
	}, nil
}

func mapDeliveryConfig(cfg *config.Config) (delivery.Config, error) {
	iv, err := config.ParseDurationOrDefault("delivery.interval", cfg.Delivery.Interval, config.DefaultInterval)
	if err != nil {
		return delivery.Config{}, err
	}
	return delivery.Config{Interval: iv}, nil
}

func mapMetricsConfig(cfg *config.Config) metrics.ServerConfig {
	addr := strings.TrimSpace(cfg.Metrics.Addr)
	if addr == "" {
		addr = config.DefaultMetricsAddr
	}
	return metrics.ServerConfig{Enabled: cfg.Metrics.Enabled, Addr: addr, Pprof: cfg.Metrics.Pprof}
}
