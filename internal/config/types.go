package config

// Config is the on-disk configuration (JSON or YAML). Fields tagged with
// env can be overridden from the environment.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Rates     RatesConfig     `json:"rates"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type TelegramConfig struct {
	Token   string `json:"token" env:"BOT_TOKEN"`
	AdminID int64  `json:"admin_id" env:"ADMIN_ID"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	Workers     int    `json:"workers,omitempty"`
	// HandlerTimeout bounds a single command or callback.
	HandlerTimeout string `json:"handler_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level" env:"LOG_LEVEL"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards warnings and errors to the admin chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the database.
//
//	"storage": { "driver": "sqlite", "dsn": "./kursbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	DSN         string `json:"dsn" env:"DATABASE_URL"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type RatesConfig struct {
	BaseURL        string   `json:"base_url" env:"RATES_BASE_URL"`
	UserAgent      string   `json:"user_agent,omitempty"`
	CacheTTL       string   `json:"cache_ttl,omitempty"`
	HTTPTimeout    string   `json:"http_timeout,omitempty"`
	PersistTimeout string   `json:"persist_timeout,omitempty"`
	Currencies     []string `json:"currencies,omitempty"`
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Timezone anchors "today", the hourly dispatch and the digest.
	Timezone   string `json:"timezone,omitempty" env:"TZ_REFERENCE"`
	Tick       string `json:"tick,omitempty"`
	DigestHour *int   `json:"digest_hour,omitempty"`
	SendHours  []int  `json:"send_hours,omitempty"`
}

type DeliveryConfig struct {
	// Interval between consecutive sends in one batch.
	Interval string `json:"interval,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}
