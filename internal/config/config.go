package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token     string  `yaml:"token"`
	Mode      string  `yaml:"mode"` // polling only for now
	Username  string  `yaml:"username"`
	Workers   int     `yaml:"workers"` // polling workers
	AdminIDs  []int64 `yaml:"admin_ids"`
	RateLimit int     `yaml:"rate_limit"` // callbacks per user per minute
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

// AdminConfig is the ops HTTP server: health, metrics and top-up decisions.
type AdminConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type VendorConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
}

type ProvidersConfig struct {
	Enabled    string       `yaml:"enabled"` // "numberland,onlinesim"
	Display    string       `yaml:"display"` // "numberland:Numberland|onlinesim:OnlineSim"
	Numberland VendorConfig `yaml:"numberland"`
	OnlineSim  VendorConfig `yaml:"onlinesim"`
}

type PricingConfig struct {
	BaseMarkupPercent float64 `yaml:"base_markup_percent"`
	RoundTo           int64   `yaml:"round_to"`
	MinMargin         int64   `yaml:"min_margin"`
}

type PollConfig struct {
	Interval               time.Duration `yaml:"interval"`
	Grace                  time.Duration `yaml:"grace"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	NotifyOnExpiry         *bool         `yaml:"notify_on_expiry"`
}

type WalletConfig struct {
	HistoryCap      int           `yaml:"history_cap"`
	OrderHistoryCap int           `yaml:"order_history_cap"`
	TopUpPendingTTL time.Duration `yaml:"topup_pending_ttl"`
	TopUpDecidedTTL time.Duration `yaml:"topup_decided_ttl"`
	Currency        string        `yaml:"currency"`
}

type LocaleConfig struct {
	Default string `yaml:"default"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Redis     RedisConfig     `yaml:"redis"`
	Providers ProvidersConfig `yaml:"providers"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Poll      PollConfig      `yaml:"poll"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Locale    LocaleConfig    `yaml:"locale"`

	Runtime RuntimeConfig `yaml:"-"`
}

// envOverrides are the variable names the deployment has always used.
type envOverrides struct {
	BotToken          string   `env:"BOT_TOKEN"`
	AdminIDs          []int64  `env:"ADMIN_IDS" envSeparator:","`
	NumberlandAPIKey  string   `env:"NUMBERLAND_API_KEY"`
	OnlineSimAPIKey   string   `env:"ONLINESIM_API_KEY"`
	RedisURL          string   `env:"REDIS_URL"`
	EnabledProviders  string   `env:"ENABLED_PROVIDERS"`
	ProvidersDisplay  string   `env:"PROVIDERS_DISPLAY"`
	BaseMarkupPercent *float64 `env:"BASE_MARKUP_PERCENT"`
	MarkupRoundTo     *int64   `env:"MARKUP_ROUND_TO"`
	LocaleDefault     string   `env:"LOCALE_DEFAULT"`
	AdminJWTSecret    string   `env:"ADMIN_JWT_SECRET"`
}

// LoadConfig reads the YAML file at path, loads .env when present, applies
// environment overrides, defaults and validation.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// .env is optional
	_ = godotenv.Load()
	return Parse(b, dev)
}

// Parse builds a Config from YAML bytes plus the process environment.
func Parse(b []byte, dev bool) (*Config, error) {
	// zero is a valid markup and step, so these are seeded before the overlay
	cfg := Config{Pricing: PricingConfig{BaseMarkupPercent: 20, RoundTo: 100}}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	ov, err := env.ParseAs[envOverrides]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyEnv(ov)
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Pricing.BaseMarkupPercent < 0 || cfg.Pricing.MinMargin < 0 {
		return nil, errors.New("pricing: markup and min_margin must be >= 0")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyEnv(ov envOverrides) {
	if ov.BotToken != "" {
		c.Bot.Token = ov.BotToken
	}
	if len(ov.AdminIDs) > 0 {
		c.Bot.AdminIDs = ov.AdminIDs
	}
	if ov.NumberlandAPIKey != "" {
		c.Providers.Numberland.APIKey = ov.NumberlandAPIKey
	}
	if ov.OnlineSimAPIKey != "" {
		c.Providers.OnlineSim.APIKey = ov.OnlineSimAPIKey
	}
	if ov.RedisURL != "" {
		c.Redis.URL = ov.RedisURL
	}
	if ov.EnabledProviders != "" {
		c.Providers.Enabled = ov.EnabledProviders
	}
	if ov.ProvidersDisplay != "" {
		c.Providers.Display = ov.ProvidersDisplay
	}
	if ov.BaseMarkupPercent != nil {
		c.Pricing.BaseMarkupPercent = *ov.BaseMarkupPercent
	}
	if ov.MarkupRoundTo != nil {
		c.Pricing.RoundTo = *ov.MarkupRoundTo
	}
	if ov.LocaleDefault != "" {
		c.Locale.Default = ov.LocaleDefault
	}
	if ov.AdminJWTSecret != "" {
		c.Admin.JWTSecret = ov.AdminJWTSecret
	}
}

func (c *Config) applyDefaults() {
	if c.Bot.Workers <= 0 {
		c.Bot.Workers = 8
	}
	if c.Bot.RateLimit <= 0 {
		c.Bot.RateLimit = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Admin.Port <= 0 {
		c.Admin.Port = 9090
	}
	if strings.TrimSpace(c.Providers.Enabled) == "" {
		c.Providers.Enabled = "numberland"
	}
	if c.Providers.Display == "" {
		c.Providers.Display = "numberland:Numberland|onlinesim:OnlineSim"
	}
	vendorDefaults(&c.Providers.Numberland, "https://api.numberland.ir")
	vendorDefaults(&c.Providers.OnlineSim, "https://onlinesim.io/api")

	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 4 * time.Second
	}
	if c.Poll.Grace <= 0 {
		c.Poll.Grace = time.Hour
	}
	if c.Poll.MaxConsecutiveFailures <= 0 {
		c.Poll.MaxConsecutiveFailures = 30
	}
	if c.Poll.NotifyOnExpiry == nil {
		v := true
		c.Poll.NotifyOnExpiry = &v
	}

	if c.Wallet.HistoryCap <= 0 {
		c.Wallet.HistoryCap = 50
	}
	if c.Wallet.OrderHistoryCap <= 0 {
		c.Wallet.OrderHistoryCap = 50
	}
	if c.Wallet.TopUpPendingTTL <= 0 {
		c.Wallet.TopUpPendingTTL = 24 * time.Hour
	}
	if c.Wallet.TopUpDecidedTTL <= 0 {
		c.Wallet.TopUpDecidedTTL = time.Hour
	}
	if c.Wallet.Currency == "" {
		c.Wallet.Currency = "Toman"
	}

	switch c.Locale.Default {
	case "fa", "en", "ru":
	default:
		c.Locale.Default = "fa"
	}
}

func vendorDefaults(v *VendorConfig, baseURL string) {
	if v.BaseURL == "" {
		v.BaseURL = baseURL
	}
	if v.Timeout <= 0 {
		v.Timeout = 15 * time.Second
	}
	if v.MaxRetries < 0 {
		v.MaxRetries = 0
	} else if v.MaxRetries == 0 {
		v.MaxRetries = 2
	}
	if v.Backoff <= 0 {
		v.Backoff = 600 * time.Millisecond
	}
}

// IsAdmin reports whether tgID is listed in bot.admin_ids.
func (c *Config) IsAdmin(tgID int64) bool {
	for _, id := range c.Bot.AdminIDs {
		if id == tgID {
			return true
		}
	}
	return false
}
