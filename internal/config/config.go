package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URI  string `yaml:"uri"`
	Name string `yaml:"name"`
}

type IdentityConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	APIBase       string `yaml:"api_base"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type LemonSqueezyConfig struct {
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type WebXPayConfig struct {
	MerchantID string `yaml:"merchant_id"`
	SecretKey  string `yaml:"secret_key"`
}

type PaymentsConfig struct {
	Stripe       StripeConfig       `yaml:"stripe"`
	LemonSqueezy LemonSqueezyConfig `yaml:"lemonsqueezy"`
	WebXPay      WebXPayConfig      `yaml:"webxpay"`
}

type RateLimitRule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type RateLimitConfig struct {
	Webhook  RateLimitRule `yaml:"webhook"`
	Identity RateLimitRule `yaml:"identity"`
	API      RateLimitRule `yaml:"api"`
}

type SweeperConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Identity  IdentityConfig  `yaml:"identity"`
	Payments  PaymentsConfig  `yaml:"payments"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file (optional: a missing file yields an
// env-only config) and overlays secrets from the environment. The
// environment wins so deployments never have to write secrets to disk.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	overlayEnv(&cfg)

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "saas"
	}
	if cfg.Identity.APIBase == "" {
		cfg.Identity.APIBase = "https://api.clerk.com/v1"
	}
	if cfg.RateLimit.Webhook.Limit <= 0 {
		cfg.RateLimit.Webhook = RateLimitRule{Limit: 60, Window: time.Minute}
	}
	if cfg.RateLimit.Identity.Limit <= 0 {
		cfg.RateLimit.Identity = RateLimitRule{Limit: 30, Window: time.Minute}
	}
	if cfg.RateLimit.API.Limit <= 0 {
		cfg.RateLimit.API = RateLimitRule{Limit: 120, Window: time.Minute}
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = 5 * time.Minute
	}
	if cfg.Sweeper.StaleAfter <= 0 {
		cfg.Sweeper.StaleAfter = 10 * time.Minute
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func overlayEnv(cfg *Config) {
	setIfEnv(&cfg.Database.URI, "MONGODB_URI")
	setIfEnv(&cfg.Database.Name, "MONGODB_DB")
	setIfEnv(&cfg.Identity.SecretKey, "CLERK_SECRET_KEY")
	setIfEnv(&cfg.Identity.WebhookSecret, "CLERK_WEBHOOK_SECRET")
	setIfEnv(&cfg.Payments.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setIfEnv(&cfg.Payments.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setIfEnv(&cfg.Payments.LemonSqueezy.APIKey, "LEMONSQUEEZY_API_KEY")
	setIfEnv(&cfg.Payments.LemonSqueezy.WebhookSecret, "LEMONSQUEEZY_WEBHOOK_SECRET")
	setIfEnv(&cfg.Payments.WebXPay.MerchantID, "WEBXPAY_MERCHANT_ID")
	setIfEnv(&cfg.Payments.WebXPay.SecretKey, "WEBXPAY_SECRET_KEY")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
