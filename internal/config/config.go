package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type BillsConfig struct {
	Timezone        string
	DefaultPageSize int
	MaxPageSize     int
	ActionLockTTL   time.Duration
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	FromName  string
	ContactTo string
}

type PaymentConfig struct {
	Provider      string
	LinkBaseURL   string
	Currency      string
	StripeAPIKey  string
	WebhookSecret string
}

type SlackConfig struct {
	BotToken string
	Channel  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Bills       BillsConfig
	SMTP        SMTPConfig
	Payment     PaymentConfig
	Slack       SlackConfig
	Redis       RedisConfig
}

const (
	PaymentProviderStatic = "static"
	PaymentProviderStripe = "stripe"
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("HTTP_PORT", 8000)
	v.SetDefault("BILLS_TIMEZONE", "Asia/Hong_Kong")
	v.SetDefault("BILLS_DEFAULT_PAGE_SIZE", 50)
	v.SetDefault("BILLS_MAX_PAGE_SIZE", 200)
	v.SetDefault("ACTION_LOCK_TTL", "30s")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM_NAME", "Logistics Company")
	v.SetDefault("PAYMENT_PROVIDER", PaymentProviderStatic)
	v.SetDefault("PAYMENT_LINK_BASE_URL", "https://pay.example.com/link")
	v.SetDefault("PAYMENT_CURRENCY", "usd")

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:               v.GetString("HTTP_HOST"),
			Port:               v.GetInt("HTTP_PORT"),
			CORSAllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Bills: BillsConfig{
			Timezone:        v.GetString("BILLS_TIMEZONE"),
			DefaultPageSize: v.GetInt("BILLS_DEFAULT_PAGE_SIZE"),
			MaxPageSize:     v.GetInt("BILLS_MAX_PAGE_SIZE"),
			ActionLockTTL:   v.GetDuration("ACTION_LOCK_TTL"),
		},
		SMTP: SMTPConfig{
			Host:      v.GetString("SMTP_HOST"),
			Port:      v.GetInt("SMTP_PORT"),
			Username:  v.GetString("SMTP_USERNAME"),
			Password:  v.GetString("SMTP_PASSWORD"),
			From:      v.GetString("SMTP_FROM"),
			FromName:  v.GetString("SMTP_FROM_NAME"),
			ContactTo: v.GetString("CONTACT_EMAIL"),
		},
		Payment: PaymentConfig{
			Provider:      strings.ToLower(strings.TrimSpace(v.GetString("PAYMENT_PROVIDER"))),
			LinkBaseURL:   v.GetString("PAYMENT_LINK_BASE_URL"),
			Currency:      strings.ToLower(v.GetString("PAYMENT_CURRENCY")),
			StripeAPIKey:  v.GetString("STRIPE_API_KEY"),
			WebhookSecret: v.GetString("PAYMENT_WEBHOOK_SECRET"),
		},
		Slack: SlackConfig{
			BotToken: v.GetString("SLACK_BOT_TOKEN"),
			Channel:  v.GetString("SLACK_CHANNEL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.Bills.MaxPageSize < cfg.Bills.DefaultPageSize {
		cfg.Bills.MaxPageSize = cfg.Bills.DefaultPageSize
	}
	if cfg.SMTP.ContactTo == "" {
		cfg.SMTP.ContactTo = cfg.SMTP.From
	}
	if cfg.Bills.ActionLockTTL <= 0 {
		cfg.Bills.ActionLockTTL = 30 * time.Second
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves the reporting time zone used for date filters.
func (c BillsConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Bills.DefaultPageSize <= 0 {
		return fmt.Errorf("BILLS_DEFAULT_PAGE_SIZE must be positive")
	}
	if _, err := cfg.Bills.Location(); err != nil {
		return fmt.Errorf("BILLS_TIMEZONE: %w", err)
	}
	switch cfg.Payment.Provider {
	case PaymentProviderStatic:
	case PaymentProviderStripe:
		if cfg.Payment.StripeAPIKey == "" {
			return fmt.Errorf("STRIPE_API_KEY is required for the stripe payment provider")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.Payment.Provider)
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
