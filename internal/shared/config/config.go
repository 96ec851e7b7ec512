package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv        string
	EncryptionKey string

	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Checks   ChecksConfig
	Review   ReviewConfig
	Storage  StorageConfig
	Limits   RateLimitConfig
	Bot      ModeratorBotConfig
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
	// StatusMaxWait caps how long a long-poll status request is held open.
	StatusMaxWait time.Duration
}

// PostgresConfig is optional. An empty URL selects the in-memory repositories.
type PostgresConfig struct {
	URL string
}

// RedisConfig is optional. An empty Addr selects the in-process status feed
// and rate limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
}

type ChecksConfig struct {
	Provider string // "sandbox" or "http"
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

type ReviewConfig struct {
	// Policy is the decision table, e.g. "pass+pass=approved,fail+fail=rejected".
	Policy               string
	RegistrationCooldown time.Duration
}

type StorageConfig struct {
	UploadDir string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Block    time.Duration
}

type ModeratorBotConfig struct {
	Token           string
	ReviewChannelID int64
	Mode            string // "polling" or "webhook"
	WebhookURL      string
	WebhookPort     string
}

// Enabled reports whether the moderator review bot should be started.
func (b ModeratorBotConfig) Enabled() bool {
	return b.Token != ""
}

var bindings = map[string]string{
	"app.env":                      "APP_ENV",
	"encryption.key":               "ENCRYPTION_KEY",
	"http.addr":                    "HTTP_ADDR",
	"http.allowed_origins":         "HTTP_ALLOWED_ORIGINS",
	"http.status_max_wait":         "STATUS_MAX_WAIT",
	"postgres.url":                 "DATABASE_URL",
	"redis.addr":                   "REDIS_ADDR",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"auth.jwt_secret":              "JWT_SECRET",
	"auth.jwt_issuer":              "JWT_ISSUER",
	"auth.token_ttl":               "JWT_TTL",
	"checks.provider":              "CHECKS_PROVIDER",
	"checks.base_url":              "CHECKS_BASE_URL",
	"checks.api_key":               "CHECKS_API_KEY",
	"checks.timeout":               "CHECKS_TIMEOUT",
	"review.policy":                "VERIFICATION_POLICY",
	"review.registration_cooldown": "REGISTRATION_COOLDOWN",
	"storage.upload_dir":           "UPLOAD_DIR",
	"limits.requests":              "RATE_LIMIT_REQUESTS",
	"limits.window":                "RATE_LIMIT_WINDOW",
	"limits.block":                 "RATE_LIMIT_BLOCK",
	"bot.token":                    "TELEGRAM_MODERATOR_TOKEN",
	"bot.review_channel_id":        "TELEGRAM_REVIEW_CHANNEL_ID",
	"bot.mode":                     "TELEGRAM_MODE",
	"bot.webhook_url":              "TELEGRAM_WEBHOOK_URL",
	"bot.webhook_port":             "TELEGRAM_WEBHOOK_PORT",
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// 1. Load .env file into the process environment.
	// A missing file is fine; we fall back to OS-set env vars.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// 2. Explicitly bind viper keys to env var names
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	// 3. Set defaults
	v.SetDefault("app.env", "dev")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.status_max_wait", 25*time.Second)
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_issuer", "casabid")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("checks.provider", "sandbox")
	v.SetDefault("checks.timeout", 20*time.Second)
	v.SetDefault("review.policy", "")
	v.SetDefault("review.registration_cooldown", 24*time.Hour)
	v.SetDefault("storage.upload_dir", "./uploads")
	v.SetDefault("limits.requests", 30)
	v.SetDefault("limits.window", time.Minute)
	v.SetDefault("limits.block", 5*time.Minute)
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.webhook_port", "8443")

	// 4. Get values directly from viper
	cfg := Config{
		AppEnv:        v.GetString("app.env"),
		EncryptionKey: v.GetString("encryption.key"),
		HTTP: HTTPConfig{
			Addr:           v.GetString("http.addr"),
			AllowedOrigins: v.GetStringSlice("http.allowed_origins"),
			StatusMaxWait:  v.GetDuration("http.status_max_wait"),
		},
		Postgres: PostgresConfig{URL: v.GetString("postgres.url")},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			JWTIssuer: v.GetString("auth.jwt_issuer"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		Checks: ChecksConfig{
			Provider: v.GetString("checks.provider"),
			BaseURL:  v.GetString("checks.base_url"),
			APIKey:   v.GetString("checks.api_key"),
			Timeout:  v.GetDuration("checks.timeout"),
		},
		Review: ReviewConfig{
			Policy:               v.GetString("review.policy"),
			RegistrationCooldown: v.GetDuration("review.registration_cooldown"),
		},
		Storage: StorageConfig{UploadDir: v.GetString("storage.upload_dir")},
		Limits: RateLimitConfig{
			Requests: v.GetInt("limits.requests"),
			Window:   v.GetDuration("limits.window"),
			Block:    v.GetDuration("limits.block"),
		},
		Bot: ModeratorBotConfig{
			Token:           v.GetString("bot.token"),
			ReviewChannelID: v.GetInt64("bot.review_channel_id"),
			Mode:            v.GetString("bot.mode"),
			WebhookURL:      v.GetString("bot.webhook_url"),
			WebhookPort:     v.GetString("bot.webhook_port"),
		},
	}

	// 5. Validation
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDev reports whether the service runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

func (c *Config) validate() error {
	if c.EncryptionKey == "" {
		return errors.New("ENCRYPTION_KEY is not set in environment or .env file")
	}
	if len(c.EncryptionKey) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be a 64-character hex string (32 bytes), but got %d chars", len(c.EncryptionKey))
	}
	if _, err := hex.DecodeString(c.EncryptionKey); err != nil {
		return fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	switch c.Checks.Provider {
	case "sandbox":
	case "http":
		if c.Checks.BaseURL == "" {
			return errors.New("CHECKS_BASE_URL is required when CHECKS_PROVIDER=http")
		}
	default:
		return fmt.Errorf("unknown CHECKS_PROVIDER %q", c.Checks.Provider)
	}
	if c.Bot.Enabled() {
		if c.Bot.ReviewChannelID == 0 {
			return errors.New("TELEGRAM_REVIEW_CHANNEL_ID is required when the moderator bot is enabled")
		}
		if c.Bot.Mode == "webhook" && c.Bot.WebhookURL == "" {
			return errors.New("TELEGRAM_WEBHOOK_URL is required in webhook mode")
		}
	}
	if c.HTTP.StatusMaxWait <= 0 {
		return errors.New("STATUS_MAX_WAIT must be positive")
	}
	return nil
}
