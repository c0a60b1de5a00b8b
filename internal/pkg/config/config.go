package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	// QuotaDailyLimit is the free-tier question allowance per UTC day.
	QuotaDailyLimit int `env:"QUOTA_DAILY_LIMIT, default=100"`

	Assistant AssistantConfig
	Stripe    StripeConfig
	Mongo     MongoConfig
	Redis     RedisConfig
}

type AssistantConfig struct {
	BaseURL     string `env:"ASSISTANT_BASE_URL, default=https://api.openai.com/v1"`
	APIKey      string `env:"ASSISTANT_API_KEY"`
	AssistantID string `env:"ASSISTANT_ID"`
	// RunTimeoutSeconds bounds how long one turn may stay open.
	RunTimeoutSeconds int `env:"ASSISTANT_RUN_TIMEOUT_SECONDS, default=90"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PriceMonthly  string `env:"STRIPE_PRICE_MONTHLY"`
	PriceAnnual   string `env:"STRIPE_PRICE_ANNUAL"`
	SuccessURL    string `env:"STRIPE_SUCCESS_URL, default=https://acqadvantage.com/?payment=success"`
	CancelURL     string `env:"STRIPE_CANCEL_URL,  default=https://acqadvantage.com/?page=home"`
	// WebhookWorkers sizes the fast-ack reconciliation pool.
	WebhookWorkers int `env:"STRIPE_WEBHOOK_WORKERS, default=4"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=assistant_api"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
