package config

import (
	"log/slog"
	"strconv"

	"github.com/kelseyhightower/envconfig"
)

// DefaultBatchSize is the dispatch batch size used when SMS_RATE_LIMIT is
// missing or unparseable.
const DefaultBatchSize = 100

type CarrierConfig struct {
	Name string `envconfig:"CARRIER" default:"twilio"`

	TwilioAccountSID string  `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string  `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string  `envconfig:"TWILIO_FROM_NUMBER"`
	TwilioBaseURL    string  `envconfig:"TWILIO_BASE_URL" default:"https://api.twilio.com"`
	TwilioRPS        float64 `envconfig:"TWILIO_RPS" default:"5"`
	TwilioBurst      int     `envconfig:"TWILIO_BURST" default:"10"`
}

type PoolConfig struct {
	MaxConns          int32  `envconfig:"DB_POOL_MAX_CONNS" default:"0"`
	MinConns          int32  `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	MaxConnLifetime   string `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	HealthCheckPeriod string `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD"`
}

type APIConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// Shared bearer token gating lifecycle-mutating operations. Operator
	// identity and roles live in a separate auth service.
	APIToken string `envconfig:"API_TOKEN" required:"true"`

	DefaultRegion string `envconfig:"DEFAULT_PHONE_REGION" default:"US"`

	Pool    PoolConfig
	Carrier CarrierConfig
}

type WorkerConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// SMS_RATE_LIMIT doubles as the dispatch batch size: at most this many
	// sends leave per sweep tick. Kept as a string so a bad value can fall
	// back with a warning instead of failing startup.
	SMSRateLimit string `envconfig:"SMS_RATE_LIMIT"`

	MaxSendAttempts int    `envconfig:"MAX_SEND_ATTEMPTS" default:"3"`
	SweepInterval   string `envconfig:"SWEEP_INTERVAL" default:"60s"`
	CallbackURL     string `envconfig:"CALLBACK_URL" required:"true"`

	DefaultRegion string `envconfig:"DEFAULT_PHONE_REGION" default:"US"`

	Pool    PoolConfig
	Carrier CarrierConfig
}

type WebhookConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// Webhook signature verification
	TwilioAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN" required:"true"`
	PublicWebhookURL string `envconfig:"PUBLIC_WEBHOOK_URL" required:"true"` // must match EXACT URL configured at the carrier

	Pool PoolConfig
}

// BatchSize parses SMS_RATE_LIMIT, falling back to DefaultBatchSize with a
// logged warning on missing, non-numeric, or non-positive values.
func (c WorkerConfig) BatchSize() int {
	if c.SMSRateLimit == "" {
		return DefaultBatchSize
	}
	n, err := strconv.Atoi(c.SMSRateLimit)
	if err != nil {
		slog.Warn("invalid SMS_RATE_LIMIT, expected an integer, falling back to default",
			"value", c.SMSRateLimit, "default", DefaultBatchSize)
		return DefaultBatchSize
	}
	if n <= 0 {
		slog.Warn("SMS_RATE_LIMIT must be a positive integer, falling back to default",
			"value", c.SMSRateLimit, "default", DefaultBatchSize)
		return DefaultBatchSize
	}
	return n
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWebhook() WebhookConfig {
	var cfg WebhookConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
