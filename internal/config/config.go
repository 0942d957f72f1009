package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	DeliveryModeSync  = "sync"
	DeliveryModeQueue = "queue"

	StoreBackendPostgres = "postgres"
	StoreBackendMongo    = "mongo"

	PushBackendNone     = "none"
	PushBackendGateway  = "gateway"
	PushBackendShoutrrr = "shoutrrr"
)

type Config struct {
	DatabaseDSN               string        `env:"DATABASE_DSN,required=true"`
	RedisURL                  string        `env:"REDIS_URL,required=true"`
	ActionsFile               string        `env:"ACTIONS_FILE,required=true"`
	StoreBackend              string        `env:"STORE_BACKEND,default=postgres"`
	MongoURL                  string        `env:"MONGODB_URL"`
	MongoDatabase             string        `env:"MONGODB_DATABASE,default=notify"`
	RabbitMQURL               string        `env:"RABBITMQ_URL"`
	DeliveryMode              string        `env:"DELIVERY_MODE,default=sync"`
	RetentionWindow           time.Duration `env:"RETENTION_WINDOW,default=720h"`
	SweepInterval             time.Duration `env:"SWEEP_INTERVAL,default=0s"`
	BackgroundRetentionWindow time.Duration `env:"BACKGROUND_RETENTION_WINDOW,default=2160h"`
	DeviceDormancy            time.Duration `env:"DEVICE_DORMANCY,default=2160h"`
	DeviceConcurrency         int           `env:"DEVICE_CONCURRENCY,default=1"`
	WorkerConcurrency         int           `env:"WORKER_CONCURRENCY,default=4"`
	PostmarkServerToken       string        `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken      string        `env:"POSTMARK_ACCOUNT_TOKEN"`
	MailSender                string        `env:"MAIL_SENDER,default=notifications@example.com"`
	PushBackend               string        `env:"PUSH_BACKEND,default=none"`
	PushGatewayURL            string        `env:"PUSH_GATEWAY_URL"`
	PushShoutrrrURLs          string        `env:"PUSH_SHOUTRRR_URLS"`
	APIPort                   int           `env:"API_PORT,default=8080"`
	LogLevel                  string        `env:"LOG_LEVEL,default=info"`
	LogFormat                 string        `env:"LOG_FORMAT,default=json"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.DeliveryMode = strings.ToLower(strings.TrimSpace(c.DeliveryMode))
	c.PushBackend = strings.ToLower(strings.TrimSpace(c.PushBackend))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.DeviceConcurrency < 1 {
		c.DeviceConcurrency = 1
	}
	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = 1
	}
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
	case StoreBackendMongo:
		if strings.TrimSpace(c.MongoURL) == "" {
			return fmt.Errorf("invalid config: MONGODB_URL is required for store backend %q", c.StoreBackend)
		}
	default:
		return fmt.Errorf("invalid config: unknown store backend %q", c.StoreBackend)
	}

	switch c.DeliveryMode {
	case DeliveryModeSync:
	case DeliveryModeQueue:
		if strings.TrimSpace(c.RabbitMQURL) == "" {
			return fmt.Errorf("invalid config: RABBITMQ_URL is required for delivery mode %q", c.DeliveryMode)
		}
	default:
		return fmt.Errorf("invalid config: unknown delivery mode %q", c.DeliveryMode)
	}

	switch c.PushBackend {
	case PushBackendNone:
	case PushBackendGateway:
		if strings.TrimSpace(c.PushGatewayURL) == "" {
			return fmt.Errorf("invalid config: PUSH_GATEWAY_URL is required for push backend %q", c.PushBackend)
		}
	case PushBackendShoutrrr:
		if len(c.ShoutrrrURLs()) == 0 {
			return fmt.Errorf("invalid config: PUSH_SHOUTRRR_URLS is required for push backend %q", c.PushBackend)
		}
	default:
		return fmt.Errorf("invalid config: unknown push backend %q", c.PushBackend)
	}

	if c.RetentionWindow <= 0 {
		return fmt.Errorf("invalid config: RETENTION_WINDOW must be positive")
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("invalid config: SWEEP_INTERVAL must not be negative")
	}
	if c.SweepInterval > 0 && c.BackgroundRetentionWindow < c.RetentionWindow {
		return fmt.Errorf("invalid config: BACKGROUND_RETENTION_WINDOW must be at least RETENTION_WINDOW")
	}
	return nil
}

// ShoutrrrURLs splits the comma separated PUSH_SHOUTRRR_URLS value.
func (c *Config) ShoutrrrURLs() []string {
	parts := strings.Split(c.PushShoutrrrURLs, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}
