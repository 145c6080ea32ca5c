package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	// EnvPrefix is the prefix of every environment override, e.g. NOTIFIER_KAFKA_TOPIC.
	EnvPrefix = "NOTIFIER"
	// ConfigPathEnv overrides the default config file location.
	ConfigPathEnv = "NOTIFIER_CONFIG_PATH"

	defaultConfigPath = "./config.yaml"
)

type Server struct {
	AccountsAddress      string        `yaml:"accountsAddress" envconfig:"ACCOUNTS_ADDRESS"`
	NotificationsAddress string        `yaml:"notificationsAddress" envconfig:"NOTIFICATIONS_ADDRESS"`
	TLSCertFile          string        `yaml:"tlsCertFile" envconfig:"TLS_CERT_FILE"`
	TLSKeyFile           string        `yaml:"tlsKeyFile" envconfig:"TLS_KEY_FILE"`
	TrustedProxies       []string      `yaml:"trustedProxies" envconfig:"TRUSTED_PROXIES"` // IPs/CIDRs to trust for X-Forwarded-For headers
	ShutdownTimeout      time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

type KafkaTLS struct {
	Enabled            bool   `yaml:"enabled" envconfig:"ENABLED"`
	CAFile             string `yaml:"caFile" envconfig:"CA_FILE"`
	CertFile           string `yaml:"certFile" envconfig:"CERT_FILE"`
	KeyFile            string `yaml:"keyFile" envconfig:"KEY_FILE"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify" envconfig:"INSECURE_SKIP_VERIFY"`
}

type KafkaSASL struct {
	// Mechanism is one of PLAIN, SCRAM-SHA-256, SCRAM-SHA-512. Empty disables SASL.
	Mechanism string `yaml:"mechanism" envconfig:"MECHANISM" validate:"omitempty,oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512"`
	Username  string `yaml:"username" envconfig:"USERNAME"`
	Password  string `yaml:"password" envconfig:"PASSWORD"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" envconfig:"BROKERS" validate:"required,min=1,dive,required"`
	// Topic is the lifecycle event channel shared by producer and consumer.
	Topic   string    `yaml:"topic" envconfig:"TOPIC" validate:"required"`
	GroupID string    `yaml:"groupID" envconfig:"GROUP_ID"`
	TLS     KafkaTLS  `yaml:"tls" envconfig:"TLS"`
	SASL    KafkaSASL `yaml:"sasl" envconfig:"SASL"`
	// Compression is one of none, gzip, snappy, lz4, zstd.
	Compression  string        `yaml:"compression" envconfig:"COMPRESSION" validate:"omitempty,oneof=none gzip snappy lz4 zstd"`
	BatchTimeout time.Duration `yaml:"batchTimeout" envconfig:"BATCH_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"WRITE_TIMEOUT"`
	// RequiredAcks: -1 all replicas, 1 leader only.
	RequiredAcks int `yaml:"requiredAcks" envconfig:"REQUIRED_ACKS" validate:"oneof=-1 0 1"`
}

type Consumer struct {
	Workers int `yaml:"workers" envconfig:"WORKERS" validate:"min=1"`
	// MaxAttempts bounds delivery attempts per message. 1 means log-and-drop on first failure.
	MaxAttempts     int           `yaml:"maxAttempts" envconfig:"MAX_ATTEMPTS" validate:"min=1"`
	RetryBackoff    time.Duration `yaml:"retryBackoff" envconfig:"RETRY_BACKOFF"`
	MaxRetryBackoff time.Duration `yaml:"maxRetryBackoff" envconfig:"MAX_RETRY_BACKOFF"`
	// DeadLetterTopic receives messages whose delivery attempts are exhausted. Empty disables it.
	DeadLetterTopic string `yaml:"deadLetterTopic" envconfig:"DEAD_LETTER_TOPIC"`
}

type SES struct {
	Region          string `yaml:"region" envconfig:"REGION"`
	AccessKeyID     string `yaml:"accessKeyID" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secretAccessKey" envconfig:"SECRET_ACCESS_KEY"`
}

type Mail struct {
	// Transport selects the delivery backend: smtp or ses.
	Transport     string `yaml:"transport" envconfig:"TRANSPORT" validate:"oneof=smtp ses"`
	Host          string `yaml:"host" envconfig:"HOST" validate:"required_if=Transport smtp"`
	Port          int    `yaml:"port" envconfig:"PORT" validate:"min=0,max=65535"`
	User          string `yaml:"user" envconfig:"USER"`
	Password      string `yaml:"password" envconfig:"PASSWORD"`
	SenderAddress string `yaml:"senderAddress" envconfig:"SENDER_ADDRESS" validate:"required,email"`
	SenderName    string `yaml:"senderName" envconfig:"SENDER_NAME"`
	// TLSMode is starttls (upgrade when offered) or implicit (TLS from the first byte, port 465).
	TLSMode            string `yaml:"tlsMode" envconfig:"TLS_MODE" validate:"oneof=starttls implicit"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify" envconfig:"INSECURE_SKIP_VERIFY"`
	// KeepAlive reuses one SMTP session for consecutive sends instead of dialing per message.
	KeepAlive bool `yaml:"keepAlive" envconfig:"KEEP_ALIVE"`
	SES       SES  `yaml:"ses" envconfig:"SES"`
}

type Redis struct {
	Address  string        `yaml:"address" envconfig:"ADDRESS"`
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	DB       int           `yaml:"db" envconfig:"DB"`
	TTL      time.Duration `yaml:"ttl" envconfig:"TTL"`
}

type Accounts struct {
	// DatabaseURL is a PostgreSQL connection string. Empty selects the in-memory store.
	DatabaseURL string `yaml:"databaseURL" envconfig:"DATABASE_URL"`
	// Redis enables the read-through account cache when Address is set.
	Redis Redis `yaml:"redis" envconfig:"REDIS"`
}

type Breaker struct {
	MaxRequests         uint32        `yaml:"maxRequests" envconfig:"MAX_REQUESTS"`
	Interval            time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	Timeout             time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	ConsecutiveFailures uint32        `yaml:"consecutiveFailures" envconfig:"CONSECUTIVE_FAILURES"`
}

type Gateway struct {
	ListenAddress    string        `yaml:"listenAddress" envconfig:"LISTEN_ADDRESS"`
	AccountsURL      string        `yaml:"accountsURL" envconfig:"ACCOUNTS_URL" validate:"omitempty,url"`
	NotificationsURL string        `yaml:"notificationsURL" envconfig:"NOTIFICATIONS_URL" validate:"omitempty,url"`
	UpstreamTimeout  time.Duration `yaml:"upstreamTimeout" envconfig:"UPSTREAM_TIMEOUT"`
	Breaker          Breaker       `yaml:"breaker" envconfig:"BREAKER"`
}

type RateLimit struct {
	// Rate is the number of requests allowed per second per client IP. 0 disables limiting.
	Rate  float64 `yaml:"rate" envconfig:"RATE" validate:"min=0"`
	Burst int     `yaml:"burst" envconfig:"BURST" validate:"min=0"`
}

type Config struct {
	Server    Server    `yaml:"server" envconfig:"SERVER"`
	Kafka     Kafka     `yaml:"kafka" envconfig:"KAFKA"`
	Consumer  Consumer  `yaml:"consumer" envconfig:"CONSUMER"`
	Mail      Mail      `yaml:"mail" envconfig:"MAIL"`
	Accounts  Accounts  `yaml:"accounts" envconfig:"ACCOUNTS"`
	Gateway   Gateway   `yaml:"gateway" envconfig:"GATEWAY"`
	RateLimit RateLimit `yaml:"rateLimit" envconfig:"RATE_LIMIT"`
}

// Load loads the notifier configuration.
//
// The file path is taken from configPath, then NOTIFIER_CONFIG_PATH, then
// "./config.yaml". A missing default file is not an error so deployments can
// configure purely through the environment; a missing explicit file is.
// Environment variables prefixed with NOTIFIER_ (optionally from a .env file)
// override file values. Defaults are applied before validation.
func Load(configPath ...string) (Config, error) {
	var cfg Config

	path := defaultConfigPath
	explicit := false
	if len(configPath) > 0 && configPath[0] != "" {
		path, explicit = configPath[0], true
	} else if p := os.Getenv(ConfigPathEnv); p != "" {
		path, explicit = p, true
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("trying to open notifier config file %s: %w", path, err)
	}

	// .env never overrides variables already present in the environment.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to process environment overrides: %w", err)
	}

	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Defaults fills every unset field with its production default.
func (c *Config) Defaults() {
	if c.Server.AccountsAddress == "" {
		c.Server.AccountsAddress = ":8081"
	}
	if c.Server.NotificationsAddress == "" {
		c.Server.NotificationsAddress = ":8082"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "user-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "notification-service-group"
	}
	if c.Kafka.Compression == "" {
		c.Kafka.Compression = "snappy"
	}
	if c.Kafka.BatchTimeout <= 0 {
		c.Kafka.BatchTimeout = 10 * time.Millisecond
	}
	if c.Kafka.WriteTimeout <= 0 {
		c.Kafka.WriteTimeout = 10 * time.Second
	}
	if c.Kafka.RequiredAcks == 0 {
		c.Kafka.RequiredAcks = -1
	}

	if c.Consumer.Workers <= 0 {
		c.Consumer.Workers = 4
	}
	if c.Consumer.MaxAttempts <= 0 {
		c.Consumer.MaxAttempts = 1
	}
	if c.Consumer.RetryBackoff <= 0 {
		c.Consumer.RetryBackoff = 500 * time.Millisecond
	}
	if c.Consumer.MaxRetryBackoff <= 0 {
		c.Consumer.MaxRetryBackoff = 30 * time.Second
	}

	if c.Mail.Transport == "" {
		c.Mail.Transport = "smtp"
	}
	if c.Mail.Port == 0 && c.Mail.Transport == "smtp" {
		c.Mail.Port = 587
	}
	if c.Mail.TLSMode == "" {
		c.Mail.TLSMode = "starttls"
		if c.Mail.Port == 465 {
			c.Mail.TLSMode = "implicit"
		}
	}
	// The relay account doubles as sender, as most relays reject foreign From addresses.
	if c.Mail.SenderAddress == "" {
		c.Mail.SenderAddress = c.Mail.User
	}
	if c.Mail.SenderName == "" {
		c.Mail.SenderName = "Account Notifications"
	}
	if c.Mail.SES.Region == "" {
		c.Mail.SES.Region = "us-east-1"
	}

	if c.Accounts.Redis.TTL <= 0 {
		c.Accounts.Redis.TTL = 10 * time.Minute
	}

	if c.Gateway.ListenAddress == "" {
		c.Gateway.ListenAddress = ":8080"
	}
	if c.Gateway.AccountsURL == "" {
		c.Gateway.AccountsURL = "http://localhost:8081"
	}
	if c.Gateway.NotificationsURL == "" {
		c.Gateway.NotificationsURL = "http://localhost:8082"
	}
	if c.Gateway.UpstreamTimeout <= 0 {
		c.Gateway.UpstreamTimeout = 10 * time.Second
	}
	if c.Gateway.Breaker.MaxRequests == 0 {
		c.Gateway.Breaker.MaxRequests = 1
	}
	if c.Gateway.Breaker.Interval <= 0 {
		c.Gateway.Breaker.Interval = 60 * time.Second
	}
	if c.Gateway.Breaker.Timeout <= 0 {
		c.Gateway.Breaker.Timeout = 30 * time.Second
	}
	if c.Gateway.Breaker.ConsecutiveFailures == 0 {
		c.Gateway.Breaker.ConsecutiveFailures = 5
	}

	if c.RateLimit.Rate > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.Rate) * 2
	}
}

// Validate checks the struct constraints declared in the validate tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid notifier configuration: %w", err)
	}
	return nil
}
