package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App      AppSettings
	HTTP     HTTPSettings
	Auth     AuthSettings
	Log      LogSettings
	Storage  StorageSettings
	Mongo    MongoSettings
	Database DatabaseSettings
	Broker   BrokerSettings
	Audit    AuditSettings
	Worker   WorkerSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration // Deadline applied to the request context of API handlers
}

type AuthSettings struct {
	Enabled     bool
	IssuerURI   string
	JWKSetURI   string
	ClockSkew   time.Duration
	BypassPaths []string
}

type LogSettings struct {
	Level  string
	Format string // auto, text or json
}

// StorageSettings selects the backend used for request logs and products.
type StorageSettings struct {
	Driver string
}

type MongoSettings struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type BrokerSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string

	Exchange   string
	Queue      string
	RoutingKey string

	// Empty DeadLetterExchange keeps the drop-on-reject behaviour.
	DeadLetterExchange string
	DeadLetterQueue    string

	ConsumerTag         string
	BreakerMaxFailures  int
	BreakerCooldown     time.Duration
	ConnectionHeartbeat time.Duration
}

type AuditSettings struct {
	Enabled        bool
	MaxBodySize    int      // 0 keeps captured bodies whole
	SkipPaths      []string // each entry also covers the paths below it
	RedactHeaders  bool
	PublishTimeout time.Duration
}

type WorkerSettings struct {
	PersistTimeout time.Duration
}

// Load reads the configuration from the environment, after merging a .env
// file when one exists. Variables already set in the process win over the
// file. Malformed values are reported together, before Validate runs.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	var env envReader
	cfg := AppConfig{
		App: AppSettings{
			Name:        env.str("APP_NAME", "ecommerce_api"),
			Version:     env.str("APP_VERSION", "0.1.0"),
			Environment: env.str("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:            env.integer("APP_PORT", 8080),
			ReadTimeout:     env.duration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    env.duration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     env.duration("HTTP_IDLE_TIMEOUT", 2*time.Minute),
			ShutdownTimeout: env.duration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:  env.duration("HTTP_REQUEST_TIMEOUT", 15*time.Second),
		},
		Auth: AuthSettings{
			Enabled:     env.boolean("AUTH_ENABLED", false),
			IssuerURI:   env.str("JWT_ISSUER_URI", ""),
			JWKSetURI:   env.str("JWT_JWK_SET_URI", ""),
			ClockSkew:   env.duration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths: env.list("AUTH_BYPASS_PATHS", []string{"/health"}),
		},
		Log: LogSettings{
			Level:  env.str("LOG_LEVEL", "info"),
			Format: strings.ToLower(env.str("LOG_FORMAT", "auto")),
		},
		Storage: StorageSettings{
			Driver: strings.ToLower(env.str("STORAGE_DRIVER", StorageMongo)),
		},
		Mongo: MongoSettings{
			URI:            env.str("MONGO_URI", "mongodb://localhost:27017"),
			Database:       env.str("MONGO_DATABASE", "ecommerce"),
			ConnectTimeout: env.duration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseSettings{
			Host:            env.str("DB_HOST", "localhost"),
			Port:            env.integer("DB_PORT", 5432),
			Database:        env.str("DB_NAME", "ecommerce"),
			User:            env.str("DB_USER", "postgres"),
			Password:        env.raw("DB_PASSWORD", ""),
			SSLMode:         env.str("DB_SSL_MODE", "disable"),
			MaxOpenConns:    env.integer("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    env.integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: env.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Broker: BrokerSettings{
			Host:                env.str("RABBITMQ_HOST", "localhost"),
			Port:                env.integer("RABBITMQ_PORT", 5672),
			User:                env.str("RABBITMQ_USER", "guest"),
			Password:            env.raw("RABBITMQ_PASSWORD", "guest"),
			VHost:               env.str("RABBITMQ_VHOST", "/"),
			Exchange:            env.str("RABBITMQ_EXCHANGE", "ecommerce.logs"),
			Queue:               env.str("RABBITMQ_QUEUE", "http_logs"),
			RoutingKey:          env.str("RABBITMQ_ROUTING_KEY", "http.log"),
			DeadLetterExchange:  env.str("RABBITMQ_DEAD_LETTER_EXCHANGE", ""),
			DeadLetterQueue:     env.str("RABBITMQ_DEAD_LETTER_QUEUE", "http_logs.dead"),
			ConsumerTag:         env.str("RABBITMQ_CONSUMER_TAG", ""),
			BreakerMaxFailures:  env.integer("RABBITMQ_BREAKER_MAX_FAILURES", 5),
			BreakerCooldown:     env.duration("RABBITMQ_BREAKER_COOLDOWN", 30*time.Second),
			ConnectionHeartbeat: env.duration("RABBITMQ_HEARTBEAT", 10*time.Second),
		},
		Audit: AuditSettings{
			Enabled:        env.boolean("AUDIT_ENABLED", true),
			MaxBodySize:    env.integer("AUDIT_MAX_BODY_SIZE", 0),
			SkipPaths:      env.list("AUDIT_SKIP_PATHS", []string{"/health", "/api/logs"}),
			RedactHeaders:  env.boolean("AUDIT_REDACT_HEADERS", false),
			PublishTimeout: env.duration("AUDIT_PUBLISH_TIMEOUT", 5*time.Second),
		},
		Worker: WorkerSettings{
			PersistTimeout: env.duration("WORKER_PERSIST_TIMEOUT", 30*time.Second),
		},
	}

	if err := env.err(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate reports the first inconsistent setting.
func (c AppConfig) Validate() error {
	switch c.Storage.Driver {
	case StorageMongo, StoragePostgres:
	default:
		return fmt.Errorf("invalid config: STORAGE_DRIVER must be %q or %q, got %q", StorageMongo, StoragePostgres, c.Storage.Driver)
	}

	if c.Broker.Exchange == "" || c.Broker.Queue == "" || c.Broker.RoutingKey == "" {
		return errors.New("invalid config: RABBITMQ_EXCHANGE, RABBITMQ_QUEUE and RABBITMQ_ROUTING_KEY must not be empty")
	}
	if c.Broker.DeadLetterExchange != "" && c.Broker.DeadLetterQueue == "" {
		return errors.New("invalid config: RABBITMQ_DEAD_LETTER_QUEUE is required when RABBITMQ_DEAD_LETTER_EXCHANGE is set")
	}
	if c.Broker.DeadLetterExchange != "" && c.Broker.DeadLetterExchange == c.Broker.Exchange {
		return errors.New("invalid config: RABBITMQ_DEAD_LETTER_EXCHANGE must differ from RABBITMQ_EXCHANGE")
	}

	if c.Audit.MaxBodySize < 0 {
		return errors.New("invalid config: AUDIT_MAX_BODY_SIZE must not be negative")
	}
	if c.Audit.PublishTimeout <= 0 {
		return errors.New("invalid config: AUDIT_PUBLISH_TIMEOUT must be greater than 0")
	}
	if c.Worker.PersistTimeout <= 0 {
		return errors.New("invalid config: WORKER_PERSIST_TIMEOUT must be greater than 0")
	}

	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("invalid config: LOG_FORMAT must be auto, text or json, got %q", c.Log.Format)
	}

	if c.Auth.Enabled {
		if c.Auth.IssuerURI == "" {
			return errors.New("invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true")
		}
		if c.Auth.JWKSetURI == "" {
			return errors.New("invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true")
		}
	}

	return nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

// envReader looks variables up and remembers every value it could not
// parse. Unset or blank variables take the fallback.
type envReader struct {
	problems []error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// raw keeps surrounding whitespace, for secrets.
func (e *envReader) raw(key, fallback string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return fallback
}

func (e *envReader) str(key, fallback string) string {
	return strings.TrimSpace(e.raw(key, fallback))
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.fail(key, v, "a boolean")
		return fallback
	}
	return parsed
}

func (e *envReader) integer(key string, fallback int) int {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(key, v, "an integer")
		return fallback
	}
	return parsed
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.fail(key, v, "a duration such as 5s")
		return fallback
	}
	return parsed
}

// list splits a comma separated value and drops empty items.
func (e *envReader) list(key string, fallback []string) []string {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func (e *envReader) fail(key, value, want string) {
	e.problems = append(e.problems, fmt.Errorf("%s=%q is not %s", key, value, want))
}

func (e *envReader) err() error {
	if len(e.problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %w", errors.Join(e.problems...))
}
