package broker

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"3tcapital/ms_ecommerce_audit/internal/infrastructure/config"
)

// Config holds RabbitMQ connection and topology configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string

	Exchange   string
	Queue      string
	RoutingKey string

	DeadLetterExchange string
	DeadLetterQueue    string

	ConsumerTag        string
	Heartbeat          time.Duration
	BreakerMaxFailures int
	BreakerCooldown    time.Duration

	// ConnectionName is reported to the broker for operators.
	ConnectionName string
}

// ConfigFromSettings maps application settings onto a broker Config.
func ConfigFromSettings(s config.BrokerSettings, connectionName string) Config {
	return Config{
		Host:               s.Host,
		Port:               s.Port,
		User:               s.User,
		Password:           s.Password,
		VHost:              s.VHost,
		Exchange:           s.Exchange,
		Queue:              s.Queue,
		RoutingKey:         s.RoutingKey,
		DeadLetterExchange: s.DeadLetterExchange,
		DeadLetterQueue:    s.DeadLetterQueue,
		ConsumerTag:        s.ConsumerTag,
		Heartbeat:          s.ConnectionHeartbeat,
		BreakerMaxFailures: s.BreakerMaxFailures,
		BreakerCooldown:    s.BreakerCooldown,
		ConnectionName:     connectionName,
	}
}

// URL renders the AMQP connection URL.
func (c Config) URL() string {
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.User,
		Password: c.Password,
		Vhost:    vhost,
	}.String()
}

// DeadLettering reports whether rejected messages are routed to a dead-letter queue.
func (c Config) DeadLettering() bool {
	return c.DeadLetterExchange != ""
}

func dial(cfg Config) (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	if cfg.ConnectionName != "" {
		props.SetClientConnectionName(cfg.ConnectionName)
	}

	return amqp.DialConfig(cfg.URL(), amqp.Config{
		Heartbeat:  cfg.Heartbeat,
		Locale:     "en_US",
		Properties: props,
		Dial:       amqp.DefaultDial(5 * time.Second),
	})
}
