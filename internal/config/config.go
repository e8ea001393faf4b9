package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Broker    BrokerConfig    `mapstructure:"broker"    validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all MongoDB related settings.
type DatabaseConfig struct {
	URI  string `mapstructure:"uri"  validate:"required"`
	Name string `mapstructure:"name" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// BrokerConfig contains the RabbitMQ connection settings and the queue
// topology names. The defaults mirror the deployed topology; overriding them
// is mainly useful for test environments.
type BrokerConfig struct {
	URL string `mapstructure:"url" validate:"required"`

	Exchange   string `mapstructure:"exchange"    validate:"required"`
	Queue      string `mapstructure:"queue"       validate:"required"`
	RoutingKey string `mapstructure:"routing_key" validate:"required"`

	DeadLetterExchange   string `mapstructure:"dead_letter_exchange"    validate:"required"`
	DeadLetterQueue      string `mapstructure:"dead_letter_queue"       validate:"required"`
	DeadLetterRoutingKey string `mapstructure:"dead_letter_routing_key" validate:"required"`

	// MessageTTL bounds how long an unacknowledged message may wait in the
	// main queue before being dead-lettered.
	MessageTTL time.Duration `mapstructure:"message_ttl" validate:"required"`
}

// SchedulerConfig contains the intervals for the periodic scan jobs.
type SchedulerConfig struct {
	OverdueInterval time.Duration `mapstructure:"overdue_interval" validate:"required"`
	DueSoonInterval time.Duration `mapstructure:"due_soon_interval" validate:"required"`
	WelcomeInterval time.Duration `mapstructure:"welcome_interval" validate:"required"`

	// DueSoonWindowHours is how far ahead the due-soon scan looks.
	DueSoonWindowHours int `mapstructure:"due_soon_window_hours" validate:"required,gt=0"`

	// StalePendingHours is the age after which a PENDING notification is
	// presumed lost and forced to FAILED by the cleanup job.
	StalePendingHours int `mapstructure:"stale_pending_hours" validate:"required,gt=0"`

	// CleanupHourUTC is the wall-clock hour (UTC) the daily cleanup runs at.
	CleanupHourUTC int `mapstructure:"cleanup_hour_utc" validate:"gte=0,lt=24"`
}
