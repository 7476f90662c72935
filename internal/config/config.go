package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuongbtq/courtbot/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

const (
	UploadProviderNone = "none"
	UploadProviderHTTP = "http"
	UploadProviderS3   = "s3"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Bot      BotConfig      `yaml:"bot"`
	Queue    QueueConfig    `yaml:"queue"`
	Worker   WorkerConfig   `yaml:"worker"`
	Renderer RendererConfig `yaml:"renderer"`
	Chat     ChatConfig     `yaml:"chat"`
	Upload   UploadConfig   `yaml:"upload"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Format is "text" (colored console) or "json".
	Format string `yaml:"format"`
	// Output is stdout, stderr or a file path.
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BotConfig holds chat-facing behaviour
type BotConfig struct {
	Prefix string `yaml:"prefix"`
	// DeletionDelay is how long transient messages stay; zero disables
	// deletion.
	DeletionDelay      time.Duration       `yaml:"deletion_delay"`
	Cooldown           time.Duration       `yaml:"cooldown"`
	MaxPerGuild        int                 `yaml:"max_per_guild"`
	MaxPerUser         int                 `yaml:"max_per_user"`
	DefaultUploadLimit int64               `yaml:"default_upload_limit"`
	RetentionNote      string              `yaml:"retention_note"`
	Music              []domain.MusicTrack `yaml:"music"`
}

// QueueConfig holds the periodic task intervals
type QueueConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// WorkerConfig holds render worker configuration. Evidence paths outside
// EvidenceDir are rejected at admission and never cleaned up.
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	OutputDir         string        `yaml:"output_dir"`
	EvidenceDir       string        `yaml:"evidence_dir"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// RendererConfig points at the external render engine
type RendererConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	ResolutionScale int           `yaml:"resolution_scale"`
}

// ChatConfig points at the chat gateway REST API
type ChatConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// UploadConfig selects the fallback host for oversized videos
type UploadConfig struct {
	Provider string           `yaml:"provider"`
	HTTP     HTTPUploadConfig `yaml:"http"`
	S3       S3UploadConfig   `yaml:"s3"`
}

// HTTPUploadConfig holds settings for a multipart file host
type HTTPUploadConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	FieldName string        `yaml:"field_name"`
	Timeout   time.Duration `yaml:"timeout"`
}

// S3UploadConfig holds settings for an S3-compatible bucket
type S3UploadConfig struct {
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	KeyPrefix       string        `yaml:"key_prefix"`
	PresignExpiry   time.Duration `yaml:"presign_expiry"`
}

// RabbitMQConfig holds the inbound request queue configuration
type RabbitMQConfig struct {
	Enabled            bool             `yaml:"enabled"`
	Host               string           `yaml:"host"`
	Port               int              `yaml:"port"`
	User               string           `yaml:"user"`
	Password           string           `yaml:"password"`
	VHost              string           `yaml:"vhost"`
	Exchange           ExchangeConfig   `yaml:"exchange"`
	QueueName          string           `yaml:"queue_name"`
	RoutingKey         string           `yaml:"routing_key"`
	DeadLetterExchange string           `yaml:"dead_letter_exchange"`
	Connection         ConnectionConfig `yaml:"connection"`
	Consumer           ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int    `yaml:"prefetch_count"`
	Tag           string `yaml:"tag"`
}

// DatabaseConfig holds PostgreSQL connection configuration for the history
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig holds the shared cooldown store configuration
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// Load reads and parses the configuration file, applies defaults and
// overlays secrets from the environment
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	config.applyEnv()

	return &config, nil
}

func (c *Config) applyDefaults() {
	setDefault(&c.App.Name, "courtbot")
	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Logging.Format, "text")
	setDefault(&c.Logging.Output, "stdout")

	setDefault(&c.Server.Port, 8080)
	setDefault(&c.Server.ReadTimeout, 10*time.Second)
	setDefault(&c.Server.WriteTimeout, 10*time.Second)
	setDefault(&c.Server.IdleTimeout, 60*time.Second)
	setDefault(&c.Server.ShutdownTimeout, 10*time.Second)

	setDefault(&c.Bot.Prefix, "!")
	setDefault(&c.Bot.MaxPerGuild, 100)
	setDefault(&c.Bot.MaxPerUser, 5)
	setDefault(&c.Bot.DefaultUploadLimit, int64(8*1024*1024))
	setDefault(&c.Bot.RetentionNote, "_This video will be deleted in 48 hours_")
	if len(c.Bot.Music) == 0 {
		c.Bot.Music = append([]domain.MusicTrack(nil), domain.DefaultMusicTracks...)
	}

	setDefault(&c.Queue.TickInterval, 5*time.Second)
	setDefault(&c.Queue.SweepInterval, time.Second)

	setDefault(&c.Worker.Concurrency, 1)
	setDefault(&c.Worker.PollInterval, 2*time.Second)
	setDefault(&c.Worker.HeartbeatInterval, 30*time.Second)
	setDefault(&c.Worker.OutputDir, "outputs")
	setDefault(&c.Worker.EvidenceDir, "evidence")
	setDefault(&c.Worker.ShutdownTimeout, 5*time.Minute)

	setDefault(&c.Renderer.ResolutionScale, 2)
	setDefault(&c.Chat.Timeout, 30*time.Second)

	setDefault(&c.Upload.Provider, UploadProviderHTTP)
	setDefault(&c.Upload.HTTP.Timeout, 2*time.Minute)
	setDefault(&c.Upload.S3.PresignExpiry, 48*time.Hour)

	setDefault(&c.RabbitMQ.Port, 5672)
	setDefault(&c.RabbitMQ.VHost, "/")
	setDefault(&c.RabbitMQ.Exchange.Type, "direct")
	setDefault(&c.RabbitMQ.Connection.RetryAttempts, 5)
	setDefault(&c.RabbitMQ.Connection.RetryInterval, 2*time.Second)
	setDefault(&c.RabbitMQ.Connection.Heartbeat, 10*time.Second)
	setDefault(&c.RabbitMQ.Consumer.PrefetchCount, 10)

	setDefault(&c.Database.Port, 5432)
	setDefault(&c.Database.SSLMode, "disable")
	setDefault(&c.Database.MaxOpenConns, 5)
	setDefault(&c.Database.MaxIdleConns, 2)
	setDefault(&c.Database.ConnMaxLifetime, 30*time.Minute)

	setDefault(&c.Redis.Key, "courtbot:cooldown")
}

// applyEnv lets secrets live outside the YAML file.
func (c *Config) applyEnv() {
	envOverride(&c.Chat.Token, "COURTBOT_CHAT_TOKEN")
	envOverride(&c.RabbitMQ.Password, "COURTBOT_RABBITMQ_PASSWORD")
	envOverride(&c.Database.Password, "COURTBOT_DATABASE_PASSWORD")
	envOverride(&c.Redis.Password, "COURTBOT_REDIS_PASSWORD")
	envOverride(&c.Upload.S3.AccessKeyID, "COURTBOT_S3_ACCESS_KEY_ID")
	envOverride(&c.Upload.S3.SecretAccessKey, "COURTBOT_S3_SECRET_ACCESS_KEY")
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

func envOverride(field *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*field = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Enabled {
		if err := validatePort("server", c.Server.Port); err != nil {
			return err
		}
	}

	if c.Bot.MaxPerGuild <= 0 {
		return fmt.Errorf("bot max_per_guild must be greater than 0")
	}
	if c.Bot.MaxPerUser <= 0 {
		return fmt.Errorf("bot max_per_user must be greater than 0")
	}
	if c.Bot.Cooldown < 0 {
		return fmt.Errorf("bot cooldown must not be negative")
	}
	for _, track := range c.Bot.Music {
		if track.Code == "" {
			return fmt.Errorf("bot music entries require a code")
		}
	}

	if c.Queue.TickInterval <= 0 {
		return fmt.Errorf("queue tick_interval must be greater than 0")
	}
	if c.Queue.SweepInterval <= 0 {
		return fmt.Errorf("queue sweep_interval must be greater than 0")
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker poll_interval must be greater than 0")
	}

	if c.Renderer.BaseURL == "" {
		return fmt.Errorf("renderer base_url is required")
	}
	if c.Chat.BaseURL == "" {
		return fmt.Errorf("chat base_url is required")
	}

	switch c.Upload.Provider {
	case UploadProviderNone, UploadProviderHTTP:
	case UploadProviderS3:
		if c.Upload.S3.Bucket == "" {
			return fmt.Errorf("upload s3 bucket is required")
		}
	default:
		return fmt.Errorf("unknown upload provider %q (must be none, http or s3)", c.Upload.Provider)
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if err := validatePort("rabbitmq", c.RabbitMQ.Port); err != nil {
			return err
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
		if c.RabbitMQ.QueueName == "" {
			return fmt.Errorf("rabbitmq queue_name is required")
		}
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if err := validatePort("database", c.Database.Port); err != nil {
			return err
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}

	return nil
}

func validatePort(section string, port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("invalid %s port: %d (must be between %d and %d)", section, port, MinPort, MaxPort)
	}
	return nil
}
