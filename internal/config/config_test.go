package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, 15*time.Second, cfg.Bot.DeletionDelay)
			assert.Equal(t, 10*time.Second, cfg.Bot.Cooldown)
			assert.Equal(t, 3, cfg.Bot.MaxPerUser)
			require.Len(t, cfg.Bot.Music, 2)
			assert.Equal(t, "tat", cfg.Bot.Music[1].Code)
			assert.Equal(t, 2, cfg.Worker.Concurrency)
			assert.Equal(t, "/var/lib/courtbot/evidence", cfg.Worker.EvidenceDir)
			assert.Equal(t, "http://render-engine:9000", cfg.Renderer.BaseURL)
			assert.Equal(t, UploadProviderS3, cfg.Upload.Provider)
			assert.Equal(t, "courtbot-videos", cfg.Upload.S3.Bucket)
			assert.Equal(t, "render_requests", cfg.RabbitMQ.QueueName)
			assert.Equal(t, "courtbot.dlx", cfg.RabbitMQ.DeadLetterExchange)
			assert.Equal(t, "courtbot", cfg.Database.Database)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load("testdata/minimal_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "courtbot", cfg.App.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "!", cfg.Bot.Prefix)
	assert.Equal(t, 100, cfg.Bot.MaxPerGuild)
	assert.Equal(t, 5, cfg.Bot.MaxPerUser)
	assert.Equal(t, int64(8*1024*1024), cfg.Bot.DefaultUploadLimit)
	assert.Len(t, cfg.Bot.Music, 4)
	assert.Equal(t, 5*time.Second, cfg.Queue.TickInterval)
	assert.Equal(t, time.Second, cfg.Queue.SweepInterval)
	assert.Equal(t, 1, cfg.Worker.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, "evidence", cfg.Worker.EvidenceDir)
	assert.Zero(t, cfg.Bot.DeletionDelay, "deletion stays disabled unless configured")
	assert.Equal(t, UploadProviderHTTP, cfg.Upload.Provider)
	assert.Equal(t, 48*time.Hour, cfg.Upload.S3.PresignExpiry)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	t.Setenv("COURTBOT_CHAT_TOKEN", "from-env")
	t.Setenv("COURTBOT_DATABASE_PASSWORD", "db-secret")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Chat.Token)
	assert.Equal(t, "db-secret", cfg.Database.Password)
}

func TestLoad_UnknownUploadProviderFailsValidation(t *testing.T) {
	cfg, err := Load("testdata/invalid_upload.yaml")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown upload provider "ftp"`)
}

func validConfig() *Config {
	cfg := &Config{
		Renderer: RendererConfig{BaseURL: "http://render:9000"},
		Chat:     ChatConfig{BaseURL: "http://gateway:7000"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(c *Config)
		errString string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name: "invalid server port",
			modify: func(c *Config) {
				c.Server.Enabled = true
				c.Server.Port = 70000
			},
			errString: "invalid server port: 70000",
		},
		{
			name:      "negative cooldown",
			modify:    func(c *Config) { c.Bot.Cooldown = -time.Second },
			errString: "bot cooldown must not be negative",
		},
		{
			name:      "zero tick interval",
			modify:    func(c *Config) { c.Queue.TickInterval = 0 },
			errString: "queue tick_interval must be greater than 0",
		},
		{
			name:      "zero concurrency",
			modify:    func(c *Config) { c.Worker.Concurrency = 0 },
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "missing renderer",
			modify:    func(c *Config) { c.Renderer.BaseURL = "" },
			errString: "renderer base_url is required",
		},
		{
			name:      "missing chat gateway",
			modify:    func(c *Config) { c.Chat.BaseURL = "" },
			errString: "chat base_url is required",
		},
		{
			name:      "s3 without bucket",
			modify:    func(c *Config) { c.Upload.Provider = UploadProviderS3 },
			errString: "upload s3 bucket is required",
		},
		{
			name:      "rabbitmq without host",
			modify:    func(c *Config) { c.RabbitMQ.Enabled = true },
			errString: "rabbitmq host is required",
		},
		{
			name: "rabbitmq without queue",
			modify: func(c *Config) {
				c.RabbitMQ.Enabled = true
				c.RabbitMQ.Host = "localhost"
				c.RabbitMQ.Exchange.Name = "courtbot"
			},
			errString: "rabbitmq queue_name is required",
		},
		{
			name: "database without name",
			modify: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Host = "localhost"
			},
			errString: "database name is required",
		},
		{
			name:      "redis without addr",
			modify:    func(c *Config) { c.Redis.Enabled = true },
			errString: "redis addr is required",
		},
		{
			name:   "disabled sections are not validated",
			modify: func(c *Config) { c.Database.Port = -1 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}
