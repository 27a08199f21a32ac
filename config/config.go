package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the full runtime configuration for the sync daemon. All values
// come from the environment; CLI flags in main may override a subset.
type Config struct {
	// Fleet API access
	FleetURL   string `env:"COMMA_SYNC_FLEET_URL"`
	FleetToken string `env:"COMMA_SYNC_FLEET_TOKEN"`

	// Telegram delivery
	BotToken string `env:"COMMA_SYNC_BOT_TOKEN"`
	ChatID   int64  `env:"COMMA_SYNC_CHAT_ID"`

	// Directories
	ClipsDir   string `env:"COMMA_SYNC_CLIPS_DIR" envDefault:"clips"`
	ScratchDir string `env:"COMMA_SYNC_SCRATCH_DIR" envDefault:"scratch"`
	LedgerPath string `env:"COMMA_SYNC_LEDGER_PATH" envDefault:"comma-sync.db"`
	LogDir     string `env:"COMMA_SYNC_LOG_DIR" envDefault:"logs"`
	LogLevel   string `env:"COMMA_SYNC_LOG_LEVEL" envDefault:"info"`

	// Chunking policy
	ChunkCapBytes        int64   `env:"COMMA_SYNC_CHUNK_CAP_BYTES" envDefault:"47185920"` // 45 MiB, under the bot upload limit
	NominalWindowSeconds float64 `env:"COMMA_SYNC_NOMINAL_WINDOW_SECONDS" envDefault:"1800"`
	ShrinkStepSeconds    float64 `env:"COMMA_SYNC_SHRINK_STEP_SECONDS" envDefault:"120"`

	// Scratch storage budget; 0 means unbounded
	ScratchBudgetBytes int64 `env:"COMMA_SYNC_SCRATCH_BUDGET_BYTES" envDefault:"0"`

	// Polling and queue behavior
	UploadPollSeconds   int `env:"COMMA_SYNC_UPLOAD_POLL_SECONDS" envDefault:"5"`
	DownloadPollSeconds int `env:"COMMA_SYNC_DOWNLOAD_POLL_SECONDS" envDefault:"60"`
	QueueBufferSize     int `env:"COMMA_SYNC_QUEUE_BUFFER_SIZE" envDefault:"4"`
	SendTimeoutSeconds  int `env:"COMMA_SYNC_SEND_TIMEOUT_SECONDS" envDefault:"120"`
	DrainTimeoutSeconds int `env:"COMMA_SYNC_DRAIN_TIMEOUT_SECONDS" envDefault:"30"`

	// Housekeeping
	DeleteAfterUpload bool `env:"COMMA_SYNC_DELETE_AFTER_UPLOAD" envDefault:"false"`

	// Operator status surface; empty disables it
	StatusAddr string `env:"COMMA_SYNC_STATUS_ADDR" envDefault:"127.0.0.1:8099"`
}

// Load parses environment variables into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ChunkCapBytes <= 0 {
		return fmt.Errorf("invalid chunk cap: %d", c.ChunkCapBytes)
	}
	if c.NominalWindowSeconds <= 0 {
		return fmt.Errorf("invalid nominal window: %f", c.NominalWindowSeconds)
	}
	if c.ShrinkStepSeconds <= 0 {
		return fmt.Errorf("invalid shrink step: %f", c.ShrinkStepSeconds)
	}
	if c.ScratchBudgetBytes < 0 {
		return fmt.Errorf("invalid scratch budget: %d", c.ScratchBudgetBytes)
	}
	if c.QueueBufferSize <= 0 {
		return fmt.Errorf("invalid queue buffer size: %d", c.QueueBufferSize)
	}
	if c.UploadPollSeconds <= 0 || c.DownloadPollSeconds <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.ClipsDir == "" || c.ScratchDir == "" {
		return fmt.Errorf("clips and scratch directories must be set")
	}
	return nil
}

// Overrides holds potential override values for configuration
type Overrides struct {
	FleetURL          *string
	FleetToken        *string
	BotToken          *string
	ChatID            *int64
	ClipsDir          *string
	ScratchDir        *string
	LedgerPath        *string
	DeleteAfterUpload *bool
}

// Override applies non-empty override values to the configuration.
func (c *Config) Override(overrides Overrides) {
	if overrides.FleetURL != nil && *overrides.FleetURL != "" {
		c.FleetURL = *overrides.FleetURL
	}
	if overrides.FleetToken != nil && *overrides.FleetToken != "" {
		c.FleetToken = *overrides.FleetToken
	}
	if overrides.BotToken != nil && *overrides.BotToken != "" {
		c.BotToken = *overrides.BotToken
	}
	if overrides.ChatID != nil && *overrides.ChatID != 0 {
		c.ChatID = *overrides.ChatID
	}
	if overrides.ClipsDir != nil && *overrides.ClipsDir != "" {
		c.ClipsDir = *overrides.ClipsDir
	}
	if overrides.ScratchDir != nil && *overrides.ScratchDir != "" {
		c.ScratchDir = *overrides.ScratchDir
	}
	if overrides.LedgerPath != nil && *overrides.LedgerPath != "" {
		c.LedgerPath = *overrides.LedgerPath
	}
	if overrides.DeleteAfterUpload != nil {
		c.DeleteAfterUpload = *overrides.DeleteAfterUpload
	}
}
