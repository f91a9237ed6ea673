package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/data"
)

// DefaultSlots are the daily broadcast times used when SCHEDULE_SLOTS is unset
const DefaultSlots = "gm=0 8 * * *;noon=0 12 * * *;gn=0 20 * * *"

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Engine defaults
	Engine EngineConfig

	// State persistence
	State StateConfig

	// Content files
	Content ContentConfig

	// Scheduled broadcasts
	Schedule ScheduleConfig

	// Admin API
	API APIConfig

	// MCP tool server
	MCP MCPConfig

	// Logging
	Log LogConfig

	// Debug mode
	Debug bool `env:"DEBUG" envDefault:"false"`
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string `env:"FEISHU_APP_ID"`
	AppSecret string `env:"FEISHU_APP_SECRET"`
	BotHandle string `env:"BOT_HANDLE"` // falls back to the bot name reported by Feishu
}

// EngineConfig contains the process-wide reply defaults
type EngineConfig struct {
	IdleMinutes      int           `env:"IDLE_MINUTES" envDefault:"5"`
	CooldownSeconds  int           `env:"COOLDOWN_SECONDS" envDefault:"10"`
	KeywordReplyProb float64       `env:"KEYWORD_REPLY_PROB" envDefault:"1"`
	MentionReplyProb float64       `env:"MENTION_REPLY_PROB" envDefault:"0.90"`
	GeneralReplyProb float64       `env:"GENERAL_REPLY_PROB" envDefault:"0.75"`
	MaxMsgPerMin     int           `env:"MAX_MSG_PER_MIN" envDefault:"6"`
	IdleTick         time.Duration `env:"IDLE_TICK" envDefault:"60s"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`
	RandomSeed       uint64        `env:"RANDOM_SEED" envDefault:"0"` // 0 seeds from the clock
}

// StateConfig contains state persistence configuration
type StateConfig struct {
	File    string `env:"STATE_FILE" envDefault:"state.json"`
	Backend string `env:"STATE_BACKEND" envDefault:"auto"`
}

// ContentConfig contains content file paths
type ContentConfig struct {
	KeywordsFile  string `env:"KEYWORDS_FILE" envDefault:"keywords.json"`
	GeneralFile   string `env:"GENERAL_FILE" envDefault:"general_replies.json"`
	IdleFile      string `env:"IDLE_FILE" envDefault:"idle_messages.json"`
	ScheduledFile string `env:"SCHEDULED_FILE" envDefault:"scheduled_hype.json"`
}

// ScheduleConfig contains scheduled broadcast configuration
type ScheduleConfig struct {
	TZ     string        `env:"SCHEDULE_TZ" envDefault:"UTC"`
	Slots  string        `env:"SCHEDULE_SLOTS" envDefault:"gm=0 8 * * *;noon=0 12 * * *;gn=0 20 * * *"`
	Window time.Duration `env:"SCHEDULE_WINDOW" envDefault:"5m"`
	Tick   time.Duration `env:"BROADCAST_TICK" envDefault:"60s"`
}

// APIConfig contains admin API configuration
type APIConfig struct {
	Addr string `env:"ADMIN_API_ADDR" envDefault:"127.0.0.1:9876"`
}

// MCPConfig contains MCP tool server configuration
type MCPConfig struct {
	APIURL string `env:"HYPE_API_URL"` // defaults to ADMIN_API_ADDR
}

// APIURL returns the admin API address the MCP server talks to
func (c *Config) APIURL() string {
	if c.MCP.APIURL != "" {
		return c.MCP.APIURL
	}
	return c.API.Addr
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// ConfigError reports a missing or invalid setting
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// LoadDotEnv loads .env into the environment. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load parses configuration from environment variables
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses configuration from environ, or from the process
// environment when environ is nil
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the bot cannot start without
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" {
		return &ConfigError{Field: "FEISHU_APP_ID", Message: "is required"}
	}
	if c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_SECRET", Message: "is required"}
	}
	if _, err := c.Slots(); err != nil {
		return &ConfigError{Field: "SCHEDULE_SLOTS", Message: err.Error()}
	}
	if _, err := c.Location(); err != nil {
		return &ConfigError{Field: "SCHEDULE_TZ", Message: err.Error()}
	}
	return nil
}

// EngineDefaults converts the engine settings, clamping out-of-range values
func (c *Config) EngineDefaults() domain.EngineDefaults {
	idle := c.Engine.IdleMinutes
	if idle < 1 {
		idle = 1
	}
	cooldown := c.Engine.CooldownSeconds
	if cooldown < 0 {
		cooldown = 0
	}
	return domain.EngineDefaults{
		IdleInterval: time.Duration(idle) * time.Minute,
		Cooldown:     time.Duration(cooldown) * time.Second,
		KeywordProb:  domain.ClampProbability(c.Engine.KeywordReplyProb),
		MentionProb:  domain.ClampProbability(c.Engine.MentionReplyProb),
		GeneralProb:  domain.ClampProbability(c.Engine.GeneralReplyProb),
	}
}

// Slots parses SCHEDULE_SLOTS
func (c *Config) Slots() ([]domain.Slot, error) {
	spec := c.Schedule.Slots
	if spec == "" {
		spec = DefaultSlots
	}
	return domain.ParseSlots(spec)
}

// Location loads SCHEDULE_TZ
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.TZ == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Schedule.TZ)
}

// DataOptions returns the repository options
func (c *Config) DataOptions() data.Options {
	return data.Options{
		StatePath:    c.State.File,
		StateBackend: c.State.Backend,
		Content: data.ContentFiles{
			Keywords:  c.Content.KeywordsFile,
			General:   c.Content.GeneralFile,
			Idle:      c.Content.IdleFile,
			Scheduled: c.Content.ScheduledFile,
		},
		MaxMsgPerMin: c.Engine.MaxMsgPerMin,
	}
}
