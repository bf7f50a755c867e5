package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface is the read side of the configuration handed to components.
type Interface interface {
	Logger() LoggerConfig
	Agent() AgentConfig
	Backend() BackendConfig
	Device() DeviceConfig
	Locator() LocatorConfig
	Metrics() MetricsConfig
}

type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	AgentCfg   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	BackendCfg BackendConfig `mapstructure:"backend" yaml:"backend"`
	DeviceCfg  DeviceConfig  `mapstructure:"device" yaml:"device"`
	LocatorCfg LocatorConfig `mapstructure:"locator" yaml:"locator"`
	MetricsCfg MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Agent() AgentConfig     { return c.AgentCfg }
func (c *Config) Backend() BackendConfig { return c.BackendCfg }
func (c *Config) Device() DeviceConfig   { return c.DeviceCfg }
func (c *Config) Locator() LocatorConfig { return c.LocatorCfg }
func (c *Config) Metrics() MetricsConfig { return c.MetricsCfg }

type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// AgentConfig bounds and paces the automation loop.
type AgentConfig struct {
	MaxIterations     int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	BackendAttempts   int           `mapstructure:"backend_attempts" yaml:"backend_attempts"`
	BackendRetryDelay time.Duration `mapstructure:"backend_retry_delay" yaml:"backend_retry_delay"`
	PausePollInterval time.Duration `mapstructure:"pause_poll_interval" yaml:"pause_poll_interval"`
	HistorySize       int           `mapstructure:"history_size" yaml:"history_size"`
	FaultCooldown     time.Duration `mapstructure:"fault_cooldown" yaml:"fault_cooldown"`
	ScreenshotsDir    string        `mapstructure:"screenshots_dir" yaml:"screenshots_dir"`
	ClickSettle       time.Duration `mapstructure:"click_settle" yaml:"click_settle"`
	KeyHold           time.Duration `mapstructure:"key_hold" yaml:"key_hold"`
	AfterClick        time.Duration `mapstructure:"after_click" yaml:"after_click"`
	AfterWrite        time.Duration `mapstructure:"after_write" yaml:"after_write"`
	AfterPress        time.Duration `mapstructure:"after_press" yaml:"after_press"`
	BetweenActions    time.Duration `mapstructure:"between_actions" yaml:"between_actions"`
}

type ProviderConfig struct {
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
}

type BackendConfig struct {
	Provider           string                    `mapstructure:"provider" yaml:"provider"`
	ParseAttempts      int                       `mapstructure:"parse_attempts" yaml:"parse_attempts"`
	ParseRetryDelay    time.Duration             `mapstructure:"parse_retry_delay" yaml:"parse_retry_delay"`
	MaxTranscriptTurns int                       `mapstructure:"max_transcript_turns" yaml:"max_transcript_turns"`
	Providers          map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// Selected returns the settings of the active provider.
func (b BackendConfig) Selected() ProviderConfig {
	return b.Providers[ProviderName(b.Provider)]
}

// ProviderName folds provider aliases onto the keys used under backend.providers.
func ProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "claude":
		return "anthropic"
	case "google":
		return "gemini"
	case "dashscope", "tongyi":
		return "qwen"
	}
	return name
}

type DeviceConfig struct {
	Kind      string `mapstructure:"kind" yaml:"kind"`
	StartURL  string `mapstructure:"start_url" yaml:"start_url"`
	RemoteURL string `mapstructure:"remote_url" yaml:"remote_url"`
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
	Width     int    `mapstructure:"width" yaml:"width"`
	Height    int    `mapstructure:"height" yaml:"height"`
}

// LocatorConfig drives text-target resolution for clicks.
type LocatorConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Provider  string `mapstructure:"provider" yaml:"provider"`
	CacheSize int    `mapstructure:"cache_size" yaml:"cache_size"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

const (
	DeviceDesktop    = "desktop"
	DevicePlaywright = "playwright"
	DeviceChrome     = "chrome"
)

func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "region-agent")
	v.SetDefault("logger.log_file", "region-agent.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Agent loop --
	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.backend_attempts", 3)
	v.SetDefault("agent.backend_retry_delay", 3*time.Second)
	v.SetDefault("agent.pause_poll_interval", 500*time.Millisecond)
	v.SetDefault("agent.history_size", 5)
	v.SetDefault("agent.fault_cooldown", 3*time.Second)
	v.SetDefault("agent.screenshots_dir", "screenshots")
	v.SetDefault("agent.click_settle", 200*time.Millisecond)
	v.SetDefault("agent.key_hold", 100*time.Millisecond)
	v.SetDefault("agent.after_click", 1500*time.Millisecond)
	v.SetDefault("agent.after_write", time.Second)
	v.SetDefault("agent.after_press", 1500*time.Millisecond)
	v.SetDefault("agent.between_actions", time.Second)

	// -- Backend --
	v.SetDefault("backend.provider", "qwen")
	v.SetDefault("backend.parse_attempts", 3)
	v.SetDefault("backend.parse_retry_delay", time.Second)
	v.SetDefault("backend.max_transcript_turns", 20)

	v.SetDefault("backend.providers.openai.model", "gpt-4o")
	v.SetDefault("backend.providers.openai.api_key", "")
	v.SetDefault("backend.providers.openai.timeout", 60*time.Second)
	v.SetDefault("backend.providers.openai.max_tokens", 1000)

	v.SetDefault("backend.providers.anthropic.model", "claude-3-opus-20240229")
	v.SetDefault("backend.providers.anthropic.api_key", "")
	v.SetDefault("backend.providers.anthropic.timeout", 90*time.Second)
	v.SetDefault("backend.providers.anthropic.max_tokens", 3000)

	v.SetDefault("backend.providers.gemini.model", "gemini-1.5-pro")
	v.SetDefault("backend.providers.gemini.api_key", "")
	v.SetDefault("backend.providers.gemini.timeout", 60*time.Second)
	v.SetDefault("backend.providers.gemini.max_tokens", 1000)

	v.SetDefault("backend.providers.qwen.model", "qwen-vl-plus")
	v.SetDefault("backend.providers.qwen.api_key", "")
	v.SetDefault("backend.providers.qwen.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("backend.providers.qwen.timeout", 60*time.Second)
	v.SetDefault("backend.providers.qwen.max_tokens", 1000)

	// -- Device --
	v.SetDefault("device.kind", DeviceDesktop)
	v.SetDefault("device.start_url", "about:blank")
	v.SetDefault("device.remote_url", "")
	v.SetDefault("device.headless", false)
	v.SetDefault("device.width", 1280)
	v.SetDefault("device.height", 800)

	// -- Locator --
	v.SetDefault("locator.enabled", true)
	v.SetDefault("locator.provider", "openai")
	v.SetDefault("locator.cache_size", 128)

	v.SetDefault("metrics.addr", "")
}

// BindEnv maps the conventional provider credential variables onto their keys.
func BindEnv(v *viper.Viper) {
	_ = v.BindEnv("backend.providers.openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("backend.providers.anthropic.api_key", "ANTHROPIC_API_KEY", "CLAUDE_API_KEY")
	_ = v.BindEnv("backend.providers.gemini.api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("backend.providers.qwen.api_key", "DASHSCOPE_API_KEY", "QWEN_API_KEY")
}

func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	BindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges only; credentials are checked when a backend is built.
func (c *Config) Validate() error {
	a := c.AgentCfg
	if a.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be a positive integer")
	}
	if a.BackendAttempts <= 0 {
		return fmt.Errorf("agent.backend_attempts must be a positive integer")
	}
	if a.HistorySize <= 0 {
		return fmt.Errorf("agent.history_size must be a positive integer")
	}
	if a.PausePollInterval <= 0 {
		return fmt.Errorf("agent.pause_poll_interval must be positive")
	}
	if strings.TrimSpace(a.ScreenshotsDir) == "" {
		return fmt.Errorf("agent.screenshots_dir is required")
	}
	if c.BackendCfg.ParseAttempts <= 0 {
		return fmt.Errorf("backend.parse_attempts must be a positive integer")
	}
	if _, ok := c.BackendCfg.Providers[ProviderName(c.BackendCfg.Provider)]; !ok {
		return fmt.Errorf("backend.provider %q is not configured", c.BackendCfg.Provider)
	}
	switch c.DeviceCfg.Kind {
	case DeviceDesktop, DevicePlaywright, DeviceChrome:
	default:
		return fmt.Errorf("device.kind must be one of %s, %s, %s", DeviceDesktop, DevicePlaywright, DeviceChrome)
	}
	return nil
}
