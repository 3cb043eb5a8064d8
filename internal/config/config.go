package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ModelConfig holds the model service endpoint settings.
type ModelConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	AgentID           string  `mapstructure:"agent_id"`
	Temperature       float64 `mapstructure:"temperature"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

// GroundingConfig holds the orchestrator's tunable budgets.
type GroundingConfig struct {
	MaxEvidence    int           `mapstructure:"max_evidence"`
	BaseMaxTokens  int           `mapstructure:"base_max_tokens"`
	RetryMaxTokens int           `mapstructure:"retry_max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LocatorConfig paces the highlight retry loop.
type LocatorConfig struct {
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// TracingConfig mirrors the tracing package's settings.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Model     ModelConfig     `mapstructure:"model"`
	Grounding GroundingConfig `mapstructure:"grounding"`
	Locator   LocatorConfig   `mapstructure:"locator"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Path returns the config file path: CONFIG_PATH or the repo default.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/docquote.yaml"
}

// Load reads the config file and applies env overrides (DOCQUOTE_ prefix,
// e.g. DOCQUOTE_MODEL_BASE_URL). A missing file is not an error; defaults
// and env cover everything.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOCQUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("model.base_url", "http://llm-service:8000")
	v.SetDefault("model.agent_id", "docquote")
	v.SetDefault("model.temperature", 0.0)
	v.SetDefault("model.requests_per_minute", 0)

	v.SetDefault("grounding.max_evidence", 6)
	v.SetDefault("grounding.base_max_tokens", 2048)
	v.SetDefault("grounding.retry_max_tokens", 4096)
	v.SetDefault("grounding.request_timeout", 120*time.Second)

	v.SetDefault("locator.retry_attempts", 3)
	v.SetDefault("locator.retry_delay", 400*time.Millisecond)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "docquote")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Grounding.MaxEvidence < 1 || c.Grounding.MaxEvidence > 12 {
		return fmt.Errorf("grounding.max_evidence must be in 1..12, got %d", c.Grounding.MaxEvidence)
	}
	if c.Grounding.BaseMaxTokens <= 0 {
		return fmt.Errorf("grounding.base_max_tokens must be positive")
	}
	if c.Grounding.RetryMaxTokens < c.Grounding.BaseMaxTokens {
		return fmt.Errorf("grounding.retry_max_tokens must be >= grounding.base_max_tokens")
	}
	if c.Locator.RetryAttempts < 1 {
		return fmt.Errorf("locator.retry_attempts must be at least 1")
	}
	return nil
}
