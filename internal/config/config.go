// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.mongkol/config.yaml or ./config.yaml)
//  3. Default values
//
// Security: API keys and the database password are never logged; both are
// masked in MarshalJSON. Validation uses sentinel errors so callers can
// discriminate with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required upstream API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidSummaryThreshold indicates the summary threshold is not positive.
	ErrInvalidSummaryThreshold = errors.New("invalid summary threshold")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is not recognized.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Chat defaults applied to requests that omit the corresponding field.
const (
	// DefaultModel is the model identifier used when a request omits model_id.
	DefaultModel = "llama-3.1-70b-versatile"

	// DefaultTemperature is the sampling temperature used when unset.
	DefaultTemperature float32 = 0.5

	// DefaultSeerName is the fortune teller persona name.
	DefaultSeerName = "แม่หมอแพตตี้"

	// DefaultSeerPersonality is the persona free-text description.
	DefaultSeerPersonality = "You are a friend who is always ready to help."

	// DefaultSummaryThreshold is the assembled-message count above which the
	// memory endpoint compacts history.
	DefaultSummaryThreshold = 3
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// HTTP server
	ServerAddr  string   `mapstructure:"server_addr" json:"server_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Upstream model endpoints (both OpenAI-compatible)
	TyphoonAPIKey  string `mapstructure:"typhoon_api_key" json:"typhoon_api_key"` // SENSITIVE
	GroqAPIKey     string `mapstructure:"groq_api_key" json:"groq_api_key"`       // SENSITIVE
	TyphoonBaseURL string `mapstructure:"typhoon_base_url" json:"typhoon_base_url"`
	GroqBaseURL    string `mapstructure:"groq_base_url" json:"groq_base_url"`

	// Chat defaults
	ModelID          string  `mapstructure:"model_id" json:"model_id"`
	Temperature      float32 `mapstructure:"temperature" json:"temperature"`
	SeerName         string  `mapstructure:"seer_name" json:"seer_name"`
	SeerPersonality  string  `mapstructure:"seer_personality" json:"seer_personality"`
	SummaryThreshold int     `mapstructure:"summary_threshold" json:"summary_threshold"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability: OTLP/HTTP trace endpoint (empty = tracing disabled)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".mongkol")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes priority over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("server_addr", "127.0.0.1:8000")
	viper.SetDefault("cors_origins", []string{"*"})
	viper.SetDefault("rate_burst", 60)
	viper.SetDefault("trust_proxy", false)

	viper.SetDefault("typhoon_base_url", "https://api.opentyphoon.ai/v1")
	viper.SetDefault("groq_base_url", "https://api.groq.com/openai/v1")

	viper.SetDefault("model_id", DefaultModel)
	viper.SetDefault("temperature", DefaultTemperature)
	viper.SetDefault("seer_name", DefaultSeerName)
	viper.SetDefault("seer_personality", DefaultSeerPersonality)
	viper.SetDefault("summary_threshold", DefaultSummaryThreshold)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "mongkol")
	viper.SetDefault("postgres_password", "mongkol_dev_password")
	viper.SetDefault("postgres_db_name", "mongkol")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("otlp_endpoint", "")
}

// bindEnvVariables binds environment variables for secrets explicitly.
// Everything else follows viper's automatic MONGKOL_ prefix binding.
func bindEnvVariables() {
	viper.SetEnvPrefix("MONGKOL")
	viper.AutomaticEnv()

	// Upstream credentials keep their conventional unprefixed names.
	_ = viper.BindEnv("typhoon_api_key", "TYPHOON_API_KEY")
	_ = viper.BindEnv("groq_api_key", "GROQ_API_KEY")
}

// Validate performs fail-fast validation of the loaded configuration.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("%w: %v (must be in [0, 1])", ErrInvalidTemperature, c.Temperature)
	}
	if c.SummaryThreshold < 1 {
		return fmt.Errorf("%w: %d (must be >= 1)", ErrInvalidSummaryThreshold, c.SummaryThreshold)
	}
	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}

// ValidateServe checks requirements specific to serve mode.
// At least one upstream credential must be present so the gateway can route.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.TyphoonAPIKey == "" && c.GroqAPIKey == "" {
		return fmt.Errorf("%w: set TYPHOON_API_KEY or GROQ_API_KEY", ErrMissingAPIKey)
	}
	return nil
}

// MarshalJSON masks sensitive fields so the config can be logged safely.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	masked := alias(*c)
	if masked.TyphoonAPIKey != "" {
		masked.TyphoonAPIKey = "***"
	}
	if masked.GroqAPIKey != "" {
		masked.GroqAPIKey = "***"
	}
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	return json.Marshal(masked)
}
