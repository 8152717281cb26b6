// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the desk, for
// example LIBRARYDESK_DATA_DIR.
const EnvPrefix = "LIBRARYDESK"

// Config is the complete desk configuration.
type Config struct {
	DataDir     string `mapstructure:"data_dir"`
	BooksFile   string `mapstructure:"books_file"`
	ReadersFile string `mapstructure:"readers_file"`
	BorrowsFile string `mapstructure:"borrows_file"`
	StrictLoad  bool   `mapstructure:"strict_load"`

	Log       LogConfig       `mapstructure:"log"`
	Loan      LoanConfig      `mapstructure:"loan"`
	Readers   ReadersConfig   `mapstructure:"readers"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoanConfig sets the loan allowance and the overdue fee per day.
type LoanConfig struct {
	AllowedDays int     `mapstructure:"allowed_days"`
	FeePerDay   float64 `mapstructure:"fee_per_day"`
}

// ReadersConfig sets the borrow allowance of readers.
type ReadersConfig struct {
	MaxBooks int `mapstructure:"max_books"`
}

// TelemetryConfig configures trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json; got %q", c.Log.Format)
	}

	if c.Loan.AllowedDays < 0 {
		return errors.New("loan.allowed_days cannot be negative")
	}

	if c.Loan.FeePerDay < 0 {
		return errors.New("loan.fee_per_day cannot be negative")
	}

	if c.Readers.MaxBooks < 0 {
		return errors.New("readers.max_books cannot be negative")
	}

	return nil
}

// New returns a viper instance carrying the defaults and reading
// LIBRARYDESK_* environment variables. Callers may bind flags to it before
// calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("data_dir", ".")
	v.SetDefault("books_file", "books.txt")
	v.SetDefault("readers_file", "readers.txt")
	v.SetDefault("borrows_file", "borrows.txt")
	v.SetDefault("strict_load", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("loan.allowed_days", 30)
	v.SetDefault("loan.fee_per_day", 0.5)
	v.SetDefault("readers.max_books", 10)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "librarydesk")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configuration into a validated Config. An explicit path must
// exist; without one, librarydesk.yaml in the working directory is used when
// present. A .env file in the working directory is loaded into the
// environment first.
func Load(v *viper.Viper, path string) (*Config, error) {
	_ = godotenv.Load()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("librarydesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
