package application

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/quantmesh/edgecore/internal/conviction"
	"github.com/quantmesh/edgecore/internal/execution"
	"github.com/quantmesh/edgecore/internal/risk"
	"github.com/quantmesh/edgecore/internal/signals/footprint"
	"github.com/quantmesh/edgecore/internal/signals/liquidation"
	"github.com/quantmesh/edgecore/internal/signals/regime"
	"github.com/quantmesh/edgecore/internal/signals/volatility"
)

// Config is the full application configuration. Precedence: built-in
// defaults, then the YAML file, then environment overrides.
type Config struct {
	Server    ServerConfig       `yaml:"server"`
	Database  DatabaseConfig     `yaml:"database"`
	Redis     RedisConfig        `yaml:"redis"`
	Feed      FeedConfig         `yaml:"feed"`
	Logging   LoggingConfig      `yaml:"logging"`
	Signals   SignalsConfig      `yaml:"signals"`
	Weights   conviction.Weights `yaml:"weights"`
	Risk      risk.Config        `yaml:"risk"`
	Execution execution.Config   `yaml:"execution"`
}

type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr" default:":8080" validate:"required"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec" default:"10" validate:"gt=0"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec" default:"15" validate:"gt=0"`
	StalenessMs     int64  `yaml:"staleness_ms" default:"10000" validate:"gt=0"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" default:"10" validate:"gt=0"`
	MaxIdleConns int    `yaml:"max_idle_conns" default:"5" validate:"gte=0"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" default:"0" validate:"gte=0"`
}

type FeedConfig struct {
	URL             string   `yaml:"url"`
	Symbols         []string `yaml:"symbols"`
	RatePerSec      float64  `yaml:"rate_per_sec" default:"20" validate:"gt=0"`
	RateBurst       int      `yaml:"rate_burst" default:"40" validate:"gt=0"`
	ReconnectSec    int      `yaml:"reconnect_sec" default:"5" validate:"gt=0"`
	PingIntervalSec int      `yaml:"ping_interval_sec" default:"30" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// SignalsConfig groups processor tuning. Load pre-seeds every section with
// the processor defaults, so a partial YAML section overrides only the fields
// it names and never zeroes sibling thresholds.
type SignalsConfig struct {
	Regime      regime.Config      `yaml:"regime"`
	Volatility  volatility.Config  `yaml:"volatility"`
	Footprint   footprint.Config   `yaml:"footprint"`
	Liquidation liquidation.Config `yaml:"liquidation"`
	TrackerDir  string             `yaml:"tracker_dir"`
}

// Load reads configuration from path (empty path skips the file), applies
// defaults and env overrides, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("config defaults: %w", err)
	}
	cfg.Weights = conviction.DefaultWeights()
	cfg.Risk = risk.DefaultConfig()
	cfg.Execution = execution.DefaultConfig()
	cfg.Signals.Regime = regime.DefaultConfig()
	cfg.Signals.Volatility = volatility.DefaultConfig()
	cfg.Signals.Footprint = footprint.DefaultConfig()
	cfg.Signals.Liquidation = liquidation.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Weights.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides deployment-specific settings. Secrets stay out of the
// YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("EDGECORE_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("EDGECORE_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("EDGECORE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("EDGECORE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("EDGECORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}
