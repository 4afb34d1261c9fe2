package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the experiment controller.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Backend    BackendConfig    `yaml:"backend"`
	Poller     PollerConfig     `yaml:"poller"`
	Experiment ExperimentConfig `yaml:"experiment"`
	History    HistoryConfig    `yaml:"history"`
	Presets    PresetsConfig    `yaml:"presets"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Cache      CacheConfig      `yaml:"cache"`
}

// ServerConfig controls the gRPC and HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// BackendConfig configures access to the fault-tolerance backend.
type BackendConfig struct {
	BaseURL             string        `yaml:"baseURL"`
	HealthPath          string        `yaml:"healthPath"`
	StatusPath          string        `yaml:"statusPath"`
	RunExperimentPath   string        `yaml:"runExperimentPath"`
	SimulateFailurePath string        `yaml:"simulateFailurePath"`
	RecoverPath         string        `yaml:"recoverPath"`
	ConfigurePath       string        `yaml:"configurePath"`
	PresetsPath         string        `yaml:"presetsPath"`
	PollTimeout         time.Duration `yaml:"pollTimeout"`
	ExperimentTimeout   time.Duration `yaml:"experimentTimeout"`
	FaultTimeout        time.Duration `yaml:"faultTimeout"`
}

// PollerConfig controls the status polling cadence.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ExperimentConfig seeds the operator's configuration draft.
type ExperimentConfig struct {
	Strategy                  string `yaml:"strategy"`
	CheckpointIntervalSeconds int    `yaml:"checkpointIntervalSeconds"`
	ReplicationFactor         int    `yaml:"replicationFactor"`
	WorkloadSize              int    `yaml:"workloadSize"`
}

// HistoryConfig controls where completed runs are kept.
type HistoryConfig struct {
	Engine  string `yaml:"engine"`
	Path    string `yaml:"path"`
	MaxRuns int    `yaml:"maxRuns"`
}

// PresetsConfig points at the local preset catalog used when the backend has none.
type PresetsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// TracingConfig toggles the stdout OpenTelemetry exporter.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CacheConfig controls Redis-backed caching of backend presets.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	PresetsTTL   time.Duration `yaml:"presetsTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FTCTL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8080",
			GracefulTimeout: 10 * time.Second,
		},
		Backend: BackendConfig{
			BaseURL:             "http://localhost:8000/api",
			HealthPath:          "/health",
			StatusPath:          "/fault-tolerance/status",
			RunExperimentPath:   "/fault-tolerance/run-experiment",
			SimulateFailurePath: "/fault-tolerance/simulate-failure",
			RecoverPath:         "/fault-tolerance/recover",
			ConfigurePath:       "/fault-tolerance/configure",
			PresetsPath:         "/fault-tolerance/experiment-presets",
			PollTimeout:         5 * time.Second,
			ExperimentTimeout:   60 * time.Second,
			FaultTimeout:        10 * time.Second,
		},
		Poller: PollerConfig{Interval: 30 * time.Second},
		Experiment: ExperimentConfig{
			Strategy:                  "baseline",
			CheckpointIntervalSeconds: 30,
			ReplicationFactor:         3,
			WorkloadSize:              100,
		},
		History: HistoryConfig{Engine: "memory"},
		Presets: PresetsConfig{Path: "configs/presets.yaml"},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			PresetsTTL:   10 * time.Minute,
		},
	}
}

func (c Config) check() error {
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be > 0")
	}
	if c.Backend.PollTimeout <= 0 || c.Backend.ExperimentTimeout <= 0 || c.Backend.FaultTimeout <= 0 {
		return fmt.Errorf("backend timeouts must be > 0")
	}
	switch c.History.Engine {
	case "memory":
	case "badger":
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for the badger engine")
		}
	default:
		return fmt.Errorf("unknown history engine %q", c.History.Engine)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FTCTL_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("FTCTL_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("FTCTL_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("FTCTL_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Poller.Interval = d
		}
	}
	if v := os.Getenv("FTCTL_POLL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.PollTimeout = d
		}
	}
	if v := os.Getenv("FTCTL_EXPERIMENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.ExperimentTimeout = d
		}
	}
	if v := os.Getenv("FTCTL_FAULT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.FaultTimeout = d
		}
	}
	if v := os.Getenv("FTCTL_HISTORY_ENGINE"); v != "" {
		cfg.History.Engine = v
	}
	if v := os.Getenv("FTCTL_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("FTCTL_HISTORY_MAX_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.MaxRuns = n
		}
	}
	if v := os.Getenv("FTCTL_PRESETS_PATH"); v != "" {
		cfg.Presets.Path = v
	}
	if v := os.Getenv("FTCTL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FTCTL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("FTCTL_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FTCTL_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FTCTL_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("FTCTL_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("FTCTL_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("FTCTL_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("FTCTL_CACHE_TLS"); strings.EqualFold(v, "true") || v == "1" {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("FTCTL_CACHE_PRESETS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.PresetsTTL = d
		}
	}
}
