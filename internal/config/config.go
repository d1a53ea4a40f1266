// Package config loads and validates the service configuration from YAML.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds Velamed configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Guard     GuardConfig     `yaml:"guard"`
	Vault     VaultConfig     `yaml:"vault"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr     string          `yaml:"addr"` // HTTP listen address, e.g. ":8080"
	Projects []ProjectConfig `yaml:"projects"`
}

type ProjectConfig struct {
	ID      string   `yaml:"id"`
	APIKeys []string `yaml:"api_keys"`
}

type EngineConfig struct {
	MaxTextBytes int `yaml:"max_text_bytes"`
}

// GuardConfig controls the optional ONNX name specialist.
type GuardConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BundleDir      string `yaml:"bundle_dir"`
	SequenceLength int    `yaml:"sequence_length"`
}

// VaultConfig maps opaque key handles to the environment variables that hold
// the hex-encoded 256-bit master keys. Key material never appears in YAML.
type VaultConfig struct {
	Keys map[string]string `yaml:"keys"`
}

type AuditConfig struct {
	Enabled           bool            `yaml:"enabled"`
	Sinks             []SinkConfig    `yaml:"sinks"`
	QueueSize         int             `yaml:"queue_size"`
	Workers           int             `yaml:"workers"`
	ShutdownTimeoutMS int             `yaml:"shutdown_timeout_ms"`
}

type SinkConfig struct {
	Type      string            `yaml:"type"` // file_jsonl | webhook
	Path      string            `yaml:"path"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	TimeoutMS int               `yaml:"timeout_ms"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
	Service  string `yaml:"service"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Engine.MaxTextBytes <= 0 {
		cfg.Engine.MaxTextBytes = 1 << 20
	}

	if cfg.Guard.SequenceLength <= 0 {
		cfg.Guard.SequenceLength = 256
	}

	if cfg.Audit.QueueSize <= 0 {
		cfg.Audit.QueueSize = 1024
	}
	if cfg.Audit.Workers <= 0 {
		cfg.Audit.Workers = 1
	}
	if cfg.Audit.ShutdownTimeoutMS <= 0 {
		cfg.Audit.ShutdownTimeoutMS = 5000
	}

	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "velamed"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
