package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Addr: ":8080",
			Projects: []ProjectConfig{
				{ID: "clinic-a", APIKeys: []string{"sk-test"}},
			},
		},
		Vault: VaultConfig{Keys: map[string]string{"phi-v1": "VELAMED_KEY_PHI_V1"}},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = " " }},
		{"project without id", func(c *Config) { c.Server.Projects[0].ID = "" }},
		{"project without keys", func(c *Config) { c.Server.Projects[0].APIKeys = nil }},
		{"duplicate project", func(c *Config) {
			c.Server.Projects = append(c.Server.Projects, ProjectConfig{ID: "clinic-a", APIKeys: []string{"x"}})
		}},
		{"guard without bundle", func(c *Config) { c.Guard.Enabled = true }},
		{"vault bad env name", func(c *Config) { c.Vault.Keys["phi-v1"] = "lower-case!" }},
		{"audit without sinks", func(c *Config) { c.Audit.Enabled = true }},
		{"audit file sink without path", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.Sinks = []SinkConfig{{Type: "file_jsonl"}}
		}},
		{"audit webhook bad scheme", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.Sinks = []SinkConfig{{Type: "webhook", URL: "ftp://example.com"}}
		}},
		{"audit unknown sink type", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.Sinks = []SinkConfig{{Type: "syslog"}}
		}},
		{"telemetry without endpoint", func(c *Config) { c.Telemetry.Enabled = true }},
		{"telemetry bad protocol", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = "localhost:4317"
			c.Telemetry.Protocol = "udp"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("validation passed, want error")
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("nil config accepted")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("default addr = %q", cfg.Server.Addr)
	}
	if cfg.Engine.MaxTextBytes != 1<<20 {
		t.Fatalf("default max_text_bytes = %d", cfg.Engine.MaxTextBytes)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("default logging = %+v", cfg.Logging)
	}
}

func TestLoadYAML(t *testing.T) {
	raw := `
server:
  addr: ":9090"
  projects:
    - id: clinic-a
      api_keys: ["sk-test"]
engine:
  max_text_bytes: 2048
guard:
  enabled: true
  bundle_dir: /var/lib/velamed/nerguard
vault:
  keys:
    phi-v1: VELAMED_KEY_PHI_V1
audit:
  enabled: true
  queue_size: 64
  sinks:
    - type: file_jsonl
      path: /var/log/velamed/audit.jsonl
telemetry:
  enabled: true
  endpoint: localhost:4317
  protocol: grpc
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "velamed.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Engine.MaxTextBytes != 2048 {
		t.Fatalf("max_text_bytes = %d", cfg.Engine.MaxTextBytes)
	}
	if !cfg.Guard.Enabled || cfg.Guard.BundleDir != "/var/lib/velamed/nerguard" {
		t.Fatalf("guard = %+v", cfg.Guard)
	}
	if cfg.Guard.SequenceLength != 256 {
		t.Fatalf("guard sequence default = %d", cfg.Guard.SequenceLength)
	}
	if cfg.Vault.Keys["phi-v1"] != "VELAMED_KEY_PHI_V1" {
		t.Fatalf("vault keys = %v", cfg.Vault.Keys)
	}
	if cfg.Audit.QueueSize != 64 || cfg.Audit.Workers != 1 {
		t.Fatalf("audit = %+v", cfg.Audit)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}
