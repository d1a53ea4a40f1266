package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var envNameRe = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	seen := make(map[string]bool, len(cfg.Server.Projects))
	for _, p := range cfg.Server.Projects {
		if strings.TrimSpace(p.ID) == "" {
			return errors.New("project id must be set")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate project id %q", p.ID)
		}
		seen[p.ID] = true
		if len(p.APIKeys) == 0 {
			return fmt.Errorf("project %q must define at least one api_keys entry", p.ID)
		}
	}

	if cfg.Guard.Enabled && strings.TrimSpace(cfg.Guard.BundleDir) == "" {
		return errors.New("guard enabled but bundle_dir is empty")
	}

	for handle, env := range cfg.Vault.Keys {
		if strings.TrimSpace(handle) == "" {
			return errors.New("vault key handle must be non-empty")
		}
		if !envNameRe.MatchString(env) {
			return fmt.Errorf("vault key %q has invalid env var name %q", handle, env)
		}
	}

	if err := validateAuditConfig(cfg.Audit); err != nil {
		return err
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

func validateAuditConfig(a AuditConfig) error {
	if !a.Enabled {
		return nil
	}
	if len(a.Sinks) == 0 {
		return errors.New("audit enabled but no sinks configured")
	}
	for i, s := range a.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("audit sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("audit sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("audit sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("audit sink %d (webhook) url must be http or https", i)
			}
		default:
			return fmt.Errorf("audit sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}
