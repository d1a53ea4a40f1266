// Package auth maps bearer API keys to configured projects.
package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/velamed/velamed/internal/config"
)

// Project is the runtime representation of an authenticated caller.
type Project struct {
	ID string
}

// Auth holds mappings from API keys to projects.
type Auth struct {
	apiKeyToProject map[string]Project
}

// NewFromConfig builds an Auth instance from the loaded config.
func NewFromConfig(cfg *config.Config) (*Auth, error) {
	m := make(map[string]Project)

	for _, p := range cfg.Server.Projects {
		if p.ID == "" {
			return nil, fmt.Errorf("project with empty id in config")
		}
		proj := Project{ID: p.ID}
		for _, key := range p.APIKeys {
			if key == "" {
				continue
			}
			if _, exists := m[key]; exists {
				return nil, fmt.Errorf("an api key is assigned to multiple projects")
			}
			m[key] = proj
		}
	}

	return &Auth{
		apiKeyToProject: m,
	}, nil
}

// Lookup returns the project for a given API key, if any. Comparison is
// constant-time per candidate key.
func (a *Auth) Lookup(apiKey string) (Project, bool) {
	if a == nil || apiKey == "" {
		return Project{}, false
	}
	for key, proj := range a.apiKeyToProject {
		if len(key) == len(apiKey) && subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return proj, true
		}
	}
	return Project{}, false
}

// Open reports whether no projects are configured; in that case requests are
// accepted without credentials (local/dev mode).
func (a *Auth) Open() bool {
	return a == nil || len(a.apiKeyToProject) == 0
}
