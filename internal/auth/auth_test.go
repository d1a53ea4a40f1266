package auth

import (
	"testing"

	"github.com/velamed/velamed/internal/config"
)

func TestLookup(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{
		Projects: []config.ProjectConfig{
			{ID: "clinic-a", APIKeys: []string{"sk-a-1", "sk-a-2"}},
			{ID: "clinic-b", APIKeys: []string{"sk-b-1"}},
		},
	}}
	a, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}

	if p, ok := a.Lookup("sk-a-2"); !ok || p.ID != "clinic-a" {
		t.Fatalf("Lookup(sk-a-2) = %+v, %v", p, ok)
	}
	if p, ok := a.Lookup("sk-b-1"); !ok || p.ID != "clinic-b" {
		t.Fatalf("Lookup(sk-b-1) = %+v, %v", p, ok)
	}
	if _, ok := a.Lookup("unknown"); ok {
		t.Fatal("unknown key accepted")
	}
	if _, ok := a.Lookup(""); ok {
		t.Fatal("empty key accepted")
	}
	if a.Open() {
		t.Fatal("Open() true with projects configured")
	}
}

func TestDuplicateKeyRejected(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{
		Projects: []config.ProjectConfig{
			{ID: "clinic-a", APIKeys: []string{"sk-shared"}},
			{ID: "clinic-b", APIKeys: []string{"sk-shared"}},
		},
	}}
	if _, err := NewFromConfig(cfg); err == nil {
		t.Fatal("duplicate api key accepted")
	}
}

func TestOpenModeWithoutProjects(t *testing.T) {
	a, err := NewFromConfig(&config.Config{})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if !a.Open() {
		t.Fatal("Open() false with no projects")
	}
}
