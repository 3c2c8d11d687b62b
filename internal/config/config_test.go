package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riskmap.yaml")
	content := []byte(`
storage:
  path: /var/lib/riskmap/graph.db
  memgraph:
    enabled: true
    uri: bolt://memgraph:7687
server:
  listen: ":9090"
  read_only: true
graph:
  default_depth: 4
scenario:
  default_probability: 0.2
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Storage.Path != "/var/lib/riskmap/graph.db" {
		t.Errorf("storage.path = %q", cfg.Storage.Path)
	}
	if !cfg.Storage.Memgraph.Enabled {
		t.Error("memgraph should be enabled")
	}
	if cfg.Storage.Memgraph.URI != "bolt://memgraph:7687" {
		t.Errorf("memgraph.uri = %q", cfg.Storage.Memgraph.URI)
	}
	if cfg.Server.Listen != ":9090" {
		t.Errorf("server.listen = %q", cfg.Server.Listen)
	}
	if !cfg.Server.ReadOnly {
		t.Error("server.read_only should be true")
	}
	if cfg.Graph.DefaultDepth != 4 {
		t.Errorf("graph.default_depth = %d", cfg.Graph.DefaultDepth)
	}
	if cfg.Scenario.DefaultProbability != 0.2 {
		t.Errorf("scenario.default_probability = %v", cfg.Scenario.DefaultProbability)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riskmap.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Storage.Path != "./data/riskmap.db" {
		t.Errorf("storage.path = %q, want ./data/riskmap.db", cfg.Storage.Path)
	}
	if cfg.Storage.Memgraph.Enabled {
		t.Error("memgraph should be disabled by default")
	}
	if cfg.Storage.Memgraph.URI != "bolt://localhost:7687" {
		t.Errorf("memgraph.uri = %q", cfg.Storage.Memgraph.URI)
	}
	if cfg.Server.Listen != ":8080" {
		t.Errorf("server.listen = %q, want :8080", cfg.Server.Listen)
	}
	if cfg.Server.ReadOnly {
		t.Error("server.read_only should be false by default")
	}
	if cfg.Graph.DefaultDepth != 3 {
		t.Errorf("graph.default_depth = %d, want 3", cfg.Graph.DefaultDepth)
	}
	if cfg.Scenario.DefaultProbability != 0.1 {
		t.Errorf("scenario.default_probability = %v, want 0.1", cfg.Scenario.DefaultProbability)
	}
}

func TestLoad_TokenEnvExpansion(t *testing.T) {
	os.Setenv("RISKMAP_TEST_TOKEN", "my-secret-token")
	defer os.Unsetenv("RISKMAP_TEST_TOKEN")

	dir := t.TempDir()
	path := filepath.Join(dir, "riskmap.yaml")
	content := []byte("server:\n  api_token: ${RISKMAP_TEST_TOKEN}\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.APIToken != "my-secret-token" {
		t.Errorf("api_token = %q, want my-secret-token", cfg.Server.APIToken)
	}
}
