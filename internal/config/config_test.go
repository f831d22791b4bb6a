package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentlink.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logger.Level != "info" || cfg.Logger.Format != "json" {
		t.Fatalf("unexpected logger defaults: %+v", cfg.Logger)
	}
	if cfg.Bus.Driver != "memory" {
		t.Fatalf("unexpected bus driver: %s", cfg.Bus.Driver)
	}
	if cfg.Archive.Driver != "memory" || cfg.Archive.MaxRecords != 4096 {
		t.Fatalf("unexpected archive defaults: %+v", cfg.Archive)
	}
	if cfg.Web3.PrivateKeyEnv != "AGENTLINK_PRIVATE_KEY" {
		t.Fatalf("unexpected private key env: %s", cfg.Web3.PrivateKeyEnv)
	}
	if cfg.Agents.First.Name != "Agent1" || cfg.Agents.Second.Name != "Agent2" {
		t.Fatalf("unexpected agent names: %+v", cfg.Agents)
	}
	if cfg.Agents.Random.IntervalSeconds != 2 || len(cfg.Agents.Random.Words) == 0 {
		t.Fatalf("unexpected random defaults: %+v", cfg.Agents.Random)
	}
	if cfg.Agents.Balance.IntervalSeconds != 10 {
		t.Fatalf("unexpected balance defaults: %+v", cfg.Agents.Balance)
	}
	if cfg.Agents.Transfer.DefaultTarget == "" {
		t.Fatalf("expected default transfer target")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"logger": {"level": "debug", "format": "text"},
		"bus": {"driver": "redis", "redis": {"address": "localhost:6379", "key_prefix": "custom"}},
		"archive": {"driver": "mysql", "dsn": "user:pass@tcp(localhost:3306)/agentlink"},
		"agents": {
			"first": {"name": "Alice"},
			"second": {"name": "Bob"},
			"random": {"interval_seconds": 5, "words": ["alpha", "beta", "gamma"]}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logger.Level != "debug" || cfg.Logger.Format != "text" {
		t.Fatalf("unexpected logger config: %+v", cfg.Logger)
	}
	if cfg.Bus.Driver != "redis" || cfg.Bus.Redis.Address != "localhost:6379" {
		t.Fatalf("unexpected bus config: %+v", cfg.Bus)
	}
	if cfg.Bus.Redis.KeyPrefix != "custom" {
		t.Fatalf("unexpected key prefix: %s", cfg.Bus.Redis.KeyPrefix)
	}
	if cfg.Archive.Driver != "mysql" {
		t.Fatalf("unexpected archive driver: %s", cfg.Archive.Driver)
	}
	if cfg.Agents.First.Name != "Alice" || cfg.Agents.Second.Name != "Bob" {
		t.Fatalf("unexpected agent names: %+v", cfg.Agents)
	}
	if cfg.Agents.Random.IntervalSeconds != 5 || len(cfg.Agents.Random.Words) != 3 {
		t.Fatalf("unexpected random config: %+v", cfg.Agents.Random)
	}
}

func TestLoadResolvesChainsFile(t *testing.T) {
	path := writeConfig(t, `{"web3": {"enabled": true, "chains_file": "chains.yaml"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(filepath.Dir(path), "chains.yaml")
	if cfg.Web3.ChainsFile != want {
		t.Fatalf("expected %s, got %s", want, cfg.Web3.ChainsFile)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, `{not json`)); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}
