package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	xerrors "ProjectAnchor/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "anchor.yaml", `
server:
  address: "127.0.0.1:9000"
  read_timeout: 3s
web3:
  chain_config: chain.yaml
bridge:
  enabled: true
  networks:
    testnet: "https://anchor.test.example"
logging:
  audit:
    path: logs/audit.log
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Address != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Server.ReadTimeout.Std() != 3*time.Second {
		t.Fatalf("unexpected read timeout: %s", cfg.Server.ReadTimeout.Std())
	}
	if cfg.Server.WriteTimeout.Std() != 15*time.Second {
		t.Fatalf("write timeout default not applied: %s", cfg.Server.WriteTimeout.Std())
	}
	if cfg.Storage.Driver != "memory" || cfg.Ledger.Clock != "sequence" {
		t.Fatalf("unexpected storage/ledger defaults: %+v %+v", cfg.Storage, cfg.Ledger)
	}
	if cfg.Web3.ChainConfig != filepath.Join(dir, "chain.yaml") {
		t.Fatalf("chain config not resolved: %s", cfg.Web3.ChainConfig)
	}
	if cfg.Logging.Audit.Path != filepath.Join(dir, "logs/audit.log") {
		t.Fatalf("audit path not resolved: %s", cfg.Logging.Audit.Path)
	}
	if cfg.Runtime.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("data dir default not applied: %s", cfg.Runtime.DataDir)
	}
	if cfg.Bridge.Submitter != "host" || cfg.Bridge.Workers != 2 || cfg.Bridge.MaxAttempts != 3 {
		t.Fatalf("unexpected bridge defaults: %+v", cfg.Bridge)
	}
	if cfg.Bridge.Networks["testnet"] != "https://anchor.test.example" {
		t.Fatalf("networks lost: %+v", cfg.Bridge.Networks)
	}
	if cfg.Registry.Admin != "operator" {
		t.Fatalf("admin should fall back to operator identity, got %q", cfg.Registry.Admin)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "anchor.json", `{"storage":{"driver":"Redis","redis":{"address":"127.0.0.1:6379"}},"server":{"shutdown_timeout":"2s"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.Driver != "redis" {
		t.Fatalf("driver should be normalised, got %s", cfg.Storage.Driver)
	}
	if cfg.Storage.Redis.Prefix != "anchor:kv:" {
		t.Fatalf("redis prefix default not applied: %s", cfg.Storage.Redis.Prefix)
	}
	if cfg.Server.ShutdownTimeout.Std() != 2*time.Second {
		t.Fatalf("unexpected shutdown timeout: %s", cfg.Server.ShutdownTimeout.Std())
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"mysql.yaml":  "storage:\n  driver: mysql\n",
		"driver.yaml": "storage:\n  driver: leveldb\n",
		"clock.yaml":  "ledger:\n  clock: wallclock\n",
		"bridge.yaml": "bridge:\n  enabled: true\n  submitter: carrier-pigeon\n",
		"format.toml": "server = 1\n",
	}
	for name, content := range cases {
		path := writeFile(t, dir, name, content)
		_, err := Load(path)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
			t.Fatalf("%s: unexpected code %s", name, xerrors.CodeOf(err))
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "anchor.yaml", "server:\n  address: \":8080\"\n")
	t.Setenv("ANCHOR_LISTEN", ":9999")
	t.Setenv("ANCHOR_STORAGE_DRIVER", "mysql")
	t.Setenv("ANCHOR_MYSQL_DSN", "anchor:secret@tcp(127.0.0.1:3306)/anchor")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Address != ":9999" || cfg.Storage.Driver != "mysql" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Server, cfg.Storage)
	}

	t.Setenv(EnvConfigPath, path)
	if ResolvePath() != path {
		t.Fatalf("ResolvePath should honour %s", EnvConfigPath)
	}
}
