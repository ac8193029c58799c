package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidateForMonitorMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate in monitor mode: %v", err)
	}
}

func TestValidateRequiresWalletForTrading(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error without a wallet key")
	}
	if !strings.Contains(err.Error(), "wallet") {
		t.Fatalf("expected wallet error, got: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Rollup.Host = ""
	cfg.Matching.Precision = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"mode", "log_level", "rollup", "matching", "redis"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q:\n%v", want, err)
		}
	}
}

func TestLoadAppliesFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "monitor"
log_level = "debug"

[rollup]
host = "http://node.example:3000"

[matching]
precision = 1000000000
fee = 5
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ROLLEX_ROLLUP_HOST", "http://override.example:3000")
	t.Setenv("ROLLEX_MATCHING_FEE_TOKEN_INDEX", "2")
	t.Setenv("ROLLEX_SERVER_PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "monitor" {
		t.Errorf("mode = %q, want monitor", cfg.Mode)
	}
	if cfg.Rollup.Host != "http://override.example:3000" {
		t.Errorf("env override lost: rollup host = %q", cfg.Rollup.Host)
	}
	if cfg.Matching.Fee != 5 {
		t.Errorf("matching fee = %d, want 5 from file", cfg.Matching.Fee)
	}
	if cfg.Matching.FeeTokenIndex != 2 {
		t.Errorf("fee token index = %d, want 2 from env", cfg.Matching.FeeTokenIndex)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server port = %d, want 9100 from env", cfg.Server.Port)
	}
	// Untouched sections keep defaults.
	if cfg.Postgres.PoolMaxConns != 10 {
		t.Errorf("postgres pool_max_conns = %d, want default 10", cfg.Postgres.PoolMaxConns)
	}
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Rollup.AdminKey = "1234567"
	cfg.Postgres.Password = "hunter2"
	cfg.S3.SecretKey = "s3secret"

	red := RedactedConfig(&cfg)

	if red.Wallet.PrivateKey != "***" || red.Rollup.AdminKey != "***" ||
		red.Postgres.Password != "***" || red.S3.SecretKey != "***" {
		t.Error("secrets not redacted")
	}
	if cfg.Wallet.PrivateKey != "deadbeef" {
		t.Error("original config mutated")
	}
	// Empty secrets stay empty rather than becoming "***".
	if red.Redis.Password != "" {
		t.Errorf("empty secret became %q", red.Redis.Password)
	}
}
