package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Chain.Vault = "0x000000000000000000000000000000000000dEaD"
	cfg.Chain.EVM.RPCURL = "https://rpc.example.com"
	cfg.Wallet.PrivateKey = "abc123"
	return cfg
}

func TestValidateAcceptsFilledDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on a filled default config: %v", err)
	}
}

func TestValidateCatchesProblems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Chain.Backend = "cosmos" }, "unknown backend"},
		{"missing vault", func(c *Config) { c.Chain.Vault = "" }, "vault must not be empty"},
		{"missing rpc", func(c *Config) { c.Chain.EVM.RPCURL = "" }, "rpc_url"},
		{"no key source", func(c *Config) { c.Wallet.PrivateKey = "" }, "private_key or encrypted_key_path"},
		{"encrypted key without password", func(c *Config) {
			c.Wallet.PrivateKey = ""
			c.Wallet.EncryptedKeyPath = "/tmp/key.json"
		}, "key_password is required"},
		{"zero poll interval", func(c *Config) { c.Keeper.PollInterval = duration{} }, "poll_interval"},
		{"zero attempts", func(c *Config) { c.Fees.MaxAttempts = 0 }, "max_attempts"},
		{"zero twap slices", func(c *Config) { c.TWAP.Slices = 0 }, "slices"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"svm without program", func(c *Config) {
			c.Chain.Backend = "svm"
			c.Chain.SVM.RPCURL = "https://rpc.example.com"
		}, "program_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
log_level = "debug"

[chain]
backend = "evm"
vault = "0x000000000000000000000000000000000000dEaD"

[chain.evm]
rpc_url = "https://rpc.example.com"
chain_id = 10

[keeper]
poll_interval = "5s"

[wallet]
private_key = "filekey"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SENTINEL_WALLET_PRIVATE_KEY", "envkey")
	t.Setenv("SENTINEL_KEEPER_MAX_IN_FLIGHT", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Chain.EVM.ChainID != 10 {
		t.Errorf("ChainID = %d, want 10 from file", cfg.Chain.EVM.ChainID)
	}
	if cfg.Keeper.PollInterval.Duration != 5*time.Second {
		t.Errorf("PollInterval = %s, want 5s from file", cfg.Keeper.PollInterval.Duration)
	}
	if cfg.Wallet.PrivateKey != "envkey" {
		t.Errorf("PrivateKey = %q, env override must win over the file", cfg.Wallet.PrivateKey)
	}
	if cfg.Keeper.MaxInFlight != 3 {
		t.Errorf("MaxInFlight = %d, want 3 from env", cfg.Keeper.MaxInFlight)
	}
	// Untouched values keep their defaults.
	if cfg.Fees.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want default 3", cfg.Fees.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on loaded config: %v", err)
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	if red.Wallet.PrivateKey != "***" {
		t.Errorf("private key not redacted: %q", red.Wallet.PrivateKey)
	}
	if red.Postgres.Password != "***" {
		t.Errorf("postgres password not redacted: %q", red.Postgres.Password)
	}
	if red.Notify.TelegramToken != "***" {
		t.Errorf("telegram token not redacted: %q", red.Notify.TelegramToken)
	}
	// The original must be untouched.
	if cfg.Wallet.PrivateKey != "abc123" {
		t.Error("RedactedConfig mutated the original")
	}
}
