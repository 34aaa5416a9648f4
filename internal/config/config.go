// Package config defines the top-level configuration for the keeper and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SENTINEL_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Wallet   WalletConfig   `toml:"wallet"`
	Keeper   KeeperConfig   `toml:"keeper"`
	Fees     FeesConfig     `toml:"fees"`
	TWAP     TWAPConfig     `toml:"twap"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig selects and parameterizes the chain backend.
type ChainConfig struct {
	// Backend selects the chain family: "evm" or "svm".
	Backend string `toml:"backend"`
	// Name is the human-readable chain name used in logs and records.
	Name string `toml:"name"`
	// Vault is the vault contract address (EVM) or vault account (SVM).
	Vault string `toml:"vault"`
	// MaxPriceAge rejects oracle quotes older than this.
	MaxPriceAge duration `toml:"max_price_age"`

	EVM EVMConfig `toml:"evm"`
	SVM SVMConfig `toml:"svm"`
}

// EVMConfig holds EVM backend parameters.
type EVMConfig struct {
	RPCURL  string `toml:"rpc_url"`
	ChainID int64  `toml:"chain_id"`
	// RelayURL, when set, routes execution transactions through a
	// Flashbots-compatible private relay instead of the public mempool.
	RelayURL string `toml:"relay_url"`
	// PairFeeds maps "BASE/QUOTE" pairs to aggregator contract addresses.
	PairFeeds map[string]string `toml:"pair_feeds"`
}

// SVMConfig holds SVM backend parameters.
type SVMConfig struct {
	RPCURL  string `toml:"rpc_url"`
	WSURL   string `toml:"ws_url"`
	Cluster string `toml:"cluster"`
	// ProgramID is the vault program's address.
	ProgramID string `toml:"program_id"`
	// PairFeeds maps "BASE/QUOTE" pairs to oracle price accounts.
	PairFeeds        map[string]string `toml:"pair_feeds"`
	ComputeUnitLimit uint32            `toml:"compute_unit_limit"`
	// MinPriorityFee floors the suggested priority fee, in micro-lamports
	// per compute unit.
	MinPriorityFee uint64 `toml:"min_priority_fee"`
}

// WalletConfig holds the keeper's signing key material.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// KeeperConfig holds the poll loop parameters.
type KeeperConfig struct {
	PollInterval duration `toml:"poll_interval"`
	ErrorBackoff duration `toml:"error_backoff"`
	DrainTimeout duration `toml:"drain_timeout"`
	// MaxInFlight caps concurrent execution coordinators.
	MaxInFlight int `toml:"max_in_flight"`
}

// FeesConfig holds submission and escalation parameters.
type FeesConfig struct {
	ConfirmTimeout duration `toml:"confirm_timeout"`
	MaxAttempts    int      `toml:"max_attempts"`
	// FeeBumpBps is the per-retry fee increase in basis points.
	FeeBumpBps int64 `toml:"fee_bump_bps"`
	// MaxGasPriceGwei caps escalated gas prices on EVM. Zero disables the cap.
	MaxGasPriceGwei int64 `toml:"max_gas_price_gwei"`
	// MaxPriorityFee caps escalated priority fees on SVM, in micro-lamports
	// per compute unit. Zero disables the cap.
	MaxPriorityFee uint64 `toml:"max_priority_fee"`
}

// TWAPConfig holds time-weighted execution parameters.
type TWAPConfig struct {
	// Slices is the number of intervals a TWAP order's lifetime is split into.
	Slices int `toml:"slices"`
}

// PostgresConfig holds PostgreSQL connection parameters for the execution
// record store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the cross-replica order
// lock.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// LockTTL bounds how long a replica may hold an order lock.
	LockTTL duration `toml:"lock_ttl"`
}

// MetricsConfig holds the Prometheus endpoint parameters.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			Backend:     "evm",
			Name:        "ethereum",
			MaxPriceAge: duration{time.Hour},
			EVM: EVMConfig{
				ChainID:   1,
				PairFeeds: map[string]string{},
			},
			SVM: SVMConfig{
				Cluster:          "mainnet-beta",
				PairFeeds:        map[string]string{},
				ComputeUnitLimit: 400_000,
				MinPriorityFee:   1_000,
			},
		},
		Keeper: KeeperConfig{
			PollInterval: duration{12 * time.Second},
			ErrorBackoff: duration{time.Minute},
			DrainTimeout: duration{2 * time.Minute},
			MaxInFlight:  8,
		},
		Fees: FeesConfig{
			ConfirmTimeout: duration{time.Minute},
			MaxAttempts:    3,
			FeeBumpBps:     1250,
		},
		TWAP: TWAPConfig{
			Slices: 4,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "sentinel",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			LockTTL:    duration{5 * time.Minute},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Notify: NotifyConfig{
			Events: []string{"order_executed", "execution_failed", "execution_timeout"},
		},
		LogLevel: "info",
	}
}

// validBackends enumerates the accepted values for Chain.Backend.
var validBackends = map[string]bool{
	"evm": true,
	"svm": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Chain
	backend := strings.ToLower(c.Chain.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Sprintf("chain: unknown backend %q (valid: evm, svm)", c.Chain.Backend))
	}
	if c.Chain.Vault == "" {
		errs = append(errs, "chain: vault must not be empty")
	}
	switch backend {
	case "evm":
		if c.Chain.EVM.RPCURL == "" {
			errs = append(errs, "chain.evm: rpc_url must not be empty")
		}
		if c.Chain.EVM.ChainID <= 0 {
			errs = append(errs, fmt.Sprintf("chain.evm: chain_id must be positive, got %d", c.Chain.EVM.ChainID))
		}
	case "svm":
		if c.Chain.SVM.RPCURL == "" {
			errs = append(errs, "chain.svm: rpc_url must not be empty")
		}
		if c.Chain.SVM.ProgramID == "" {
			errs = append(errs, "chain.svm: program_id must not be empty")
		}
	}

	// Wallet
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Keeper
	if c.Keeper.PollInterval.Duration <= 0 {
		errs = append(errs, "keeper: poll_interval must be > 0")
	}
	if c.Keeper.MaxInFlight < 1 {
		errs = append(errs, "keeper: max_in_flight must be >= 1")
	}

	// Fees
	if c.Fees.ConfirmTimeout.Duration <= 0 {
		errs = append(errs, "fees: confirm_timeout must be > 0")
	}
	if c.Fees.MaxAttempts < 1 {
		errs = append(errs, "fees: max_attempts must be >= 1")
	}
	if c.Fees.FeeBumpBps < 0 {
		errs = append(errs, "fees: fee_bump_bps must be >= 0")
	}

	// TWAP
	if c.TWAP.Slices < 1 {
		errs = append(errs, "twap: slices must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics: addr must not be empty when enabled")
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
