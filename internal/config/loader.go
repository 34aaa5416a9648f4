package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SENTINEL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SENTINEL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.Backend, "SENTINEL_CHAIN_BACKEND")
	setStr(&cfg.Chain.Name, "SENTINEL_CHAIN_NAME")
	setStr(&cfg.Chain.Vault, "SENTINEL_CHAIN_VAULT")
	setDuration(&cfg.Chain.MaxPriceAge, "SENTINEL_CHAIN_MAX_PRICE_AGE")
	setStr(&cfg.Chain.EVM.RPCURL, "SENTINEL_CHAIN_EVM_RPC_URL")
	setInt64(&cfg.Chain.EVM.ChainID, "SENTINEL_CHAIN_EVM_CHAIN_ID")
	setStr(&cfg.Chain.EVM.RelayURL, "SENTINEL_CHAIN_EVM_RELAY_URL")
	setStr(&cfg.Chain.SVM.RPCURL, "SENTINEL_CHAIN_SVM_RPC_URL")
	setStr(&cfg.Chain.SVM.WSURL, "SENTINEL_CHAIN_SVM_WS_URL")
	setStr(&cfg.Chain.SVM.Cluster, "SENTINEL_CHAIN_SVM_CLUSTER")
	setStr(&cfg.Chain.SVM.ProgramID, "SENTINEL_CHAIN_SVM_PROGRAM_ID")
	setUint64(&cfg.Chain.SVM.MinPriorityFee, "SENTINEL_CHAIN_SVM_MIN_PRIORITY_FEE")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SENTINEL_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SENTINEL_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SENTINEL_WALLET_KEY_PASSWORD")

	// ── Keeper ──
	setDuration(&cfg.Keeper.PollInterval, "SENTINEL_KEEPER_POLL_INTERVAL")
	setDuration(&cfg.Keeper.ErrorBackoff, "SENTINEL_KEEPER_ERROR_BACKOFF")
	setDuration(&cfg.Keeper.DrainTimeout, "SENTINEL_KEEPER_DRAIN_TIMEOUT")
	setInt(&cfg.Keeper.MaxInFlight, "SENTINEL_KEEPER_MAX_IN_FLIGHT")

	// ── Fees ──
	setDuration(&cfg.Fees.ConfirmTimeout, "SENTINEL_FEES_CONFIRM_TIMEOUT")
	setInt(&cfg.Fees.MaxAttempts, "SENTINEL_FEES_MAX_ATTEMPTS")
	setInt64(&cfg.Fees.FeeBumpBps, "SENTINEL_FEES_FEE_BUMP_BPS")
	setInt64(&cfg.Fees.MaxGasPriceGwei, "SENTINEL_FEES_MAX_GAS_PRICE_GWEI")
	setUint64(&cfg.Fees.MaxPriorityFee, "SENTINEL_FEES_MAX_PRIORITY_FEE")

	// ── TWAP ──
	setInt(&cfg.TWAP.Slices, "SENTINEL_TWAP_SLICES")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SENTINEL_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SENTINEL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SENTINEL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SENTINEL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SENTINEL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SENTINEL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SENTINEL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SENTINEL_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SENTINEL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SENTINEL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SENTINEL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SENTINEL_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SENTINEL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SENTINEL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SENTINEL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SENTINEL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SENTINEL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SENTINEL_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "SENTINEL_REDIS_LOCK_TTL")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "SENTINEL_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "SENTINEL_METRICS_ADDR")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SENTINEL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SENTINEL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SENTINEL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SENTINEL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "SENTINEL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
