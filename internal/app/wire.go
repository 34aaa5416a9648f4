package app

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/sentinelmarkets/sentinel-keeper/internal/cache/redis"
	"github.com/sentinelmarkets/sentinel-keeper/internal/chain/evm"
	"github.com/sentinelmarkets/sentinel-keeper/internal/chain/svm"
	"github.com/sentinelmarkets/sentinel-keeper/internal/config"
	"github.com/sentinelmarkets/sentinel-keeper/internal/crypto"
	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
	"github.com/sentinelmarkets/sentinel-keeper/internal/executor"
	"github.com/sentinelmarkets/sentinel-keeper/internal/keeper"
	"github.com/sentinelmarkets/sentinel-keeper/internal/metrics"
	"github.com/sentinelmarkets/sentinel-keeper/internal/notify"
	"github.com/sentinelmarkets/sentinel-keeper/internal/store/postgres"
	"github.com/sentinelmarkets/sentinel-keeper/internal/strategy"
)

// notifyStopTimeout bounds the final shutdown notification.
const notifyStopTimeout = 10 * time.Second

// Dependencies bundles everything the running keeper needs. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Client    domain.ChainClient
	Scheduler *keeper.Scheduler
	Metrics   *metrics.Metrics
	Notifier  *notify.Notifier

	Store  domain.ExecutionStore // nil when postgres is disabled
	Locker domain.OrderLocker    // nil when redis is disabled
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
	}

	// --- Signing key ---
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load key: %w", err)
	}

	// --- Chain client ---
	client, err := buildChainClient(cfg, keyHex, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: connect: %w", err)
	}
	closers = append(closers, func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = client.Disconnect(disconnectCtx)
		cancel()
	})
	deps.Client = client

	// --- PostgreSQL execution record store (optional) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Store = postgres.NewExecutionStore(pgClient.Pool())
	}

	// --- Redis cross-replica order lock (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Locker = redis.NewLockManager(redisClient)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Execution pipeline ---
	policy := executor.Policy{
		ConfirmTimeout:              cfg.Fees.ConfirmTimeout.Duration,
		MaxAttempts:                 cfg.Fees.MaxAttempts,
		FeeBumpBps:                  cfg.Fees.FeeBumpBps,
		MaxPriorityFeeMicroLamports: cfg.Fees.MaxPriorityFee,
	}
	if cfg.Fees.MaxGasPriceGwei > 0 {
		policy.MaxGasPriceWei = new(big.Int).Mul(
			big.NewInt(cfg.Fees.MaxGasPriceGwei), big.NewInt(1_000_000_000))
	}

	disp := executor.NewDispatcher(client, executor.DispatcherConfig{
		Vault:       cfg.Chain.Vault,
		Policy:      policy,
		MaxInFlight: int64(cfg.Keeper.MaxInFlight),
		LockTTL:     cfg.Redis.LockTTL.Duration,
	}, deps.Locker, deps.Store, deps.Notifier, deps.Metrics, logger)

	table := strategy.NewTable(strategy.TWAPConfig{Slices: cfg.TWAP.Slices})

	deps.Scheduler = keeper.New(client, table, disp, keeper.Config{
		Vault:        cfg.Chain.Vault,
		PollInterval: cfg.Keeper.PollInterval.Duration,
		ErrorBackoff: cfg.Keeper.ErrorBackoff.Duration,
		DrainTimeout: cfg.Keeper.DrainTimeout.Duration,
	}, deps.Metrics, logger)

	return deps, cleanup, nil
}

// buildChainClient constructs the configured backend from the resolved hex
// key.
func buildChainClient(cfg *config.Config, keyHex string, logger *slog.Logger) (domain.ChainClient, error) {
	switch strings.ToLower(cfg.Chain.Backend) {
	case "evm":
		key, err := ethcrypto.HexToECDSA(keyHex)
		if err != nil {
			return nil, fmt.Errorf("parse secp256k1 key: %w", err)
		}
		evmCfg := evm.ClientConfig{
			RPCURL:      cfg.Chain.EVM.RPCURL,
			ChainID:     cfg.Chain.EVM.ChainID,
			ChainName:   cfg.Chain.Name,
			PrivateKey:  key,
			PairFeeds:   cfg.Chain.EVM.PairFeeds,
			MaxPriceAge: cfg.Chain.MaxPriceAge.Duration,
		}
		if cfg.Chain.EVM.RelayURL != "" {
			evmCfg.Relay = evm.NewRelayClient(cfg.Chain.EVM.RelayURL, key)
		}
		return evm.New(evmCfg, logger)

	case "svm":
		key, err := ed25519KeyFromHex(keyHex)
		if err != nil {
			return nil, fmt.Errorf("parse ed25519 key: %w", err)
		}
		return svm.NewClient(svm.ClientConfig{
			RPCURL:           cfg.Chain.SVM.RPCURL,
			WSURL:            cfg.Chain.SVM.WSURL,
			Cluster:          cfg.Chain.SVM.Cluster,
			ChainName:        cfg.Chain.Name,
			ProgramID:        cfg.Chain.SVM.ProgramID,
			Key:              key,
			PairFeeds:        cfg.Chain.SVM.PairFeeds,
			ComputeUnitLimit: cfg.Chain.SVM.ComputeUnitLimit,
			MinPriorityFee:   cfg.Chain.SVM.MinPriorityFee,
			MaxPriceAge:      cfg.Chain.MaxPriceAge.Duration,
		}, logger)

	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Chain.Backend)
	}
}

// ed25519KeyFromHex accepts a 32-byte seed or a full 64-byte private key.
func ed25519KeyFromHex(keyHex string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, err
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}
