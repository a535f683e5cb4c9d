package action

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/walrusagents/blobflow/sdk/adapters/signer"
	"github.com/walrusagents/blobflow/sdk/adapters/storage"
	"github.com/walrusagents/blobflow/sdk/config"
	"github.com/walrusagents/blobflow/sdk/fallback"
	"github.com/walrusagents/blobflow/sdk/log"
)

// NewStorageClient builds the HTTP storage client described by cfg.
func NewStorageClient(cfg config.Config, logger log.Logger) (*storage.HTTPClient, error) {
	return storage.NewHTTPClient(storage.HTTPConfig{
		NodeURLs:          cfg.Storage.NodeURLs,
		AggregatorURL:     cfg.Storage.AggregatorURL,
		ShardCount:        cfg.Storage.ShardCount,
		MaxBlobSize:       cfg.Storage.MaxBlobSize,
		Parallelism:       cfg.Storage.UploadParallelism,
		RequestsPerSecond: cfg.Storage.RequestsPerSecond,
		Timeout:           time.Duration(cfg.Storage.Timeout) * time.Second,
		MaxRetries:        cfg.Storage.MaxRetries,
		Quorum:            storage.ThresholdQuorum{Threshold: cfg.Storage.QuorumThreshold},
		Logger:            logger,
	})
}

// NewFallbackStore opens the fallback backend described by cfg.
func NewFallbackStore(cfg config.Config) (fallback.Store, error) {
	return fallback.New(fallback.Config{
		Backend: cfg.Fallback.Backend,
		Path:    cfg.Fallback.Path,
		TTL:     time.Duration(cfg.Fallback.TTL) * time.Minute,
	})
}

// NewLocalSigner derives the signing key from the mnemonic held in the
// environment variable named by cfg.Account.MnemonicEnv and submits through
// the ledger JSON-RPC endpoint.
func NewLocalSigner(cfg config.Config, logger log.Logger) (*signer.LocalSigner, error) {
	env := cfg.Account.MnemonicEnv
	if env == "" {
		env = config.DefaultMnemonicEnv
	}
	mnemonic := strings.TrimSpace(os.Getenv(env))
	if mnemonic == "" {
		return nil, fmt.Errorf("%w: export %s", ErrNoMnemonic, env)
	}
	sub, err := signer.NewRPCSubmitter(signer.RPCConfig{
		Addr:       cfg.Ledger.RPCAddr,
		Timeout:    time.Duration(cfg.Ledger.Timeout) * time.Second,
		MaxRetries: cfg.Ledger.MaxRetries,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger submitter: %w", err)
	}
	return signer.NewLocalSigner(mnemonic, sub, logger)
}

// NewDefaultClient wires the HTTP storage client and the configured fallback
// store. sg may be nil and connected later.
func NewDefaultClient(ctx context.Context, cfg config.Config, sg signer.Signer, logger log.Logger) (*ClientImpl, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sc, err := NewStorageClient(cfg, logger)
	if err != nil {
		logger.Error(ctx, "Failed to create storage client", "error", err)
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	store, err := NewFallbackStore(cfg)
	if err != nil {
		logger.Error(ctx, "Failed to open fallback store", "error", err)
		return nil, fmt.Errorf("failed to open fallback store: %w", err)
	}

	client, err := NewClient(cfg, sc, store, sg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return client, nil
}
