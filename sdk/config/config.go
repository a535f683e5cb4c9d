package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "BLOBFLOW"

	DefaultEpochs            = 5
	DefaultShardCount        = 10
	DefaultMaxBlobSize       = 10 << 20
	DefaultUploadParallelism = 8
	DefaultRequestsPerSecond = 50
	DefaultStorageTimeout    = 30
	DefaultStorageRetries    = 3
	DefaultLedgerTimeout     = 20
	DefaultLedgerRetries     = 3
	DefaultFallbackBackend   = "sqlite"
	DefaultFallbackPath      = "blobflow-fallback.db"
	DefaultFallbackTTL       = 24 * 60
	DefaultMnemonicEnv       = "BLOBFLOW_MNEMONIC"
)

// AccountConfig identifies the wallet that owns registered blobs.
type AccountConfig struct {
	// Address overrides the owner address; empty means "derive from the key".
	Address string `mapstructure:"address" yaml:"address"`
	KeyName string `mapstructure:"key_name" yaml:"key_name"`
	// MnemonicEnv names the environment variable holding the signing mnemonic.
	// The mnemonic itself is never written to the config file.
	MnemonicEnv string `mapstructure:"mnemonic_env" yaml:"mnemonic_env"`
}

// StorageConfig covers the blob storage network.
type StorageConfig struct {
	NodeURLs          []string `mapstructure:"node_urls" yaml:"node_urls"`
	AggregatorURL     string   `mapstructure:"aggregator_url" yaml:"aggregator_url"`
	Epochs            uint32   `mapstructure:"epochs" yaml:"epochs"`
	Deletable         bool     `mapstructure:"deletable" yaml:"deletable"`
	ShardCount        int      `mapstructure:"shard_count" yaml:"shard_count"`
	QuorumThreshold   int      `mapstructure:"quorum_threshold" yaml:"quorum_threshold"`
	MaxBlobSize       int64    `mapstructure:"max_blob_size" yaml:"max_blob_size"`
	UploadParallelism int      `mapstructure:"upload_parallelism" yaml:"upload_parallelism"`
	RequestsPerSecond int      `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Timeout           int      `mapstructure:"timeout" yaml:"timeout"` // seconds
	MaxRetries        uint64   `mapstructure:"max_retries" yaml:"max_retries"`
}

// LedgerConfig covers the JSON-RPC endpoint that receives signed transactions.
type LedgerConfig struct {
	RPCAddr    string `mapstructure:"rpc_addr" yaml:"rpc_addr"`
	Timeout    int    `mapstructure:"timeout" yaml:"timeout"` // seconds
	MaxRetries uint64 `mapstructure:"max_retries" yaml:"max_retries"`
}

// FallbackConfig covers the local metadata cache used when the storage
// network cannot be reached.
type FallbackConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // sqlite | memory
	Path    string `mapstructure:"path" yaml:"path"`
	TTL     int    `mapstructure:"ttl" yaml:"ttl"` // minutes, memory backend only
}

type Config struct {
	LogLevel string         `mapstructure:"log_level" yaml:"log_level"`
	Account  AccountConfig  `mapstructure:"account" yaml:"account"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Ledger   LedgerConfig   `mapstructure:"ledger" yaml:"ledger"`
	Fallback FallbackConfig `mapstructure:"fallback" yaml:"fallback"`
}

// Default returns a config with every default applied and no endpoints.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("account.address", "")
	v.SetDefault("account.key_name", "default")
	v.SetDefault("account.mnemonic_env", DefaultMnemonicEnv)
	v.SetDefault("storage.node_urls", []string{})
	v.SetDefault("storage.aggregator_url", "")
	v.SetDefault("storage.epochs", DefaultEpochs)
	v.SetDefault("storage.deletable", true)
	v.SetDefault("storage.shard_count", DefaultShardCount)
	v.SetDefault("storage.quorum_threshold", 0)
	v.SetDefault("storage.max_blob_size", DefaultMaxBlobSize)
	v.SetDefault("storage.upload_parallelism", DefaultUploadParallelism)
	v.SetDefault("storage.requests_per_second", DefaultRequestsPerSecond)
	v.SetDefault("storage.timeout", DefaultStorageTimeout)
	v.SetDefault("storage.max_retries", DefaultStorageRetries)
	v.SetDefault("ledger.rpc_addr", "")
	v.SetDefault("ledger.timeout", DefaultLedgerTimeout)
	v.SetDefault("ledger.max_retries", DefaultLedgerRetries)
	v.SetDefault("fallback.backend", DefaultFallbackBackend)
	v.SetDefault("fallback.path", DefaultFallbackPath)
	v.SetDefault("fallback.ttl", DefaultFallbackTTL)
}

// Load reads the YAML config at path and applies BLOBFLOW_* environment
// overrides (e.g. BLOBFLOW_LEDGER_RPC_ADDR). An empty path loads defaults and
// environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise surface as confusing failures
// halfway through a flow.
func (c Config) Validate() error {
	if c.Storage.Epochs == 0 {
		return fmt.Errorf("storage.epochs must be greater than zero")
	}
	if c.Storage.ShardCount < 1 {
		return fmt.Errorf("storage.shard_count must be at least 1")
	}
	if c.Storage.QuorumThreshold < 0 || c.Storage.QuorumThreshold > c.Storage.ShardCount {
		return fmt.Errorf("storage.quorum_threshold must be between 0 and shard_count (%d)", c.Storage.ShardCount)
	}
	if c.Storage.MaxBlobSize <= 0 {
		return fmt.Errorf("storage.max_blob_size must be positive")
	}
	switch c.Fallback.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("fallback.backend must be sqlite or memory, got %q", c.Fallback.Backend)
	}
	return nil
}

// Save writes cfg as YAML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
