package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint32(DefaultEpochs), cfg.Storage.Epochs)
	assert.Equal(t, DefaultShardCount, cfg.Storage.ShardCount)
	assert.Equal(t, "sqlite", cfg.Fallback.Backend)
	assert.True(t, cfg.Storage.Deletable)
	require.NoError(t, cfg.Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")

	cfg := Default()
	cfg.Storage.NodeURLs = []string{"http://node-1:9000", "http://node-2:9000"}
	cfg.Storage.AggregatorURL = "http://aggregator:9000"
	cfg.Ledger.RPCAddr = "http://ledger:9000"
	cfg.Storage.Epochs = 12
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("ledger:\n  rpc_addr: http://file:1\n"), 0o600))
	t.Setenv("BLOBFLOW_LEDGER_RPC_ADDR", "http://env:2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env:2", cfg.Ledger.RPCAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero epochs", func(c *Config) { c.Storage.Epochs = 0 }},
		{"no shards", func(c *Config) { c.Storage.ShardCount = 0 }},
		{"quorum above shards", func(c *Config) { c.Storage.QuorumThreshold = c.Storage.ShardCount + 1 }},
		{"bad backend", func(c *Config) { c.Fallback.Backend = "redis" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
