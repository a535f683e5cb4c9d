package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/walrusagents/blobflow/sdk/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

var forceInit bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a blobflow configuration file",
	Long: `Create a configuration file through an interactive setup:

1. Storage node and aggregator endpoints
2. Ledger JSON-RPC endpoint
3. Storage epochs and deletability
4. Fallback store backend

The signing mnemonic is never written to disk. Export it in the environment
variable named by account.mnemonic_env (BLOBFLOW_MNEMONIC by default).

Example:
  blobflow init
  blobflow init --config ./blobflow.yml --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(defaultConfigDir, defaultConfigFileName)
		if cfgFile != "" {
			path = cfgFile
		}
		path = processConfigPath(path)

		if fileExists(path) && !forceInit {
			return fmt.Errorf("config already exists at %s\nUse --force to overwrite", path)
		}

		cfg, err := gatherConfig(config.Default())
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}

		fmt.Printf("Config written to %s\n", path)
		fmt.Printf("Export your mnemonic in %s before running 'blobflow register'.\n", cfg.Account.MnemonicEnv)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")
}

// gatherConfig fills base through interactive prompts.
func gatherConfig(cfg config.Config) (config.Config, error) {
	var nodes string
	if err := survey.AskOne(&survey.Input{
		Message: "Storage node URLs (comma separated):",
		Help:    "Each sliver is uploaded to one of these nodes",
	}, &nodes, survey.WithValidator(survey.Required)); err != nil {
		return cfg, fmt.Errorf("failed to read node URLs: %w", err)
	}
	cfg.Storage.NodeURLs = splitList(nodes)

	if err := survey.AskOne(&survey.Input{
		Message: "Aggregator URL (optional):",
		Default: cfg.Storage.AggregatorURL,
	}, &cfg.Storage.AggregatorURL); err != nil {
		return cfg, fmt.Errorf("failed to read aggregator URL: %w", err)
	}

	if err := survey.AskOne(&survey.Input{
		Message: "Ledger JSON-RPC address:",
		Default: cfg.Ledger.RPCAddr,
	}, &cfg.Ledger.RPCAddr, survey.WithValidator(survey.Required)); err != nil {
		return cfg, fmt.Errorf("failed to read ledger address: %w", err)
	}

	if err := survey.AskOne(&survey.Input{
		Message: "Owner address (leave empty to use the signing key):",
		Default: cfg.Account.Address,
	}, &cfg.Account.Address); err != nil {
		return cfg, fmt.Errorf("failed to read owner address: %w", err)
	}

	epochs := strconv.FormatUint(uint64(cfg.Storage.Epochs), 10)
	if err := survey.AskOne(&survey.Input{
		Message: "Storage epochs:",
		Default: epochs,
	}, &epochs, survey.WithValidator(validateEpochs)); err != nil {
		return cfg, fmt.Errorf("failed to read epochs: %w", err)
	}
	n, _ := strconv.ParseUint(epochs, 10, 32)
	cfg.Storage.Epochs = uint32(n)

	if err := survey.AskOne(&survey.Confirm{
		Message: "Make registered blobs deletable?",
		Default: cfg.Storage.Deletable,
	}, &cfg.Storage.Deletable); err != nil {
		return cfg, fmt.Errorf("failed to read deletable: %w", err)
	}

	if err := survey.AskOne(&survey.Select{
		Message: "Fallback store backend:",
		Options: []string{"sqlite", "memory"},
		Default: cfg.Fallback.Backend,
		Help:    "Used when the storage network is unreachable",
	}, &cfg.Fallback.Backend); err != nil {
		return cfg, fmt.Errorf("failed to select fallback backend: %w", err)
	}
	if cfg.Fallback.Backend == "sqlite" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Fallback.Path = filepath.Join(home, ".blobflow", config.DefaultFallbackPath)
		}
	}
	return cfg, nil
}

func validateEpochs(ans interface{}) error {
	s, _ := ans.(string)
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n == 0 {
		return fmt.Errorf("epochs must be a positive integer")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
