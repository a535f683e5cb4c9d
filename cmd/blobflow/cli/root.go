package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/walrusagents/blobflow/pkg/logtrace"
	"github.com/walrusagents/blobflow/pkg/uploadmetrics"
	"github.com/walrusagents/blobflow/sdk/config"
	sdklog "github.com/walrusagents/blobflow/sdk/log"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const (
	defaultConfigDir      = "~/.blobflow"
	defaultConfigFileName = "config.yml"
)

var (
	// Version info passed from main
	appVersion   string
	appGitCommit string
	appBuildTime string

	// Global flags
	cfgFile     string
	logLevel    string
	debug       bool
	metricsAddr string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "blobflow",
	Short: "Register content on a blob storage network",
	Long: `blobflow registers a piece of content on a content-addressed blob storage
network in four steps:

1. Encode the content locally
2. Sign and submit the register transaction, then upload the slivers
3. Sign and submit the certify transaction
4. Report the resulting blob identifiers

Each signature is confirmed interactively. When the storage network cannot be
reached the metadata is kept in a local fallback store instead.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		env := "prod"
		level := logLevel
		if debug {
			env, level = "dev", "debug"
		}
		logtrace.Setup("blobflow", env, level)

		if metricsAddr != "" {
			if _, err := serveMetrics(cmd.Context(), metricsAddr, prometheus.DefaultRegisterer, prometheus.DefaultGatherer); err != nil {
				return err
			}
		}
		return nil
	},
}

// Execute adds all child commands and executes the root command
func Execute(ver, commit, built string) error {
	appVersion = ver
	appGitCommit = commit
	appBuildTime = built

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logtrace.CtxWithCorrelationID(ctx, uuid.NewString())
	ctx = logtrace.CtxWithOrigin(ctx, "cli")

	err := rootCmd.ExecuteContext(ctx)
	stopMetrics()
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.blobflow/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(fallbackCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("blobflow Version: %s\n", appVersion)
		fmt.Printf("Git Commit: %s\n", appGitCommit)
		fmt.Printf("Build Time: %s\n", appBuildTime)
	},
}

// loadConfig reads --config, or the default location when it exists, or
// falls back to defaults plus BLOBFLOW_* environment overrides.
func loadConfig() (config.Config, error) {
	path := ""
	if cfgFile != "" {
		path = processConfigPath(cfgFile)
	} else if p := processConfigPath(filepath.Join(defaultConfigDir, defaultConfigFileName)); fileExists(p) {
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Fallback.Path != "" {
		cfg.Fallback.Path = NormalizePath(cfg.Fallback.Path)
	}
	if !cmdFlagChanged("log-level") && !debug && cfg.LogLevel != "" {
		logtrace.Setup("blobflow", "prod", cfg.LogLevel)
	}
	return cfg, nil
}

func cmdFlagChanged(name string) bool {
	f := rootCmd.PersistentFlags().Lookup(name)
	return f != nil && f.Changed
}

func newLogger() sdklog.Logger {
	return sdklog.NewLogger(logtrace.Logger())
}

var (
	metricsMu     sync.Mutex
	metricsServer *http.Server
)

// serveMetrics exposes g on addr until ctx is done or stopMetrics is called.
func serveMetrics(ctx context.Context, addr string, reg prometheus.Registerer, g prometheus.Gatherer) (net.Addr, error) {
	if err := uploadmetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	metricsMu.Lock()
	metricsServer = srv
	metricsMu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logtrace.Error(ctx, "metrics server stopped", logtrace.Fields{logtrace.FieldError: err.Error()})
		}
	}()
	go func() {
		<-ctx.Done()
		stopMetrics()
	}()
	logtrace.Info(ctx, "serving metrics", logtrace.Fields{"addr": ln.Addr().String()})
	return ln.Addr(), nil
}

// stopMetrics shuts the metrics server down, if one is running.
func stopMetrics() {
	metricsMu.Lock()
	srv := metricsServer
	metricsServer = nil
	metricsMu.Unlock()
	if srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
