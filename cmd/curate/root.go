package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/st3v3nmw/beacon-dns-lists/internal/config"
	"github.com/st3v3nmw/beacon-dns-lists/internal/dns"
)

var (
	verbosity  int
	configFile string
	dataDir    string

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "curate",
		Short: "Curate DNS filter lists",
		Long: `curate merges AdBlock, AdGuard Home & hosts style filter lists into one
deduplicated block list and one allow list, optionally dropping domains
that no longer resolve.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(verbosity)
			if cmd.Name() == "version" {
				return nil
			}
			return loadConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v DEBUG)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default $BEACON_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for the validation cache (default $BEACON_DATA_DIR)")

	rootCmd.AddCommand(runCmd, checkCmd, daemonCmd, versionCmd)
}

func setupLogger(verbosity int) {
	level := slog.LevelInfo
	if verbosity > 0 {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func loadConfig() (err error) {
	if configFile == "" {
		configFile = getEnv("CONFIG_FILE")
	}

	if configFile == "" {
		slog.Debug("No config file given, using defaults")
		cfg, err = config.Parse(nil)
	} else {
		slog.Debug("Reading config", "path", configFile)
		cfg, err = config.Read(configFile)
	}
	if err != nil {
		return err
	}

	if dataDir == "" {
		dataDir = getEnv("DATA_DIR")
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	return nil
}

// openValidator builds the validator on top of the persistent cache in the
// data directory. A cache that can't be opened only costs revalidation.
func openValidator(cfg *config.Config) (*dns.Validator, error) {
	var store *dns.Store
	if cfg.Validation.Enabled {
		path := filepath.Join(cfg.DataDir, "validations.db")
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			slog.Warn("Validation cache unavailable, continuing without it", "error", err)
		} else if store, err = dns.OpenStore(path); err != nil {
			slog.Warn("Validation cache unavailable, continuing without it", "path", path, "error", err)
			store = nil
		}
	}

	cache, err := dns.NewCache(cfg.Validation.CacheSize, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation cache: %w", err)
	}

	v, err := dns.NewValidator(cfg.Validation, dns.WithCache(cache))
	if err != nil {
		cache.Close()
		return nil, err
	}

	return v, nil
}

func getEnv(envVar string) string {
	return os.Getenv(fmt.Sprintf("BEACON_%s", envVar))
}
