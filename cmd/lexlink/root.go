package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	lexlink "github.com/ameetan/go-lexlink"
)

var (
	cfgFile  string
	dataDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "lexlink",
	Short: "Hybrid retrieval over statutes and case law",
	Long: `lexlink manages a local legal corpus: it segments statutes, judgments,
and procedural rules into a document tree, builds lexical and dense
indexes over them, and answers queries with interpretation-link boosting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env next to the working directory may carry provider keys.
		_ = godotenv.Load()

		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: lvl,
		})))
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "index directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
}

// loadConfig layers the config file and flag overrides over defaults.
func loadConfig() (lexlink.Config, error) {
	cfg := lexlink.DefaultConfig()
	if cfgFile != "" {
		var err error
		cfg, err = lexlink.LoadConfig(cfgFile)
		if err != nil {
			return cfg, err
		}
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// openEngine builds the engine every command talks to.
func openEngine() (lexlink.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return lexlink.New(cfg)
}
