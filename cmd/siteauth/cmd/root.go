package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repairloader/siteauth/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "siteauth",
	Short: "RepairLoader site and authentication server",
	Long: `Serves the RepairLoader pages together with GitHub, Google, email link and
password sign-in, and manages the database behind them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		applyFlagOverrides(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		slog.SetDefault(newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.Debug))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("store", "", "Identity store backend: gorm, fs or datastore (env: STORE_BACKEND)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: DEBUG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(usersCmd)
}

// applyFlagOverrides lets explicitly set flags win over the environment
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db-url") {
		cfg.DatabaseURL, _ = flags.GetString("db-url")
	}
	if flags.Changed("store") {
		store, _ := flags.GetString("store")
		cfg.StoreBackend = strings.ToLower(store)
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		cfg.ServerAddr, _ = flags.GetString("addr")
	}
	if flags.Lookup("grpc-addr") != nil && flags.Changed("grpc-addr") {
		cfg.GRPCAddr, _ = flags.GetString("grpc-addr")
	}
	if flags.Lookup("base-url") != nil && flags.Changed("base-url") {
		baseURL, _ := flags.GetString("base-url")
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
}

// newLogger builds the process logger.  --debug forces the debug level.
func newLogger(w io.Writer, level, format string, debug bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if debug {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
