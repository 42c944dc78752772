package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/emberkv/ember/internal/config"
	"github.com/emberkv/ember/internal/logger"
	"github.com/emberkv/ember/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var version = "1.0.0" // set during build with -ldflags

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ember",
	Short: "Ember - Redis-compatible in-memory key/value server",
	Long: `Ember is a Redis-compatible in-memory key/value server: clients
connect over TCP, speak the familiar request/response protocol, and work
against sixteen isolated databases with TTL expiration, LRU eviction,
an append-only journal, binary snapshots, pub/sub, and primary-replica
write fan-out.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync() //nolint:errcheck

	log.Info("Ember starting",
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_keys", cfg.Store.MaxKeys),
		zap.Bool("pool", cfg.Server.Pool),
	)

	engine, err := server.NewEngine(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, engine, log)

	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(ctx)
	}()

	select {
	case err := <-done:
		// The listener failed before a shutdown was requested.
		engine.Shutdown()
		return err

	case <-ctx.Done():
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		select {
		case <-done:
			log.Info("all connections closed gracefully")
		case <-shutdownCtx.Done():
			log.Warn("shutdown timed out, forcing exit", zap.Duration("timeout", 5*time.Second))
		}

		engine.Shutdown()
		log.Info("Ember stopped")
		return nil
	}
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Ember v%s\n", version)
		fmt.Printf("Built with Go %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (key = value lines)")

	rootCmd.PersistentFlags().IntP("port", "p", 6379, "Server port")
	rootCmd.PersistentFlags().IntP("max-keys", "m", 10000, "Max keys per database before LRU eviction")
	rootCmd.PersistentFlags().StringP("aof", "a", "mini_redis.aof", "AOF journal file path")
	rootCmd.PersistentFlags().StringP("rdb", "r", "mini_redis_dump.rdb", "RDB snapshot file path")
	rootCmd.PersistentFlags().Bool("pool", false, "Use the fixed-size worker pool listener")

	// Bound flags take precedence over the config file, which takes
	// precedence over the built-in defaults.
	viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))         //nolint:errcheck
	viper.BindPFlag("store.max_keys", rootCmd.PersistentFlags().Lookup("max-keys"))  //nolint:errcheck
	viper.BindPFlag("persistence.aof_path", rootCmd.PersistentFlags().Lookup("aof")) //nolint:errcheck
	viper.BindPFlag("persistence.rdb_path", rootCmd.PersistentFlags().Lookup("rdb")) //nolint:errcheck
	viper.BindPFlag("server.pool", rootCmd.PersistentFlags().Lookup("pool"))         //nolint:errcheck

	rootCmd.AddCommand(versionCmd)
}

// Execute is the main entry point for the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
