package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GPTx-global/flightsurety/oracle/config"
	"github.com/GPTx-global/flightsurety/oracle/daemon"
	"github.com/GPTx-global/flightsurety/oracle/health"
	"github.com/GPTx-global/flightsurety/oracle/log"
)

const (
	flagHome     = "home"
	flagNetwork  = "network"
	flagListen   = "listen"
	flagLogLevel = "log-level"
	flagLogJSON  = "log-json"
	flagLogFile  = "log-file"
	flagPolicy   = "status-policy"
	flagPoolSize = "pool-size"

	flagNetworksJSON = "networks-json"

	envPrefix = "FLIGHTSURETY"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "oracled",
		Short:         "FlightSurety oracle daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return v.BindPFlags(cmd.Flags())
		},
	}

	rootCmd.PersistentFlags().String(flagHome, config.DefaultHome(), "directory holding config.toml and logs")
	rootCmd.PersistentFlags().String(flagNetwork, "", "network entry to use (overrides oracle.network)")
	rootCmd.PersistentFlags().String(flagListen, "", "api listen address (overrides server.listen)")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "log level (overrides log.level)")
	rootCmd.PersistentFlags().Bool(flagLogJSON, false, "log as JSON")
	rootCmd.PersistentFlags().Bool(flagLogFile, false, "log to <home>/logs instead of stderr")
	rootCmd.PersistentFlags().String(flagNetworksJSON, "", "dapp config.json whose networks are added to the config")

	rootCmd.AddCommand(
		startCmd(v),
		serveAPICmd(v),
		configCmd(v),
	)

	return rootCmd
}

// loadConfig reads the config file and applies flag and environment overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	home := v.GetString(flagHome)

	cfg, err := config.Load(home)
	if err != nil {
		return nil, err
	}

	if path := v.GetString(flagNetworksJSON); path != "" {
		if err := cfg.ImportNetworksJSON(path); err != nil {
			return nil, err
		}
	}
	if network := v.GetString(flagNetwork); network != "" {
		cfg.Oracle.Network = network
	}
	if listen := v.GetString(flagListen); listen != "" {
		cfg.Server.Listen = listen
	}
	if level := v.GetString(flagLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if policy := v.GetString(flagPolicy); policy != "" {
		cfg.Oracle.StatusPolicy = policy
	}
	if v.IsSet(flagPoolSize) {
		cfg.Oracle.PoolSize = cast.ToInt(v.Get(flagPoolSize))
	}
	cfg.Log.JSON = cfg.Log.JSON || v.GetBool(flagLogJSON)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.InitLogger(cfg.Log.Level, cfg.Log.JSON)
	if v.GetBool(flagLogFile) {
		if err := log.ResetLogger(home); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func startCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Register the oracle pool and answer flight status requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := daemon.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}

			if err := d.Start(); err != nil {
				d.Stop()
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			<-ctx.Done()
			log.Info("shutting down")
			d.Stop()

			return nil
		},
	}

	cmd.Flags().String(flagPolicy, "", "status policy: random, fixed or http (overrides oracle.status_policy)")
	cmd.Flags().Int(flagPoolSize, 0, "number of oracle accounts to register (overrides oracle.pool_size)")
	return cmd
}

func serveAPICmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-api",
		Short: "Serve only the dapp API without running oracles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := health.NewServer(cfg.Server, nil, nil, nil)
			if err := server.Start(); err != nil {
				return err
			}

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func configCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			cfg.Print()
			return nil
		},
	}
}
