package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/omochice/caret-chat/internal/config"
	"github.com/omochice/caret-chat/internal/logging"
	"github.com/omochice/caret-chat/internal/server"
)

func main() {
	if err := serverCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func serverCmd() *cobra.Command {
	var (
		configPath string
		flags      config.Config
	)

	cmd := &cobra.Command{
		Use:          "caret-chat-server",
		Short:        "Run the caret-delimited chat server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			applyFlags(cmd, &cfg, flags)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	defaults := config.Default()
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file")
	f.StringVar(&flags.Listen, "listen", defaults.Listen, "TCP chat address")
	f.StringVar(&flags.WebSocketListen, "websocket", "", "WebSocket address (empty disables)")
	f.StringVar(&flags.AdminListen, "admin", "", "admin HTTP address (empty disables)")
	f.StringVar(&flags.HealthListen, "health", "", "gRPC health address (empty disables)")
	f.DurationVar(&flags.WriteTimeout, "write-timeout", defaults.WriteTimeout, "deadline for each write to a client")
	f.IntVar(&flags.OutboxSize, "outbox-size", defaults.OutboxSize, "frames queued per client before it is dropped")
	f.Float64Var(&flags.RateLimit, "rate-limit", 0, "frames per second accepted from each client (0 disables)")
	f.IntVar(&flags.RateBurst, "rate-burst", 0, "burst allowed above rate-limit")
	f.StringVar(&flags.Log.Level, "log-level", defaults.Log.Level, "log level")
	f.StringVar(&flags.Log.Format, "log-format", defaults.Log.Format, "log format: console or json")
	return cmd
}

// applyFlags copies every flag set on the command line over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config, flags config.Config) {
	changed := cmd.Flags().Changed
	if changed("listen") {
		cfg.Listen = flags.Listen
	}
	if changed("websocket") {
		cfg.WebSocketListen = flags.WebSocketListen
	}
	if changed("admin") {
		cfg.AdminListen = flags.AdminListen
	}
	if changed("health") {
		cfg.HealthListen = flags.HealthListen
	}
	if changed("write-timeout") {
		cfg.WriteTimeout = flags.WriteTimeout
	}
	if changed("outbox-size") {
		cfg.OutboxSize = flags.OutboxSize
	}
	if changed("rate-limit") {
		cfg.RateLimit = flags.RateLimit
	}
	if changed("rate-burst") {
		cfg.RateBurst = flags.RateBurst
	}
	if changed("log-level") {
		cfg.Log.Level = flags.Log.Level
	}
	if changed("log-format") {
		cfg.Log.Format = flags.Log.Format
	}
}

func run(cfg config.Config) error {
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Stringer("signal", sig).Msg("shutting down")

	srv.Stop()
	return nil
}
