// Relaychat is a real-time chat relay over WebSocket.
//
// It runs two listeners: the chat endpoint that browsers open a WebSocket
// to, and a static server that hands out the frontend.
//
// Usage:
//
//	relaychat [flags]
//	relaychat version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/relaychat/internal/config"
	"github.com/Tyrowin/relaychat/internal/logging"
	"github.com/Tyrowin/relaychat/internal/server"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	configPath string
	flagCfg    = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "relaychat",
	Short: "Real-time WebSocket chat relay",
	Long: `relaychat relays chat messages between every browser connected to it.

Settings are read from defaults, then the YAML file given with --config,
then CHAT_* environment variables, then the flags below.`,
	Example: `  # Defaults: chat on :8765, frontend on :8000
  relaychat

  # Custom ports with debug logging
  relaychat --port 9000 --static-port 9001 --log-level debug

  # Settings from a file, overridden by the environment
  CHAT_ALLOWED_ORIGINS=https://chat.example.com relaychat --config relaychat.yaml`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("relaychat %s\n", Version)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "Path to a YAML config file")
	f.StringVar(&flagCfg.Host, "host", flagCfg.Host, "Interface to bind both listeners to")
	f.IntVar(&flagCfg.Port, "port", flagCfg.Port, "Chat (WebSocket) port")
	f.IntVar(&flagCfg.StaticPort, "static-port", flagCfg.StaticPort, "Static frontend port")
	f.StringVar(&flagCfg.StaticDir, "static-dir", flagCfg.StaticDir, "Serve the frontend from this directory instead of the embedded copy")
	f.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&flagCfg.LogFormat, "log-format", flagCfg.LogFormat, "Log format (json, console)")

	rootCmd.AddCommand(versionCmd)
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", Version).
		Str("chat_addr", cfg.ChatAddr()).
		Str("static_addr", cfg.StaticAddr()).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Starting relaychat")

	if err := server.New(cfg, log).Run(ctx); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}

// applyFlags copies flags the user set explicitly over cfg, so unset flags
// never mask values from the file or the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = flagCfg.Host
	}
	if flags.Changed("port") {
		cfg.Port = flagCfg.Port
	}
	if flags.Changed("static-port") {
		cfg.StaticPort = flagCfg.StaticPort
	}
	if flags.Changed("static-dir") {
		cfg.StaticDir = flagCfg.StaticDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagCfg.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagCfg.LogFormat
	}
}
