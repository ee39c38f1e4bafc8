// Command kephasrpc talks JSON-RPC 2.0 to a WebSocket server from the shell.
package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	url        string
	configPath string
	logLevel   string
}

func main() {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "kephasrpc",
		Short:         "JSON-RPC 2.0 over WebSocket client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.url, "url", "", "server address, e.g. ws://localhost:6800/jsonrpc")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML file with client settings")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "trace, debug, info, warn or error")

	root.AddCommand(newCallCommand(opts), newWatchCommand(opts))

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("kephasrpc failed")
		os.Exit(1)
	}
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}
}
