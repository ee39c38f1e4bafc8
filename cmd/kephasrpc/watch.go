package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/luciancaetano/kephasrpc"
	"github.com/luciancaetano/kephasrpc/ws"
)

type watchOptions struct {
	methods        []string
	heartbeat      string
	reconnectDelay time.Duration
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	wopts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print server notifications until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(wopts.methods) == 0 {
				return errors.New("at least one --notify method is required")
			}
			fc, err := loadFileConfig(opts.configPath)
			if err != nil {
				return err
			}
			cfg, err := fc.clientConfig(opts.url)
			if err != nil {
				return err
			}
			return watch(cmd, ws.New(cfg), wopts)
		},
	}
	cmd.Flags().StringSliceVar(&wopts.methods, "notify", nil, "notification methods to print, comma separated")
	cmd.Flags().StringVar(&wopts.heartbeat, "heartbeat", "", "method to probe the connection with")
	cmd.Flags().DurationVar(&wopts.reconnectDelay, "reconnect-delay", 3*time.Second, "pause before reconnecting after a close")
	return cmd
}

func watch(cmd *cobra.Command, client kephasrpc.RPCClient, wopts *watchOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var outMu sync.Mutex
	for _, method := range wopts.methods {
		method := method
		client.OnNotify(method, func(params json.RawMessage) {
			outMu.Lock()
			defer outMu.Unlock()
			printNotification(out, method, params)
		})
	}

	client.OnOpen(func(kephasrpc.Event) {
		log.Info().Str("url", client.URL()).Msg("connected")
		if wopts.heartbeat != "" {
			client.Heartbeat(wopts.heartbeat, nil, onHeartbeat)
		}
	})
	client.OnError(func(ev kephasrpc.Event) {
		log.Warn().Err(ev.Err).Msg("connection error")
	})
	client.OnClose(func(ev kephasrpc.Event) {
		if ctx.Err() != nil {
			return
		}
		log.Warn().Int("code", ev.Code).Dur("delay", wopts.reconnectDelay).Msg("connection closed, reconnecting")
		time.AfterFunc(wopts.reconnectDelay, func() {
			if ctx.Err() != nil {
				return
			}
			if err := client.Reconnect(); err != nil {
				log.Error().Err(err).Msg("reconnect failed")
			}
		})
	})

	if err := client.Open(); err != nil {
		return err
	}
	<-ctx.Done()
	return client.Close()
}

func onHeartbeat(timedOut bool, _ json.RawMessage, err *kephasrpc.Error) {
	switch {
	case timedOut:
		log.Warn().Msg("heartbeat timed out")
	case err != nil:
		log.Debug().Int("code", err.Code).Str("message", err.Message).Msg("heartbeat answered with error")
	}
}

func printNotification(w io.Writer, method string, params json.RawMessage) {
	_, _ = fmt.Fprintf(w, "%s %s %s\n", time.Now().Format(time.RFC3339), method, params)
}
