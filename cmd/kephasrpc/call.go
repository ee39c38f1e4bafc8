package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/luciancaetano/kephasrpc/ws"
)

func newCallCommand(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "call <method> [params-json]",
		Short: "Send one request and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := loadFileConfig(opts.configPath)
			if err != nil {
				return err
			}
			cfg, err := fc.clientConfig(opts.url)
			if err != nil {
				return err
			}

			var params interface{}
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return errors.Errorf("params are not valid JSON: %s", args[1])
				}
				params = json.RawMessage(args[1])
			}

			client := ws.New(cfg)
			if err := client.Open(); err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var result json.RawMessage
			if err := client.Call(ctx, args[0], params, &result); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(result))
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the response")
	return cmd
}
