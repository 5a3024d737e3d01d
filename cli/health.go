package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vizinsight/ai"
	"vizinsight/cache"
)

func newHealthCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the inference endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			client := ai.New(cfg.Inference, cfg.Retry, cache.New(cfg.CacheTTL))
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			status, err := client.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}
