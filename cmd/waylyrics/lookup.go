package main

import (
	"context"
	"fmt"
	"waylyrics/internal/app"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lookupCmd)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <title> [artist]",
	Short: "Resolve synced lyrics once through the cache and lrclib",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		resolver, store, err := app.OpenResolver(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		var artist string
		if len(args) == 2 {
			artist = args[1]
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Lyrics.Timeout)
		defer cancel()

		text := resolver.ResolveWithFallback(ctx, args[0], artist)
		if text == "" {
			return fmt.Errorf("no synced lyrics found for %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}
