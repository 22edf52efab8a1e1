package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the recognition cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := newClient().CacheStats(cmd.Context())
		if err != nil {
			return userError(err)
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <image-hash>",
	Short: "Show the cached result for an image hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newClient().Cached(cmd.Context(), args[0])
		if err != nil {
			return userError(err)
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
		}
		printResult(cmd.OutOrStdout(), result, time.Now())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheGetCmd)
}
