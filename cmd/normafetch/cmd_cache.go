package main

import (
	"github.com/spf13/cobra"

	"normafetch/internal/service"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the persistent cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print hit/miss counters for the persistent cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *service.Service) error {
			return printJSON(svc.CacheStats())
		})
	},
}
