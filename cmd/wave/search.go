package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func searchCommand() *cobra.Command {
	var library string
	var recent bool
	var clearRecent bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the library catalog",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			switch {
			case clearRecent:
				return app.service.ClearRecentSearches(ctx, library)
			case recent:
				result, err := app.service.RecentSearches(ctx, library)
				if err != nil {
					return err
				}
				return app.printer.Print(result)
			}

			if len(args) != 1 {
				return fmt.Errorf("query required")
			}
			result, err := app.service.SearchTracks(ctx, library, args[0])
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}

	cmd.Flags().StringVar(&library, "library", "", "library selector")
	cmd.Flags().BoolVar(&recent, "recent", false, "show recent searches")
	cmd.Flags().BoolVar(&clearRecent, "clear-recent", false, "clear recent searches")
	return cmd
}
