package main

import (
	"context"

	"github.com/spf13/cobra"
)

func feedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Podcast feed commands",
	}

	cmd.AddCommand(feedAddCommand())
	cmd.AddCommand(feedListCommand())
	cmd.AddCommand(feedRemoveCommand())
	cmd.AddCommand(feedEpisodesCommand())

	return cmd
}

func feedAddCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Subscribe to an RSS feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.FeedAdd(ctx, server, args[0])
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "feed server selector")
	return cmd
}

func feedListCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List subscribed feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.FeedList(ctx, server)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "feed server selector")
	return cmd
}

func feedRemoveCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "rm <feedId>",
		Short: "Drop a feed subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.FeedRemove(ctx, server, args[0])
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "feed server selector")
	return cmd
}

func feedEpisodesCommand() *cobra.Command {
	var server string
	var query string

	cmd := &cobra.Command{
		Use:   "episodes <feedId>",
		Short: "List a feed's playable episodes, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.FeedEpisodes(ctx, server, args[0], query)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "feed server selector")
	cmd.Flags().StringVar(&query, "query", "", "filter episodes by title")
	return cmd
}
