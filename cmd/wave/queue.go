package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

func queueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Queue commands",
	}

	cmd.AddCommand(queueSetCommand())
	cmd.AddCommand(queuePlaylistCommand())
	cmd.AddCommand(queueJumpCommand())
	cmd.AddCommand(queueClearCommand())

	return cmd
}

func queueSetCommand() *cobra.Command {
	var player string
	var library string
	var startIndex int64

	cmd := &cobra.Command{
		Use:   "set <track...>",
		Short: "Replace the queue with the given tracks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.QueueSet(ctx, player, library, args, startIndex)
		},
	}

	cmd.Flags().StringVar(&player, "player", "", "player selector")
	cmd.Flags().StringVar(&library, "library", "", "library selector")
	cmd.Flags().Int64Var(&startIndex, "start", 0, "index to start playback at")
	return cmd
}

func queuePlaylistCommand() *cobra.Command {
	var player string
	var server string
	var library string

	cmd := &cobra.Command{
		Use:   "playlist <playlistId|name>",
		Short: "Load a playlist into the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.QueuePlaylist(ctx, player, server, library, args[0])
		},
	}

	cmd.Flags().StringVar(&player, "player", "", "player selector")
	cmd.Flags().StringVar(&server, "server", "", "playlist server selector")
	cmd.Flags().StringVar(&library, "library", "", "library selector")
	return cmd
}

func queueJumpCommand() *cobra.Command {
	var player string

	cmd := &cobra.Command{
		Use:   "jump <index>",
		Short: "Jump to a queue index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			index, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return app.service.QueueJump(ctx, player, index)
		},
	}

	cmd.Flags().StringVar(&player, "player", "", "player selector")
	return cmd
}

func queueClearCommand() *cobra.Command {
	var player string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.QueueClear(ctx, player)
		},
	}

	cmd.Flags().StringVar(&player, "player", "", "player selector")
	return cmd
}
