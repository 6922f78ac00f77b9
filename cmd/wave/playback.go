package main

import (
	"context"

	"github.com/spf13/cobra"
)

func playCommand() *cobra.Command {
	var library string

	cmd := &cobra.Command{
		Use:   "play [player] <trackId|name>",
		Short: "Load a track and start playback",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			ref := args[0]
			if len(args) == 2 {
				selector = args[0]
				ref = args[1]
			}
			record, err := app.service.Play(ctx, selector, library, ref)
			if err != nil {
				return err
			}
			if app.quiet {
				return nil
			}
			return app.printer.Print(record)
		},
	}

	cmd.Flags().StringVar(&library, "library", "", "library selector")
	return cmd
}

func pauseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pause [player]",
		Short: "Pause or resume playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			return app.service.PlayerToggle(ctx, selector)
		},
	}
}

func toggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [player]",
		Short: "Toggle playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			return app.service.PlayerToggle(ctx, selector)
		},
	}
}

func stopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop [player]",
		Short: "Stop playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			return app.service.PlayerStop(ctx, selector)
		},
	}
}

func seekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seek [player] <+/-dur|ms>",
		Short: "Seek playback",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			seekArg := args[0]
			if len(args) == 2 {
				selector = args[0]
				seekArg = args[1]
			}
			return app.service.PlayerSeek(ctx, selector, seekArg)
		},
	}
}

func nextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next [player]",
		Short: "Next track",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			return app.service.PlayerNext(ctx, selector)
		},
	}
}

func prevCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prev [player]",
		Short: "Previous track",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			return app.service.PlayerPrev(ctx, selector)
		},
	}
}
