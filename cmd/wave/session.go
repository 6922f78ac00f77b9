package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/wavelength-media/wavelength/internal/core"
)

func acquireCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "acquire [player]",
		Short: "Acquire a player session",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			result, err := app.service.AcquireSession(ctx, selector, ttl)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 5*time.Minute, "session ttl")
	return cmd
}

func renewCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "renew [player]",
		Short: "Renew a player session",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			return app.service.RenewSession(ctx, selector, ttl)
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 5*time.Minute, "session ttl")
	return cmd
}

func releaseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "release [player]",
		Short: "Release a player session",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			return app.service.ReleaseSession(ctx, selector)
		},
	}
}

func ownerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "owner [player]",
		Short: "Show current session owner",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			owner, err := app.service.Owner(ctx, selector)
			if err != nil {
				return err
			}
			return app.printer.Print(core.RawResult{Data: owner})
		},
	}
}
