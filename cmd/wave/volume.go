package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func volumeCommand() *cobra.Command {
	var mute bool
	var unmute bool

	cmd := &cobra.Command{
		Use:     "volume [player] [<0..100>|<+/-n>]",
		Aliases: []string{"vol"},
		Short:   "Set volume",
		Args:    cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if mute && unmute {
				return fmt.Errorf("use only --mute or --unmute")
			}

			selector := ""
			arg := ""
			switch len(args) {
			case 1:
				if looksLikeVolume(args[0]) && !mute && !unmute {
					arg = args[0]
				} else {
					selector = args[0]
				}
			case 2:
				selector = args[0]
				arg = args[1]
			}

			if mute || unmute {
				return setMuted(ctx, app, selector, mute)
			}
			if arg == "" {
				return fmt.Errorf("volume value required")
			}
			return app.service.SetVolume(ctx, selector, arg)
		},
	}

	cmd.Flags().BoolVar(&mute, "mute", false, "mute output")
	cmd.Flags().BoolVar(&unmute, "unmute", false, "unmute output")

	return cmd
}

// setMuted only toggles when the player is not already in the requested
// state, so repeating --mute stays muted.
func setMuted(ctx context.Context, app *app, selector string, mute bool) error {
	status, err := app.service.Status(ctx, selector)
	if err != nil {
		return err
	}
	muted := status.State.Playback != nil && status.State.Playback.Volume == 0
	if muted == mute {
		return nil
	}
	return app.service.MuteToggle(ctx, selector)
}

func looksLikeVolume(arg string) bool {
	if arg == "" {
		return false
	}
	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		return true
	}
	return arg[0] >= '0' && arg[0] <= '9'
}
