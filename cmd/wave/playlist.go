package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

func playlistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Playlist commands",
	}

	cmd.AddCommand(playlistListCommand())
	cmd.AddCommand(playlistShowCommand())
	cmd.AddCommand(playlistCreateCommand())
	cmd.AddCommand(playlistDeleteCommand())

	return cmd
}

func playlistListCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List playlists",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.PlaylistList(ctx, server)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "playlist server selector")
	return cmd
}

func playlistShowCommand() *cobra.Command {
	var server string
	var library string

	cmd := &cobra.Command{
		Use:   "show <playlistId|name>",
		Short: "Show a playlist with its tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.PlaylistShow(ctx, server, library, args[0])
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "playlist server selector")
	cmd.Flags().StringVar(&library, "library", "", "library selector")
	return cmd
}

func playlistCreateCommand() *cobra.Command {
	var server string
	var library string
	var mediaType string

	cmd := &cobra.Command{
		Use:   "create <name> <track...>",
		Short: "Create a playlist from tracks, in the given order",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if mediaType != "" && mediaType != wl.MediaAudio && mediaType != wl.MediaVideo {
				return fmt.Errorf("type must be audio or video")
			}
			playlist, err := app.service.PlaylistCreate(ctx, server, library, args[0], mediaType, args[1:])
			if err != nil {
				return err
			}
			if app.quiet {
				return nil
			}
			return app.printer.Print(playlist)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "playlist server selector")
	cmd.Flags().StringVar(&library, "library", "", "library selector")
	cmd.Flags().StringVar(&mediaType, "type", wl.MediaAudio, "playlist media type")
	return cmd
}

func playlistDeleteCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:     "delete <playlistId|name>",
		Aliases: []string{"del"},
		Short:   "Delete a playlist",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if !app.yes {
				ok, _ := pterm.DefaultInteractiveConfirm.
					WithDefaultText(fmt.Sprintf("Delete playlist %q?", args[0])).
					Show()
				if !ok {
					return nil
				}
			}
			return app.service.PlaylistDelete(ctx, server, args[0])
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "playlist server selector")
	return cmd
}
