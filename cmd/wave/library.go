package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Extensions the daemon is known to accept. This is a hint to fail fast on
// obviously wrong files; the server does its own sniffing either way.
var knownExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".aac": true, ".ogg": true,
	".flac": true, ".alac": true, ".aiff": true,
	".mp4": true, ".mov": true, ".wmv": true, ".avi": true, ".mkv": true,
	".webm": true,
}

func uploadCommand() *cobra.Command {
	var library string
	var force bool

	cmd := &cobra.Command{
		Use:   "upload <file...>",
		Short: "Upload media files to the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)

			if !force {
				for _, path := range args {
					ext := strings.ToLower(filepath.Ext(path))
					if !knownExtensions[ext] {
						return fmt.Errorf("%s does not look like a media file (use --force to upload anyway)", path)
					}
				}
			}

			for _, path := range args {
				ctx, cancel := withTimeout(context.Background(), app.timeout)
				result, err := app.service.Upload(ctx, library, path)
				cancel()
				if err != nil {
					return err
				}
				if err := app.printer.Print(result); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&library, "library", "", "library selector")
	cmd.Flags().BoolVar(&force, "force", false, "skip the file extension check")
	return cmd
}

func tracksCommand() *cobra.Command {
	var library string
	var mediaType string
	var contains string

	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "List library tracks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Tracks(ctx, library, mediaType, contains)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}

	cmd.Flags().StringVar(&library, "library", "", "library selector")
	cmd.Flags().StringVar(&mediaType, "type", "", "filter by type (audio|video)")
	cmd.Flags().StringVar(&contains, "contains", "", "filter by name substring")
	return cmd
}

func rmCommand() *cobra.Command {
	var library string

	cmd := &cobra.Command{
		Use:   "rm <trackId|name>",
		Short: "Delete a track and its stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if !app.yes {
				ok, _ := pterm.DefaultInteractiveConfirm.
					WithDefaultText(fmt.Sprintf("Delete %q?", args[0])).
					Show()
				if !ok {
					return nil
				}
			}
			return app.service.DeleteMedia(ctx, library, args[0])
		},
	}

	cmd.Flags().StringVar(&library, "library", "", "library selector")
	return cmd
}
