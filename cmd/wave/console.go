package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/wavelength-media/wavelength/internal/adapters/output"
	"github.com/wavelength-media/wavelength/internal/library"
	"github.com/wavelength-media/wavelength/pkg/wl"
)

func consoleCommand() *cobra.Command {
	var player string
	var server string
	var librarySel string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive library browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			con := &console{
				app:     app,
				player:  player,
				server:  server,
				library: librarySel,
			}
			con.vm = library.New(nil,
				serviceMedia{con},
				servicePlaylists{con},
				serviceSearch{con},
				servicePlayer{con},
				promptConfirmer{yes: app.yes},
			)
			return con.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&player, "player", "", "player selector")
	cmd.Flags().StringVar(&server, "server", "", "playlist server selector")
	cmd.Flags().StringVar(&librarySel, "library", "", "library selector")
	return cmd
}

type console struct {
	app     *app
	vm      *library.ViewModel
	player  string
	server  string
	library string
}

// Collaborator adapters routing the view model through the command bus.

type serviceMedia struct{ c *console }

func (m serviceMedia) Upload(ctx context.Context, path string) (wl.MediaRecord, error) {
	result, err := m.c.app.service.Upload(ctx, m.c.library, path)
	if err != nil {
		return wl.MediaRecord{}, err
	}
	return result.Record, nil
}

func (m serviceMedia) Query(ctx context.Context, mediaType string) ([]wl.MediaRecord, error) {
	result, err := m.c.app.service.Tracks(ctx, m.c.library, mediaType, "")
	if err != nil {
		return nil, err
	}
	return result.Tracks, nil
}

func (m serviceMedia) Delete(ctx context.Context, id string) error {
	return m.c.app.service.DeleteMedia(ctx, m.c.library, id)
}

type servicePlaylists struct{ c *console }

func (p servicePlaylists) Create(ctx context.Context, name, mediaType string, mediaIDs []string) (wl.Playlist, error) {
	return p.c.app.service.PlaylistCreate(ctx, p.c.server, p.c.library, name, mediaType, mediaIDs)
}

func (p servicePlaylists) Delete(ctx context.Context, id string) error {
	return p.c.app.service.PlaylistDelete(ctx, p.c.server, id)
}

func (p servicePlaylists) List(ctx context.Context) ([]wl.PlaylistWithSongs, error) {
	listed, err := p.c.app.service.PlaylistList(ctx, p.c.server)
	if err != nil {
		return nil, err
	}
	out := make([]wl.PlaylistWithSongs, 0, len(listed.Playlists))
	for _, pl := range listed.Playlists {
		shown, err := p.c.app.service.PlaylistShow(ctx, p.c.server, p.c.library, pl.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, shown.Playlist)
	}
	return out, nil
}

type serviceSearch struct{ c *console }

func (s serviceSearch) Search(ctx context.Context, query string) ([]wl.MediaRecord, error) {
	result, err := s.c.app.service.SearchTracks(ctx, s.c.library, query)
	if err != nil {
		return nil, err
	}
	return result.Tracks, nil
}

type servicePlayer struct{ c *console }

func (p servicePlayer) Load(ctx context.Context, track wl.CurrentTrack) error {
	return p.c.app.service.PlayerLoad(ctx, p.c.player, track)
}

type promptConfirmer struct{ yes bool }

func (p promptConfirmer) Confirm(prompt string) bool {
	if p.yes {
		return true
	}
	ok, _ := pterm.DefaultInteractiveConfirm.WithDefaultText(prompt).Show()
	return ok
}

const (
	menuTracks    = "Tracks"
	menuSearch    = "Search"
	menuPlaylists = "Playlists"
	menuUpload    = "Upload"
	menuStatus    = "Status"
	menuQuit      = "Quit"
)

func (c *console) run(ctx context.Context) error {
	for {
		choice, err := pterm.DefaultInteractiveSelect.
			WithOptions([]string{menuTracks, menuSearch, menuPlaylists, menuUpload, menuStatus, menuQuit}).
			Show("wavelength")
		if err != nil {
			return err
		}

		switch choice {
		case menuTracks:
			err = c.browseTracks(ctx)
		case menuSearch:
			err = c.searchTracks(ctx)
		case menuPlaylists:
			err = c.browsePlaylists(ctx)
		case menuUpload:
			err = c.upload(ctx)
		case menuStatus:
			err = c.showStatus(ctx)
		case menuQuit:
			return nil
		}
		if err != nil {
			pterm.Error.Println(err)
		}
	}
}

func (c *console) browseTracks(ctx context.Context) error {
	if err := c.vm.RefreshTracks(ctx); err != nil {
		return err
	}
	tracks := c.vm.Tracks()
	if len(tracks) == 0 {
		pterm.Info.Println("library is empty")
		return nil
	}
	return c.pickTrack(ctx, tracks)
}

func (c *console) searchTracks(ctx context.Context) error {
	query, err := pterm.DefaultInteractiveTextInput.Show("search")
	if err != nil {
		return err
	}
	if err := c.vm.Search(ctx, query); err != nil {
		return err
	}
	results := c.vm.SearchResults()
	if len(results) == 0 {
		pterm.Info.Println("no matches")
		return nil
	}
	return c.pickTrack(ctx, results)
}

// pickTrack shows a track list and runs the chosen action. Selection toggles
// feed the playlist draft held by the view model.
func (c *console) pickTrack(ctx context.Context, tracks []wl.MediaRecord) error {
	labels := make([]string, 0, len(tracks)+1)
	byLabel := make(map[string]wl.MediaRecord, len(tracks))
	for _, track := range tracks {
		label := trackLabel(track, c.vm.Selected(track.ID))
		labels = append(labels, label)
		byLabel[label] = track
	}
	labels = append(labels, "Back")

	choice, err := pterm.DefaultInteractiveSelect.WithOptions(labels).Show("track")
	if err != nil {
		return err
	}
	track, ok := byLabel[choice]
	if !ok {
		return nil
	}

	action, err := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Play", "Toggle select", "Save selection as playlist", "Delete", "Back"}).
		Show(track.Name)
	if err != nil {
		return err
	}
	switch action {
	case "Play":
		if err := c.vm.Play(ctx, track); err != nil {
			return err
		}
		pterm.Success.Printfln("playing %s", track.Name)
	case "Toggle select":
		c.vm.ToggleSelect(track.ID)
	case "Save selection as playlist":
		return c.savePlaylist(ctx)
	case "Delete":
		if err := (serviceMedia{c}).Delete(ctx, track.ID); err != nil {
			return err
		}
		pterm.Success.Printfln("deleted %s", track.Name)
	}
	return nil
}

func (c *console) savePlaylist(ctx context.Context) error {
	name, err := pterm.DefaultInteractiveTextInput.Show("playlist name")
	if err != nil {
		return err
	}
	c.vm.SetDraftName(name)
	created, err := c.vm.CreatePlaylist(ctx)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("created %s (%d tracks)", created.Name, len(created.Items))
	return nil
}

func (c *console) browsePlaylists(ctx context.Context) error {
	if err := c.vm.RefreshPlaylists(ctx); err != nil {
		return err
	}
	playlists := c.vm.Playlists()
	if len(playlists) == 0 {
		pterm.Info.Println("no playlists")
		return nil
	}

	labels := make([]string, 0, len(playlists)+1)
	byLabel := make(map[string]wl.PlaylistWithSongs, len(playlists))
	for _, pl := range playlists {
		label := fmt.Sprintf("%s (%d tracks)", pl.Name, len(pl.Songs))
		labels = append(labels, label)
		byLabel[label] = pl
	}
	labels = append(labels, "Back")

	choice, err := pterm.DefaultInteractiveSelect.WithOptions(labels).Show("playlist")
	if err != nil {
		return err
	}
	pl, ok := byLabel[choice]
	if !ok {
		return nil
	}

	action, err := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Show", "Play a track", "Delete", "Back"}).
		Show(pl.Name)
	if err != nil {
		return err
	}
	switch action {
	case "Show":
		data := pterm.TableData{{"Name", "Artist", "Size"}}
		for _, song := range pl.Songs {
			data = append(data, []string{song.Name, song.Artist, output.FormatSize(song.Size)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	case "Play a track":
		return c.pickTrack(ctx, pl.Songs)
	case "Delete":
		return c.vm.DeletePlaylist(ctx, pl.ID)
	}
	return nil
}

func (c *console) upload(ctx context.Context) error {
	path, err := pterm.DefaultInteractiveTextInput.Show("file path")
	if err != nil {
		return err
	}
	record, err := c.vm.Upload(ctx, path)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("uploaded %s (%s)", record.Name, output.FormatSize(record.Size))
	return nil
}

func (c *console) showStatus(ctx context.Context) error {
	result, err := c.app.service.Status(ctx, c.player)
	if err != nil {
		return err
	}
	return c.app.printer.Print(result)
}

func trackLabel(track wl.MediaRecord, selected bool) string {
	mark := " "
	if selected {
		mark = "*"
	}
	if track.Artist != "" {
		return fmt.Sprintf("[%s] %s - %s", mark, track.Artist, track.Name)
	}
	return fmt.Sprintf("[%s] %s", mark, track.Name)
}
