package library

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

// Validation errors surfaced before any store call is made.
var (
	ErrNameRequired = errors.New("playlist name is required")
	ErrNoSelection  = errors.New("select at least one track")
)

// MediaStore is the media collaborator boundary.
type MediaStore interface {
	Upload(ctx context.Context, path string) (wl.MediaRecord, error)
	Query(ctx context.Context, mediaType string) ([]wl.MediaRecord, error)
	Delete(ctx context.Context, id string) error
}

// PlaylistStore is the playlist collaborator boundary.
type PlaylistStore interface {
	Create(ctx context.Context, name, mediaType string, mediaIDs []string) (wl.Playlist, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]wl.PlaylistWithSongs, error)
}

// SearchIndex is the search collaborator boundary.
type SearchIndex interface {
	Search(ctx context.Context, query string) ([]wl.MediaRecord, error)
}

// Player receives tracks chosen for playback.
type Player interface {
	Load(ctx context.Context, track wl.CurrentTrack) error
}

// Confirmer asks the user before destructive actions.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ViewModel holds the library's derived and selection state and orchestrates
// collaborator calls. All shared state is owned here and mutated only by its
// own operations.
//
// Collaborator responses can resolve out of order. Every state slot has a
// generation counter captured when a request is issued; a response whose
// generation no longer matches the latest issued one is discarded instead of
// overwriting newer data.
type ViewModel struct {
	log       *zap.Logger
	media     MediaStore
	playlists PlaylistStore
	search    SearchIndex
	player    Player
	confirm   Confirmer

	mu            sync.Mutex
	allTracks     []wl.MediaRecord
	searchResults []wl.MediaRecord
	playlistList  []wl.PlaylistWithSongs
	selection     []string
	selected      map[string]bool
	draftName     string
	active        *wl.PlaylistWithSongs
	uploading     bool
	tracksGen     uint64
	searchGen     uint64
	playlistsGen  uint64
}

// New creates a view model over the given collaborators.
func New(log *zap.Logger, media MediaStore, playlists PlaylistStore, search SearchIndex, player Player, confirm Confirmer) *ViewModel {
	if log == nil {
		log = zap.NewNop()
	}
	return &ViewModel{
		log:       log,
		media:     media,
		playlists: playlists,
		search:    search,
		player:    player,
		confirm:   confirm,
		selected:  map[string]bool{},
	}
}

// Upload sends a file to the media store and refreshes the track list on
// success. On failure the state is left unchanged and the error is returned
// for the notice.
func (vm *ViewModel) Upload(ctx context.Context, path string) (wl.MediaRecord, error) {
	vm.mu.Lock()
	vm.uploading = true
	vm.mu.Unlock()
	defer func() {
		vm.mu.Lock()
		vm.uploading = false
		vm.mu.Unlock()
	}()

	record, err := vm.media.Upload(ctx, path)
	if err != nil {
		vm.log.Warn("upload failed", zap.String("path", path), zap.Error(err))
		return wl.MediaRecord{}, err
	}
	if err := vm.RefreshTracks(ctx); err != nil {
		vm.log.Warn("track refresh failed", zap.Error(err))
	}
	return record, nil
}

// Uploading reports whether an upload is in flight.
func (vm *ViewModel) Uploading() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.uploading
}

// RefreshTracks re-queries the media store.
func (vm *ViewModel) RefreshTracks(ctx context.Context) error {
	vm.mu.Lock()
	vm.tracksGen++
	gen := vm.tracksGen
	vm.mu.Unlock()

	records, err := vm.media.Query(ctx, "")
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.tracksGen {
		return nil
	}
	if err != nil {
		return err
	}
	vm.allTracks = records
	return nil
}

// Tracks returns the current track list.
func (vm *ViewModel) Tracks() []wl.MediaRecord {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]wl.MediaRecord(nil), vm.allTracks...)
}

// Search recomputes results for the query. An empty (or all-space) query
// clears results without a collaborator call. A response superseded by a
// newer query is discarded regardless of resolution order.
func (vm *ViewModel) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)

	vm.mu.Lock()
	vm.searchGen++
	gen := vm.searchGen
	if query == "" {
		vm.searchResults = nil
		vm.mu.Unlock()
		return nil
	}
	vm.mu.Unlock()

	records, err := vm.search.Search(ctx, query)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.searchGen {
		return nil
	}
	if err != nil {
		vm.log.Warn("search failed", zap.String("query", query), zap.Error(err))
		return err
	}
	vm.searchResults = records
	return nil
}

// SearchResults returns the current results.
func (vm *ViewModel) SearchResults() []wl.MediaRecord {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]wl.MediaRecord(nil), vm.searchResults...)
}

// ToggleSelect flips a track in or out of the playlist draft selection.
// Selection order is the order tracks were first selected.
func (vm *ViewModel) ToggleSelect(id string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.selected[id] {
		delete(vm.selected, id)
		for i, sel := range vm.selection {
			if sel == id {
				vm.selection = append(vm.selection[:i], vm.selection[i+1:]...)
				break
			}
		}
		return
	}
	vm.selected[id] = true
	vm.selection = append(vm.selection, id)
}

// Selected reports draft membership for a track.
func (vm *ViewModel) Selected(id string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.selected[id]
}

// Selection returns the draft selection in selection order.
func (vm *ViewModel) Selection() []string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]string(nil), vm.selection...)
}

// SetDraftName sets the playlist draft name.
func (vm *ViewModel) SetDraftName(name string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.draftName = name
}

// DraftName returns the playlist draft name.
func (vm *ViewModel) DraftName() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.draftName
}

// CloseComposer dismisses the playlist draft, clearing name and selection.
func (vm *ViewModel) CloseComposer() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.clearDraftLocked()
}

func (vm *ViewModel) clearDraftLocked() {
	vm.draftName = ""
	vm.selection = nil
	vm.selected = map[string]bool{}
}

// CreatePlaylist creates a playlist from the draft name and selection, in
// selection order. Blank name or empty selection is rejected before any
// store call. On success the draft is cleared and playlists refreshed.
func (vm *ViewModel) CreatePlaylist(ctx context.Context) (wl.Playlist, error) {
	vm.mu.Lock()
	name := strings.TrimSpace(vm.draftName)
	ids := append([]string(nil), vm.selection...)
	vm.mu.Unlock()

	if name == "" {
		return wl.Playlist{}, ErrNameRequired
	}
	if len(ids) == 0 {
		return wl.Playlist{}, ErrNoSelection
	}

	created, err := vm.playlists.Create(ctx, name, wl.MediaAudio, ids)
	if err != nil {
		vm.log.Warn("playlist create failed", zap.String("name", name), zap.Error(err))
		return wl.Playlist{}, err
	}

	vm.mu.Lock()
	vm.clearDraftLocked()
	vm.mu.Unlock()

	if err := vm.RefreshPlaylists(ctx); err != nil {
		vm.log.Warn("playlist refresh failed", zap.Error(err))
	}
	return created, nil
}

// RefreshPlaylists re-queries the playlist store.
func (vm *ViewModel) RefreshPlaylists(ctx context.Context) error {
	vm.mu.Lock()
	vm.playlistsGen++
	gen := vm.playlistsGen
	vm.mu.Unlock()

	playlists, err := vm.playlists.List(ctx)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.playlistsGen {
		return nil
	}
	if err != nil {
		return err
	}
	vm.playlistList = playlists
	return nil
}

// Playlists returns the current playlists.
func (vm *ViewModel) Playlists() []wl.PlaylistWithSongs {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]wl.PlaylistWithSongs(nil), vm.playlistList...)
}

// OpenPlaylist makes a playlist the active one.
func (vm *ViewModel) OpenPlaylist(id string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for i := range vm.playlistList {
		if vm.playlistList[i].ID == id {
			pl := vm.playlistList[i]
			vm.active = &pl
			return true
		}
	}
	return false
}

// ClosePlaylist navigates back to the default view.
func (vm *ViewModel) ClosePlaylist() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.active = nil
}

// ActivePlaylist returns the open playlist, if any.
func (vm *ViewModel) ActivePlaylist() (wl.PlaylistWithSongs, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.active == nil {
		return wl.PlaylistWithSongs{}, false
	}
	return *vm.active, true
}

// DeletePlaylist asks for confirmation, deletes, refreshes, and clears the
// active playlist when it was the one deleted.
func (vm *ViewModel) DeletePlaylist(ctx context.Context, id string) error {
	if vm.confirm != nil && !vm.confirm.Confirm("Delete this playlist?") {
		return nil
	}

	if err := vm.playlists.Delete(ctx, id); err != nil {
		vm.log.Warn("playlist delete failed", zap.String("id", id), zap.Error(err))
		return err
	}

	vm.mu.Lock()
	if vm.active != nil && vm.active.ID == id {
		vm.active = nil
	}
	vm.mu.Unlock()

	if err := vm.RefreshPlaylists(ctx); err != nil {
		vm.log.Warn("playlist refresh failed", zap.Error(err))
	}
	return nil
}

// Play hands a track to the player, superseding any current session.
func (vm *ViewModel) Play(ctx context.Context, record wl.MediaRecord) error {
	track := wl.CurrentTrack{
		MediaID: record.ID,
		Name:    record.Name,
		Artist:  record.Artist,
		URL:     record.URL,
	}
	if err := vm.player.Load(ctx, track); err != nil {
		vm.log.Warn("player load failed", zap.String("track", track.Name), zap.Error(err))
		return err
	}
	return nil
}
