package library

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

type fakeMedia struct {
	records   []wl.MediaRecord
	uploadErr error
	queries   int
}

func (f *fakeMedia) Upload(_ context.Context, path string) (wl.MediaRecord, error) {
	if f.uploadErr != nil {
		return wl.MediaRecord{}, f.uploadErr
	}
	rec := wl.MediaRecord{ID: path, Name: path, Type: wl.MediaAudio}
	f.records = append([]wl.MediaRecord{rec}, f.records...)
	return rec, nil
}

func (f *fakeMedia) Query(_ context.Context, _ string) ([]wl.MediaRecord, error) {
	f.queries++
	return append([]wl.MediaRecord(nil), f.records...), nil
}

func (f *fakeMedia) Delete(_ context.Context, _ string) error { return nil }

type fakePlaylists struct {
	lists      []wl.PlaylistWithSongs
	createErr  error
	created    []string
	deletedIDs []string
}

func (f *fakePlaylists) Create(_ context.Context, name, mediaType string, mediaIDs []string) (wl.Playlist, error) {
	if f.createErr != nil {
		return wl.Playlist{}, f.createErr
	}
	f.created = append([]string{name}, f.created...)
	items := make([]wl.PlaylistItem, 0, len(mediaIDs))
	for i, id := range mediaIDs {
		items = append(items, wl.PlaylistItem{MediaID: id, Position: int64(i)})
	}
	pl := wl.Playlist{ID: "pl-" + name, Name: name, Type: mediaType, Items: items}
	f.lists = append([]wl.PlaylistWithSongs{{Playlist: pl}}, f.lists...)
	return pl, nil
}

func (f *fakePlaylists) Delete(_ context.Context, id string) error {
	f.deletedIDs = append(f.deletedIDs, id)
	filtered := f.lists[:0]
	for _, pl := range f.lists {
		if pl.ID != id {
			filtered = append(filtered, pl)
		}
	}
	f.lists = filtered
	return nil
}

func (f *fakePlaylists) List(_ context.Context) ([]wl.PlaylistWithSongs, error) {
	return append([]wl.PlaylistWithSongs(nil), f.lists...), nil
}

type blockingSearch struct {
	calls   chan string
	results chan []wl.MediaRecord
}

func (s *blockingSearch) Search(_ context.Context, query string) ([]wl.MediaRecord, error) {
	s.calls <- query
	return <-s.results, nil
}

type fakeSearch struct {
	byQuery map[string][]wl.MediaRecord
}

func (s *fakeSearch) Search(_ context.Context, query string) ([]wl.MediaRecord, error) {
	return s.byQuery[query], nil
}

type fakePlayer struct {
	loaded []wl.CurrentTrack
}

func (p *fakePlayer) Load(_ context.Context, track wl.CurrentTrack) error {
	p.loaded = append(p.loaded, track)
	return nil
}

type yesConfirmer struct{}

func (yesConfirmer) Confirm(string) bool { return true }

type noConfirmer struct{}

func (noConfirmer) Confirm(string) bool { return false }

func newVM(media MediaStore, playlists PlaylistStore, search SearchIndex, confirm Confirmer) *ViewModel {
	return New(nil, media, playlists, search, &fakePlayer{}, confirm)
}

func TestCreatePlaylistPreservesSelectionOrder(t *testing.T) {
	playlists := &fakePlaylists{}
	vm := newVM(&fakeMedia{}, playlists, &fakeSearch{}, yesConfirmer{})

	vm.SetDraftName("Road Trip")
	vm.ToggleSelect("t1")
	vm.ToggleSelect("t2")

	created, err := vm.CreatePlaylist(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := []wl.PlaylistItem{{MediaID: "t1", Position: 0}, {MediaID: "t2", Position: 1}}
	if !reflect.DeepEqual(created.Items, want) {
		t.Fatalf("items = %+v", created.Items)
	}

	// Draft and selection are cleared on success.
	if vm.DraftName() != "" || len(vm.Selection()) != 0 {
		t.Fatalf("draft not cleared")
	}
	if len(vm.Playlists()) != 1 {
		t.Fatalf("playlists not refreshed")
	}
}

func TestCreatePlaylistValidation(t *testing.T) {
	playlists := &fakePlaylists{}
	vm := newVM(&fakeMedia{}, playlists, &fakeSearch{}, yesConfirmer{})

	vm.SetDraftName("")
	vm.ToggleSelect("t1")
	if _, err := vm.CreatePlaylist(context.Background()); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("err = %v", err)
	}

	vm.SetDraftName("x")
	vm.ToggleSelect("t1") // deselect, leaving the selection empty
	if _, err := vm.CreatePlaylist(context.Background()); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v", err)
	}

	// Neither attempt reached the store.
	if len(playlists.created) != 0 {
		t.Fatalf("store called: %v", playlists.created)
	}
}

func TestToggleSelectIsIdempotentUnderDoubleApplication(t *testing.T) {
	vm := newVM(&fakeMedia{}, &fakePlaylists{}, &fakeSearch{}, yesConfirmer{})

	vm.ToggleSelect("t1")
	before := vm.Selection()

	vm.ToggleSelect("t2")
	vm.ToggleSelect("t2")
	if got := vm.Selection(); !reflect.DeepEqual(got, before) {
		t.Fatalf("selection = %v, want %v", got, before)
	}
}

func TestDeleteActivePlaylistClearsActive(t *testing.T) {
	playlists := &fakePlaylists{lists: []wl.PlaylistWithSongs{
		{Playlist: wl.Playlist{ID: "p1", Name: "one"}},
		{Playlist: wl.Playlist{ID: "p2", Name: "two"}},
	}}
	vm := newVM(&fakeMedia{}, playlists, &fakeSearch{}, yesConfirmer{})
	if err := vm.RefreshPlaylists(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if !vm.OpenPlaylist("p1") {
		t.Fatalf("open failed")
	}

	// Deleting another playlist leaves the active one untouched.
	if err := vm.DeletePlaylist(context.Background(), "p2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if active, ok := vm.ActivePlaylist(); !ok || active.ID != "p1" {
		t.Fatalf("active = %+v ok=%v", active, ok)
	}

	if err := vm.DeletePlaylist(context.Background(), "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := vm.ActivePlaylist(); ok {
		t.Fatalf("active playlist not cleared")
	}
}

func TestDeletePlaylistDeclinedIsNoop(t *testing.T) {
	playlists := &fakePlaylists{lists: []wl.PlaylistWithSongs{
		{Playlist: wl.Playlist{ID: "p1", Name: "one"}},
	}}
	vm := newVM(&fakeMedia{}, playlists, &fakeSearch{}, noConfirmer{})

	if err := vm.DeletePlaylist(context.Background(), "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(playlists.deletedIDs) != 0 {
		t.Fatalf("store called despite declined confirmation")
	}
}

func TestSearchEmptyQueryClearsResults(t *testing.T) {
	search := &fakeSearch{byQuery: map[string][]wl.MediaRecord{
		"drift": {{ID: "t1", Name: "Driftwood"}},
	}}
	vm := newVM(&fakeMedia{}, &fakePlaylists{}, search, yesConfirmer{})

	if err := vm.Search(context.Background(), "drift"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(vm.SearchResults()) != 1 {
		t.Fatalf("results = %v", vm.SearchResults())
	}

	if err := vm.Search(context.Background(), "   "); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(vm.SearchResults()) != 0 {
		t.Fatalf("results not cleared")
	}
}

func TestSearchSupersededResponseDiscarded(t *testing.T) {
	search := &blockingSearch{calls: make(chan string), results: make(chan []wl.MediaRecord)}
	vm := newVM(&fakeMedia{}, &fakePlaylists{}, search, yesConfirmer{})

	firstDone := make(chan error, 1)
	go func() { firstDone <- vm.Search(context.Background(), "old") }()
	<-search.calls

	secondDone := make(chan error, 1)
	go func() { secondDone <- vm.Search(context.Background(), "new") }()
	<-search.calls

	// The newer query resolves first; the older response arrives after and
	// must not overwrite it.
	search.results <- []wl.MediaRecord{{ID: "n", Name: "new result"}}
	if err := <-secondDone; err != nil {
		t.Fatalf("second search: %v", err)
	}
	search.results <- []wl.MediaRecord{{ID: "o", Name: "old result"}}
	if err := <-firstDone; err != nil {
		t.Fatalf("first search: %v", err)
	}

	results := vm.SearchResults()
	if len(results) != 1 || results[0].ID != "n" {
		t.Fatalf("results = %+v", results)
	}
}

func TestUploadRefreshesTracks(t *testing.T) {
	media := &fakeMedia{}
	vm := newVM(media, &fakePlaylists{}, &fakeSearch{}, yesConfirmer{})

	if _, err := vm.Upload(context.Background(), "song.mp3"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(vm.Tracks()) != 1 {
		t.Fatalf("tracks = %v", vm.Tracks())
	}
	if media.queries != 1 {
		t.Fatalf("queries = %d", media.queries)
	}
}

func TestUploadFailureLeavesStateUnchanged(t *testing.T) {
	media := &fakeMedia{uploadErr: errors.New("store down")}
	vm := newVM(media, &fakePlaylists{}, &fakeSearch{}, yesConfirmer{})

	if _, err := vm.Upload(context.Background(), "song.mp3"); err == nil {
		t.Fatalf("expected error")
	}
	if len(vm.Tracks()) != 0 {
		t.Fatalf("tracks mutated on failure")
	}
	if vm.Uploading() {
		t.Fatalf("uploading flag stuck")
	}
}
