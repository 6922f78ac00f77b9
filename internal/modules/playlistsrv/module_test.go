package playlistsrv

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/wavelength-media/wavelength/pkg/wl"
	"go.uber.org/zap"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()
	mod, err := NewModule(zap.NewNop(), nil, Config{
		NodeID: "wl:playlist:test",
		Root:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	return mod
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func ackReply() wl.ReplyEnvelope {
	return wl.ReplyEnvelope{Type: "ack", OK: true}
}

func createPlaylist(t *testing.T, mod *Module, owner, name string, mediaIDs []string) wl.Playlist {
	t.Helper()
	cmd := wl.CommandEnvelope{
		ID:   "c1",
		Type: "playlist.create",
		From: owner,
		Body: mustJSON(t, wl.PlaylistCreateBody{Name: name, Type: wl.MediaAudio, MediaIDs: mediaIDs}),
	}
	reply := mod.playlistCreate(cmd, ackReply())
	if !reply.OK {
		t.Fatalf("create failed: %+v", reply.Err)
	}
	var body wl.PlaylistCreateReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return body.Playlist
}

func TestDispatchRequiresIdentity(t *testing.T) {
	mod := newTestModule(t)
	cmd := wl.CommandEnvelope{ID: "c1", Type: "playlist.list"}
	reply := mod.dispatch(cmd)
	if reply.OK || reply.Err == nil || reply.Err.Code != wl.CodeUnauthenticated {
		t.Fatalf("expected UNAUTHENTICATED, got %+v", reply)
	}
}

func TestCreateAssignsDensePositions(t *testing.T) {
	mod := newTestModule(t)
	pl := createPlaylist(t, mod, "alice", "road trip", []string{"m3", "m1", "m2"})

	if pl.Owner != "alice" || pl.Name != "road trip" {
		t.Fatalf("unexpected playlist %+v", pl)
	}
	if len(pl.Items) != 3 {
		t.Fatalf("items = %+v", pl.Items)
	}
	for i, item := range pl.Items {
		if item.Position != int64(i) {
			t.Fatalf("position at %d = %d", i, item.Position)
		}
	}
	if pl.Items[0].MediaID != "m3" || pl.Items[1].MediaID != "m1" || pl.Items[2].MediaID != "m2" {
		t.Fatalf("selection order lost: %+v", pl.Items)
	}
}

func TestCreateValidation(t *testing.T) {
	mod := newTestModule(t)

	cases := []struct {
		name string
		body wl.PlaylistCreateBody
	}{
		{"blank name", wl.PlaylistCreateBody{Name: "   ", MediaIDs: []string{"m1"}}},
		{"no tracks", wl.PlaylistCreateBody{Name: "mix", MediaIDs: nil}},
	}
	for _, tc := range cases {
		cmd := wl.CommandEnvelope{ID: "c1", Type: "playlist.create", From: "alice", Body: mustJSON(t, tc.body)}
		reply := mod.playlistCreate(cmd, ackReply())
		if reply.OK || reply.Err.Code != wl.CodeInvalid {
			t.Fatalf("%s: expected INVALID, got %+v", tc.name, reply)
		}
	}
	playlists, _ := mod.storage.ListPlaylists()
	if len(playlists) != 0 {
		t.Fatalf("invalid creates must not persist: %+v", playlists)
	}
}

func TestListIsPerOwnerNewestFirst(t *testing.T) {
	mod := newTestModule(t)
	first := createPlaylist(t, mod, "alice", "first", []string{"m1"})
	second := createPlaylist(t, mod, "alice", "second", []string{"m2"})
	createPlaylist(t, mod, "bob", "other", []string{"m3"})

	// Same-second creations order by id; force distinct timestamps instead.
	pl, _, _ := mod.storage.GetPlaylist(second.ID)
	pl.CreatedAt = time.Now().Unix() + 10
	if err := mod.storage.SavePlaylist(pl); err != nil {
		t.Fatalf("save: %v", err)
	}

	reply := mod.playlistList(wl.CommandEnvelope{ID: "c1", Type: "playlist.list", From: "alice"}, ackReply())
	var body wl.PlaylistListReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Playlists) != 2 {
		t.Fatalf("expected alice's two playlists, got %+v", body.Playlists)
	}
	if body.Playlists[0].ID != second.ID || body.Playlists[1].ID != first.ID {
		t.Fatalf("expected newest-first, got %+v", body.Playlists)
	}
}

func TestDeleteCascadesAndChecksOwner(t *testing.T) {
	mod := newTestModule(t)
	pl := createPlaylist(t, mod, "alice", "mix", []string{"m1", "m2"})

	cmd := wl.CommandEnvelope{ID: "c1", Type: "playlist.delete", From: "bob", Body: mustJSON(t, wl.PlaylistDeleteBody{ID: pl.ID})}
	reply := mod.playlistDelete(cmd, ackReply())
	if reply.OK || reply.Err.Code != wl.CodeNotFound {
		t.Fatalf("foreign delete must look like NOT_FOUND, got %+v", reply)
	}

	cmd.From = "alice"
	reply = mod.playlistDelete(cmd, ackReply())
	if !reply.OK {
		t.Fatalf("delete failed: %+v", reply.Err)
	}
	if _, ok, _ := mod.storage.GetPlaylist(pl.ID); ok {
		t.Fatalf("playlist survived delete")
	}
}

func TestDeleteUnknownID(t *testing.T) {
	mod := newTestModule(t)
	cmd := wl.CommandEnvelope{ID: "c1", Type: "playlist.delete", From: "alice", Body: mustJSON(t, wl.PlaylistDeleteBody{ID: "nope"})}
	reply := mod.playlistDelete(cmd, ackReply())
	if reply.OK || reply.Err.Code != wl.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %+v", reply)
	}
}
