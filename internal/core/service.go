package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wavelength-media/wavelength/internal/ports"
	"github.com/wavelength-media/wavelength/pkg/wl"
)

// Service orchestrates wave CLI use cases.
type Service struct {
	Broker   ports.Broker
	Resolver Resolver
	Clock    ports.Clock
	IDGen    ports.IDGen
	Sessions ports.SessionStore
	Config   Config
	HTTP     *http.Client
}

const defaultSessionTTL = 5 * time.Minute

// ListNodes returns presence entries with optional filters.
func (s Service) ListNodes(ctx context.Context, kind string, onlineOnly bool) (NodesResult, error) {
	nodes, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return NodesResult{}, WrapError(ExitRuntime, "list nodes", err)
	}
	if kind != "" {
		filtered := nodes[:0]
		for _, node := range nodes {
			if node.Kind == kind {
				filtered = append(filtered, node)
			}
		}
		nodes = filtered
	}
	// Online filtering relies on presence; with retained presence this is best-effort.
	if onlineOnly {
		filtered := nodes[:0]
		for _, node := range nodes {
			if node.TS > 0 {
				filtered = append(filtered, node)
			}
		}
		nodes = filtered
	}
	return NodesResult{Nodes: nodes}, nil
}

// Status returns player presence and state.
func (s Service) Status(ctx context.Context, selector string) (StatusResult, error) {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	state, err := s.Broker.GetPlayerState(ctx, player.NodeID)
	if err != nil {
		return StatusResult{}, WrapError(ExitRuntime, "get player state", err)
	}
	return StatusResult{Player: player, State: state}, nil
}

// WatchStatus streams state and events for a player.
func (s Service) WatchStatus(ctx context.Context, selector string) (<-chan wl.PlayerState, <-chan wl.Event, <-chan error, error) {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return nil, nil, nil, err
	}
	states, events, errs := s.Broker.WatchPlayer(ctx, player.NodeID)
	return states, events, errs, nil
}

// AcquireSession acquires a player session and caches it.
func (s Service) AcquireSession(ctx context.Context, selector string, ttl time.Duration) (SessionResult, error) {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return SessionResult{}, err
	}

	cmd, err := wl.NewCommand("session.acquire", wl.SessionAcquireBody{TTLMS: ttl.Milliseconds()})
	if err != nil {
		return SessionResult{}, WrapError(ExitRuntime, "build command", err)
	}

	cmd = s.decorateCommand(cmd, nil)
	reply, err := s.Broker.PublishCommand(ctx, player.NodeID, cmd)
	if err != nil {
		return SessionResult{}, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return SessionResult{}, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}

	var body wl.SessionReplyBody
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return SessionResult{}, WrapError(ExitRuntime, "decode session reply", err)
	}

	session := wl.Session{ID: body.Session.ID, Token: body.Session.Token}
	if err := s.Sessions.Put(player.NodeID, session); err != nil {
		return SessionResult{}, WrapError(ExitRuntime, "store session", err)
	}

	state := wl.SessionState{ID: body.Session.ID, Owner: body.Session.Owner, ExpiresAt: body.Session.ExpiresAt}
	return SessionResult{PlayerID: player.NodeID, Session: state}, nil
}

// RenewSession renews the cached session for a player.
func (s Service) RenewSession(ctx context.Context, selector string, ttl time.Duration) error {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return err
	}
	session, err := s.lookupSession(player.NodeID)
	if err != nil {
		return err
	}

	cmd, err := wl.NewCommand("session.renew", wl.SessionRenewBody{TTLMS: ttl.Milliseconds()})
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}

	cmd = s.decorateCommand(cmd, &session)
	reply, err := s.Broker.PublishCommand(ctx, player.NodeID, cmd)
	if err != nil {
		return WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	return nil
}

// ReleaseSession releases a cached session for a player.
func (s Service) ReleaseSession(ctx context.Context, selector string) error {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return err
	}
	session, err := s.lookupSession(player.NodeID)
	if err != nil {
		return err
	}

	cmd, err := wl.NewCommand("session.release", struct{}{})
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}

	cmd = s.decorateCommand(cmd, &session)
	reply, err := s.Broker.PublishCommand(ctx, player.NodeID, cmd)
	if err != nil {
		return WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}

	if err := s.Sessions.Clear(player.NodeID); err != nil {
		return WrapError(ExitRuntime, "clear session", err)
	}
	return nil
}

// Owner returns the player session owner.
func (s Service) Owner(ctx context.Context, selector string) (string, error) {
	result, err := s.Status(ctx, selector)
	if err != nil {
		return "", err
	}
	if result.State.Session == nil {
		return "", &CLIError{Code: ExitNotFound, Msg: "no session"}
	}
	return result.State.Session.Owner, nil
}

// Play resolves a media reference on the library and loads it into the player.
func (s Service) Play(ctx context.Context, playerSelector, librarySelector, mediaRef string) (wl.MediaRecord, error) {
	record, err := s.resolveMediaRecord(ctx, librarySelector, mediaRef)
	if err != nil {
		return wl.MediaRecord{}, err
	}
	track := wl.CurrentTrack{MediaID: record.ID, Name: record.Name, Artist: record.Artist, URL: record.URL}
	if err := s.PlayerLoad(ctx, playerSelector, track); err != nil {
		return wl.MediaRecord{}, err
	}
	return record, nil
}

// PlayerLoad sends player.load with a track, superseding whatever is current.
func (s Service) PlayerLoad(ctx context.Context, selector string, track wl.CurrentTrack) error {
	return s.simpleSessionCmd(ctx, selector, "player.load", wl.PlayerLoadBody{Track: track})
}

// PlayerToggle sends player.toggle.
func (s Service) PlayerToggle(ctx context.Context, selector string) error {
	return s.simpleSessionCmd(ctx, selector, "player.toggle", struct{}{})
}

// PlayerStop sends player.stop.
func (s Service) PlayerStop(ctx context.Context, selector string) error {
	return s.simpleSessionCmd(ctx, selector, "player.stop", struct{}{})
}

// PlayerNext sends player.next.
func (s Service) PlayerNext(ctx context.Context, selector string) error {
	return s.simpleSessionCmd(ctx, selector, "player.next", struct{}{})
}

// PlayerPrev sends player.prev.
func (s Service) PlayerPrev(ctx context.Context, selector string) error {
	return s.simpleSessionCmd(ctx, selector, "player.prev", struct{}{})
}

// PlayerSeek sends player.seek with absolute or relative position.
func (s Service) PlayerSeek(ctx context.Context, selector string, seekArg string) error {
	position, err := s.resolveSeekPosition(ctx, selector, seekArg)
	if err != nil {
		return err
	}
	return s.simpleSessionCmd(ctx, selector, "player.seek", wl.PlayerSeekBody{PositionMS: position})
}

// SetVolume sets or adjusts player volume.
func (s Service) SetVolume(ctx context.Context, selector string, arg string) error {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return err
	}
	session, err := s.lookupSession(player.NodeID)
	if err != nil {
		return err
	}

	vol, err := s.resolveVolume(ctx, player.NodeID, arg)
	if err != nil {
		return err
	}
	cmd, err := wl.NewCommand("player.setVolume", wl.PlayerSetVolumeBody{Volume: vol})
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, &session)
	return s.publishSimple(ctx, player.NodeID, cmd)
}

// MuteToggle sends player.muteToggle.
func (s Service) MuteToggle(ctx context.Context, selector string) error {
	return s.simpleSessionCmd(ctx, selector, "player.muteToggle", struct{}{})
}

// QueueSet replaces the player queue with resolved media references.
func (s Service) QueueSet(ctx context.Context, playerSelector, librarySelector string, refs []string, startIndex int64) error {
	tracks := make([]wl.CurrentTrack, 0, len(refs))
	for _, ref := range refs {
		record, err := s.resolveMediaRecord(ctx, librarySelector, ref)
		if err != nil {
			return err
		}
		tracks = append(tracks, wl.CurrentTrack{MediaID: record.ID, Name: record.Name, Artist: record.Artist, URL: record.URL})
	}
	if startIndex < 0 || startIndex >= int64(len(tracks)) {
		startIndex = 0
	}
	return s.simpleSessionCmd(ctx, playerSelector, "queue.set", wl.QueueSetBody{Tracks: tracks, StartIndex: startIndex})
}

// QueuePlaylist loads a playlist's tracks into the player queue.
func (s Service) QueuePlaylist(ctx context.Context, playerSelector, serverSelector, librarySelector, playlistRef string) error {
	shown, err := s.PlaylistShow(ctx, serverSelector, librarySelector, playlistRef)
	if err != nil {
		return err
	}
	tracks := make([]wl.CurrentTrack, 0, len(shown.Playlist.Songs))
	for _, song := range shown.Playlist.Songs {
		tracks = append(tracks, wl.CurrentTrack{MediaID: song.ID, Name: song.Name, Artist: song.Artist, URL: song.URL})
	}
	if len(tracks) == 0 {
		return &CLIError{Code: ExitNotFound, Msg: "playlist has no playable tracks"}
	}
	return s.simpleSessionCmd(ctx, playerSelector, "queue.set", wl.QueueSetBody{Tracks: tracks, StartIndex: 0})
}

// QueueJump jumps to index and starts playback there.
func (s Service) QueueJump(ctx context.Context, selector string, index int64) error {
	return s.simpleSessionCmd(ctx, selector, "queue.jump", wl.QueueJumpBody{Index: index})
}

// QueueClear clears the queue.
func (s Service) QueueClear(ctx context.Context, selector string) error {
	return s.simpleSessionCmd(ctx, selector, "queue.clear", struct{}{})
}

// Upload posts a local file to the library's HTTP upload endpoint and
// returns the stored record.
func (s Service) Upload(ctx context.Context, librarySelector string, path string) (UploadResult, error) {
	library, err := s.Resolver.ResolveLibrary(ctx, librarySelector)
	if err != nil {
		return UploadResult{}, err
	}
	base := library.Endpoints["http"]
	if base == "" {
		return UploadResult{}, &CLIError{Code: ExitRuntime, Msg: "library has no http endpoint"}
	}

	file, err := os.Open(path)
	if err != nil {
		return UploadResult{}, WrapError(ExitUsage, "open file", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/upload", pr)
	if err != nil {
		return UploadResult{}, WrapError(ExitRuntime, "build upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Wavelength-User", s.Config.Identity)

	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return UploadResult{}, WrapError(ExitRuntime, "upload", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, WrapError(ExitRuntime, "read upload reply", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg := strings.TrimSpace(string(payload))
		if msg == "" {
			msg = resp.Status
		}
		return UploadResult{}, &CLIError{Code: ExitRuntime, Msg: fmt.Sprintf("upload failed: %s", msg)}
	}

	var record wl.MediaRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return UploadResult{}, WrapError(ExitRuntime, "decode upload reply", err)
	}
	return UploadResult{Record: record}, nil
}

// Tracks queries the library catalog, newest first.
func (s Service) Tracks(ctx context.Context, librarySelector string, mediaType string, nameContains string) (TrackListResult, error) {
	library, err := s.Resolver.ResolveLibrary(ctx, librarySelector)
	if err != nil {
		return TrackListResult{}, err
	}
	cmd, err := wl.NewCommand("media.query", wl.MediaQueryBody{Type: mediaType, NameContains: nameContains})
	if err != nil {
		return TrackListResult{}, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	reply, err := s.Broker.PublishCommand(ctx, library.NodeID, cmd)
	if err != nil {
		return TrackListResult{}, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return TrackListResult{}, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var body wl.MediaQueryReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return TrackListResult{}, WrapError(ExitRuntime, "decode media reply", err)
	}
	return TrackListResult{Tracks: body.Records}, nil
}

// SearchTracks runs a catalog search and records the query server-side.
func (s Service) SearchTracks(ctx context.Context, librarySelector string, query string) (TrackListResult, error) {
	library, err := s.Resolver.ResolveLibrary(ctx, librarySelector)
	if err != nil {
		return TrackListResult{}, err
	}
	cmd, err := wl.NewCommand("media.search", wl.MediaSearchBody{Query: query})
	if err != nil {
		return TrackListResult{}, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	reply, err := s.Broker.PublishCommand(ctx, library.NodeID, cmd)
	if err != nil {
		return TrackListResult{}, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return TrackListResult{}, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var body wl.MediaSearchReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return TrackListResult{}, WrapError(ExitRuntime, "decode search reply", err)
	}
	return TrackListResult{Tracks: body.Records}, nil
}

// RecentSearches returns the caller's recent queries, newest first.
func (s Service) RecentSearches(ctx context.Context, librarySelector string) (RecentSearchesResult, error) {
	library, err := s.Resolver.ResolveLibrary(ctx, librarySelector)
	if err != nil {
		return RecentSearchesResult{}, err
	}
	cmd, err := wl.NewCommand("search.recent", struct{}{})
	if err != nil {
		return RecentSearchesResult{}, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	reply, err := s.Broker.PublishCommand(ctx, library.NodeID, cmd)
	if err != nil {
		return RecentSearchesResult{}, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return RecentSearchesResult{}, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var body wl.RecentSearchesReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return RecentSearchesResult{}, WrapError(ExitRuntime, "decode recent reply", err)
	}
	return RecentSearchesResult{Queries: body.Queries}, nil
}

// ClearRecentSearches removes the caller's recent query history.
func (s Service) ClearRecentSearches(ctx context.Context, librarySelector string) error {
	library, err := s.Resolver.ResolveLibrary(ctx, librarySelector)
	if err != nil {
		return err
	}
	cmd, err := wl.NewCommand("search.clear", struct{}{})
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	return s.publishSimple(ctx, library.NodeID, cmd)
}

// DeleteMedia removes a record and its stored file.
func (s Service) DeleteMedia(ctx context.Context, librarySelector string, mediaRef string) error {
	record, err := s.resolveMediaRecord(ctx, librarySelector, mediaRef)
	if err != nil {
		return err
	}
	library, err := s.Resolver.ResolveLibrary(ctx, librarySelector)
	if err != nil {
		return err
	}
	cmd, err := wl.NewCommand("media.delete", wl.MediaDeleteBody{ID: record.ID})
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	return s.publishSimple(ctx, library.NodeID, cmd)
}

// ResolveMedia looks up records by id, preserving request order.
func (s Service) ResolveMedia(ctx context.Context, librarySelector string, ids []string) ([]wl.MediaRecord, error) {
	library, err := s.Resolver.ResolveLibrary(ctx, librarySelector)
	if err != nil {
		return nil, err
	}
	return s.resolveMediaByNodeID(ctx, library.NodeID, ids)
}

func (s Service) resolveMediaByNodeID(ctx context.Context, nodeID string, ids []string) ([]wl.MediaRecord, error) {
	cmd, err := wl.NewCommand("media.resolve", wl.MediaResolveBody{IDs: ids})
	if err != nil {
		return nil, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return nil, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return nil, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var body wl.MediaResolveReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return nil, WrapError(ExitRuntime, "decode resolve reply", err)
	}
	return body.Records, nil
}

// PlaylistCreate creates a playlist with ordered membership.
func (s Service) PlaylistCreate(ctx context.Context, serverSelector, librarySelector, name, mediaType string, mediaRefs []string) (wl.Playlist, error) {
	if strings.TrimSpace(name) == "" {
		return wl.Playlist{}, &CLIError{Code: ExitUsage, Msg: "playlist name required"}
	}
	if len(mediaRefs) == 0 {
		return wl.Playlist{}, &CLIError{Code: ExitUsage, Msg: "at least one track required"}
	}
	server, err := s.Resolver.ResolvePlaylistServer(ctx, serverSelector)
	if err != nil {
		return wl.Playlist{}, err
	}
	ids := make([]string, 0, len(mediaRefs))
	for _, ref := range mediaRefs {
		record, err := s.resolveMediaRecord(ctx, librarySelector, ref)
		if err != nil {
			return wl.Playlist{}, err
		}
		ids = append(ids, record.ID)
	}
	cmd, err := wl.NewCommand("playlist.create", wl.PlaylistCreateBody{Name: name, Type: mediaType, MediaIDs: ids})
	if err != nil {
		return wl.Playlist{}, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	reply, err := s.Broker.PublishCommand(ctx, server.NodeID, cmd)
	if err != nil {
		return wl.Playlist{}, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return wl.Playlist{}, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var body wl.PlaylistCreateReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return wl.Playlist{}, WrapError(ExitRuntime, "decode playlist reply", err)
	}
	return body.Playlist, nil
}

// PlaylistList lists the caller's playlists, newest first.
func (s Service) PlaylistList(ctx context.Context, serverSelector string) (PlaylistListResult, error) {
	server, err := s.Resolver.ResolvePlaylistServer(ctx, serverSelector)
	if err != nil {
		return PlaylistListResult{}, err
	}
	playlists, err := s.listPlaylists(ctx, server.NodeID)
	if err != nil {
		return PlaylistListResult{}, err
	}
	return PlaylistListResult{Playlists: playlists}, nil
}

// PlaylistShow fetches a playlist and joins its membership against the
// library catalog. Tracks come back in playlist position order; ids that
// no longer resolve are dropped.
func (s Service) PlaylistShow(ctx context.Context, serverSelector, librarySelector, playlistRef string) (PlaylistShowResult, error) {
	server, err := s.Resolver.ResolvePlaylistServer(ctx, serverSelector)
	if err != nil {
		return PlaylistShowResult{}, err
	}
	playlist, err := s.resolvePlaylist(ctx, server.NodeID, playlistRef)
	if err != nil {
		return PlaylistShowResult{}, err
	}

	items := append([]wl.PlaylistItem(nil), playlist.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.MediaID)
	}

	songs := []wl.MediaRecord{}
	if len(ids) > 0 {
		library, err := s.Resolver.ResolveLibrary(ctx, librarySelector)
		if err != nil {
			return PlaylistShowResult{}, err
		}
		songs, err = s.resolveMediaByNodeID(ctx, library.NodeID, ids)
		if err != nil {
			return PlaylistShowResult{}, err
		}
	}
	return PlaylistShowResult{Playlist: wl.PlaylistWithSongs{Playlist: playlist, Songs: songs}}, nil
}

// PlaylistDelete removes a playlist and its membership.
func (s Service) PlaylistDelete(ctx context.Context, serverSelector string, playlistRef string) error {
	server, err := s.Resolver.ResolvePlaylistServer(ctx, serverSelector)
	if err != nil {
		return err
	}
	playlist, err := s.resolvePlaylist(ctx, server.NodeID, playlistRef)
	if err != nil {
		return err
	}
	cmd, err := wl.NewCommand("playlist.delete", wl.PlaylistDeleteBody{ID: playlist.ID})
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	return s.publishSimple(ctx, server.NodeID, cmd)
}

// FeedAdd subscribes the feed server to an RSS url.
func (s Service) FeedAdd(ctx context.Context, serverSelector string, url string) error {
	server, err := s.Resolver.ResolveFeedServer(ctx, serverSelector)
	if err != nil {
		return err
	}
	cmd, err := wl.NewCommand("feed.add", wl.FeedAddBody{URL: url})
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	return s.publishSimple(ctx, server.NodeID, cmd)
}

// FeedRemove drops a feed subscription.
func (s Service) FeedRemove(ctx context.Context, serverSelector string, feedID string) error {
	server, err := s.Resolver.ResolveFeedServer(ctx, serverSelector)
	if err != nil {
		return err
	}
	cmd, err := wl.NewCommand("feed.remove", wl.FeedRemoveBody{FeedID: feedID})
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	return s.publishSimple(ctx, server.NodeID, cmd)
}

// FeedList lists subscribed feeds.
func (s Service) FeedList(ctx context.Context, serverSelector string) (FeedListResult, error) {
	server, err := s.Resolver.ResolveFeedServer(ctx, serverSelector)
	if err != nil {
		return FeedListResult{}, err
	}
	cmd, err := wl.NewCommand("feed.list", struct{}{})
	if err != nil {
		return FeedListResult{}, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	reply, err := s.Broker.PublishCommand(ctx, server.NodeID, cmd)
	if err != nil {
		return FeedListResult{}, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return FeedListResult{}, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var body wl.FeedListReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return FeedListResult{}, WrapError(ExitRuntime, "decode feed reply", err)
	}
	return FeedListResult{Feeds: body.Feeds}, nil
}

// FeedEpisodes lists the episodes of one feed as playable records.
func (s Service) FeedEpisodes(ctx context.Context, serverSelector string, feedID string, query string) (EpisodeListResult, error) {
	server, err := s.Resolver.ResolveFeedServer(ctx, serverSelector)
	if err != nil {
		return EpisodeListResult{}, err
	}
	cmd, err := wl.NewCommand("feed.episodes", wl.FeedEpisodesBody{FeedID: feedID, Query: query})
	if err != nil {
		return EpisodeListResult{}, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	reply, err := s.Broker.PublishCommand(ctx, server.NodeID, cmd)
	if err != nil {
		return EpisodeListResult{}, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return EpisodeListResult{}, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var body wl.FeedEpisodesReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return EpisodeListResult{}, WrapError(ExitRuntime, "decode episodes reply", err)
	}
	return EpisodeListResult{FeedID: feedID, Episodes: body.Episodes}, nil
}

func (s Service) listPlaylists(ctx context.Context, nodeID string) ([]wl.Playlist, error) {
	cmd, err := wl.NewCommand("playlist.list", struct{}{})
	if err != nil {
		return nil, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return nil, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return nil, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var body wl.PlaylistListReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return nil, WrapError(ExitRuntime, "decode playlist reply", err)
	}
	return body.Playlists, nil
}

func (s Service) resolvePlaylist(ctx context.Context, nodeID string, ref string) (wl.Playlist, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return wl.Playlist{}, &CLIError{Code: ExitUsage, Msg: "playlist id or name required"}
	}
	playlists, err := s.listPlaylists(ctx, nodeID)
	if err != nil {
		return wl.Playlist{}, err
	}
	matches := make([]wl.Playlist, 0)
	for _, pl := range playlists {
		if pl.ID == ref || strings.EqualFold(pl.Name, ref) {
			matches = append(matches, pl)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return wl.Playlist{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("playlist not found: %s", ref)}
	}
	return wl.Playlist{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous playlist name %q", ref)}
}

func (s Service) resolveMediaRecord(ctx context.Context, librarySelector string, ref string) (wl.MediaRecord, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return wl.MediaRecord{}, &CLIError{Code: ExitUsage, Msg: "media id or name required"}
	}
	library, err := s.Resolver.ResolveLibrary(ctx, librarySelector)
	if err != nil {
		return wl.MediaRecord{}, err
	}

	if records, err := s.resolveMediaByNodeID(ctx, library.NodeID, []string{ref}); err == nil && len(records) == 1 {
		return records[0], nil
	}

	result, err := s.queryLibrary(ctx, library.NodeID, wl.MediaQueryBody{NameContains: ref})
	if err != nil {
		return wl.MediaRecord{}, err
	}
	matches := make([]wl.MediaRecord, 0)
	for _, record := range result {
		if strings.EqualFold(record.Name, ref) {
			matches = append(matches, record)
		}
	}
	if len(matches) == 0 && len(result) == 1 {
		return result[0], nil
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return wl.MediaRecord{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no media match for %q", ref)}
	}
	return wl.MediaRecord{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous media name %q", ref)}
}

func (s Service) queryLibrary(ctx context.Context, nodeID string, body wl.MediaQueryBody) ([]wl.MediaRecord, error) {
	cmd, err := wl.NewCommand("media.query", body)
	if err != nil {
		return nil, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, nil)
	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return nil, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return nil, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var payload wl.MediaQueryReply
	if err := json.Unmarshal(reply.Body, &payload); err != nil {
		return nil, WrapError(ExitRuntime, "decode media reply", err)
	}
	return payload.Records, nil
}

func (s Service) simpleSessionCmd(ctx context.Context, selector string, cmdType string, body any) error {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return err
	}
	session, err := s.lookupSession(player.NodeID)
	if err != nil {
		return err
	}
	cmd, err := wl.NewCommand(cmdType, body)
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, &session)
	return s.publishSimple(ctx, player.NodeID, cmd)
}

func (s Service) publishSimple(ctx context.Context, nodeID string, cmd wl.CommandEnvelope) error {
	if cmd.Session != nil && !isSessionCommand(cmd.Type) {
		if err := s.refreshSession(ctx, nodeID, *cmd.Session); err != nil {
			return err
		}
	}
	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	return nil
}

func (s Service) decorateCommand(cmd wl.CommandEnvelope, session *wl.Session) wl.CommandEnvelope {
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.Clock.NowUnix()
	cmd.From = s.Config.Identity
	cmd.ReplyTo = s.Broker.ReplyTopic()
	cmd.Session = session
	return cmd
}

func (s Service) refreshSession(ctx context.Context, nodeID string, session wl.Session) error {
	cmd, err := wl.NewCommand("session.renew", wl.SessionRenewBody{TTLMS: defaultSessionTTL.Milliseconds()})
	if err != nil {
		return WrapError(ExitRuntime, "build renew", err)
	}
	cmd = s.decorateCommand(cmd, &session)
	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return WrapError(ExitRuntime, "renew session", err)
	}
	if reply.Err != nil {
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	return nil
}

func isSessionCommand(cmdType string) bool {
	return cmdType == "session.acquire" || cmdType == "session.renew" || cmdType == "session.release"
}

func (s Service) lookupSession(playerID string) (wl.Session, error) {
	session, ok, err := s.Sessions.Get(playerID)
	if err != nil {
		return wl.Session{}, WrapError(ExitRuntime, "load session", err)
	}
	if !ok {
		return wl.Session{}, &CLIError{Code: ExitSession, Msg: "session required: run 'wave acquire <player>'"}
	}
	return session, nil
}

func (s Service) resolveSeekPosition(ctx context.Context, selector string, arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, &CLIError{Code: ExitUsage, Msg: "seek position required"}
	}

	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		delta, err := parseDurationToMS(arg)
		if err != nil {
			return 0, err
		}
		status, err := s.Status(ctx, selector)
		if err != nil {
			return 0, err
		}
		if status.State.Playback == nil {
			return 0, &CLIError{Code: ExitRuntime, Msg: "no playback state"}
		}
		pos := status.State.Playback.PositionMS + delta
		if pos < 0 {
			pos = 0
		}
		return pos, nil
	}
	return parseDurationToMS(arg)
}

func (s Service) resolveVolume(ctx context.Context, playerID string, arg string) (float64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, &CLIError{Code: ExitUsage, Msg: "volume argument required"}
	}

	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		delta, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return 0, &CLIError{Code: ExitUsage, Msg: "invalid volume delta"}
		}
		state, err := s.Broker.GetPlayerState(ctx, playerID)
		if err != nil {
			return 0, WrapError(ExitRuntime, "get player state", err)
		}
		if state.Playback == nil {
			return 0, &CLIError{Code: ExitRuntime, Msg: "no playback state"}
		}
		current := state.Playback.Volume * 100
		return clampVolume((current + delta) / 100), nil
	}

	value, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, &CLIError{Code: ExitUsage, Msg: "invalid volume"}
	}
	return clampVolume(value / 100), nil
}

func clampVolume(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func parseDurationToMS(arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, &CLIError{Code: ExitUsage, Msg: "duration required"}
	}
	if strings.HasSuffix(arg, "ms") || strings.HasSuffix(arg, "s") || strings.HasSuffix(arg, "m") || strings.HasSuffix(arg, "h") {
		dur, err := time.ParseDuration(arg)
		if err != nil {
			return 0, &CLIError{Code: ExitUsage, Msg: "invalid duration"}
		}
		return int64(dur / time.Millisecond), nil
	}
	value, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, &CLIError{Code: ExitUsage, Msg: "invalid duration"}
	}
	return value, nil
}
