package wl

// SessionAcquireBody is the payload for session.acquire.
type SessionAcquireBody struct {
	TTLMS int64 `json:"ttlMs"`
}

// SessionRenewBody is the payload for session.renew.
type SessionRenewBody struct {
	TTLMS int64 `json:"ttlMs"`
}

// SessionReplyBody is returned by session.acquire.
type SessionReplyBody struct {
	Session      SessionToken `json:"session"`
	StateVersion int64        `json:"stateVersion"`
}

// SessionToken describes an acquired session.
type SessionToken struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	Owner     string `json:"owner"`
	ExpiresAt int64  `json:"expiresAt"`
}

// PlayerLoadBody loads a track into the player, superseding any current one.
type PlayerLoadBody struct {
	Track CurrentTrack `json:"track"`
}

// PlayerSeekBody is the payload for player.seek.
type PlayerSeekBody struct {
	PositionMS int64 `json:"positionMs"`
}

// PlayerSetVolumeBody is the payload for player.setVolume.
type PlayerSetVolumeBody struct {
	Volume float64 `json:"volume"`
}

// QueueSetBody replaces the player queue.
type QueueSetBody struct {
	Tracks     []CurrentTrack `json:"tracks"`
	StartIndex int64          `json:"startIndex"`
}

// QueueJumpBody jumps to an index and starts playback there.
type QueueJumpBody struct {
	Index int64 `json:"index"`
}

// MediaQueryBody filters the media catalog.
type MediaQueryBody struct {
	Type         string `json:"type,omitempty"`
	NameContains string `json:"nameContains,omitempty"`
}

// MediaQueryReply returns matching records newest-first.
type MediaQueryReply struct {
	Records []MediaRecord `json:"records"`
}

// MediaResolveBody looks up records by id.
type MediaResolveBody struct {
	IDs []string `json:"ids"`
}

// MediaResolveReply returns resolved records in request order; unknown ids
// are omitted.
type MediaResolveReply struct {
	Records []MediaRecord `json:"records"`
}

// MediaDeleteBody deletes a record and its blob.
type MediaDeleteBody struct {
	ID string `json:"id"`
}

// MediaSearchBody is the payload for media.search.
type MediaSearchBody struct {
	Query string `json:"query"`
}

// MediaSearchReply returns deduplicated search results.
type MediaSearchReply struct {
	Records []MediaRecord `json:"records"`
}

// RecentSearchesReply returns the caller's recent queries, newest first.
type RecentSearchesReply struct {
	Queries []string `json:"queries"`
}

// PlaylistCreateBody creates a playlist with its ordered membership.
type PlaylistCreateBody struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	MediaIDs []string `json:"mediaIds"`
}

// PlaylistCreateReply returns the created playlist.
type PlaylistCreateReply struct {
	Playlist Playlist `json:"playlist"`
}

// PlaylistDeleteBody deletes a playlist and its membership.
type PlaylistDeleteBody struct {
	ID string `json:"id"`
}

// PlaylistListReply returns the caller's playlists newest-first.
type PlaylistListReply struct {
	Playlists []Playlist `json:"playlists"`
}

// FeedAddBody subscribes to an RSS feed.
type FeedAddBody struct {
	URL string `json:"url"`
}

// FeedRemoveBody removes a feed subscription.
type FeedRemoveBody struct {
	FeedID string `json:"feedId"`
}

// FeedSummary describes one subscribed feed.
type FeedSummary struct {
	FeedID   string `json:"feedId"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Episodes int64  `json:"episodes"`
}

// FeedListReply returns subscribed feeds.
type FeedListReply struct {
	Feeds []FeedSummary `json:"feeds"`
}

// FeedEpisodesBody lists episodes of one feed.
type FeedEpisodesBody struct {
	FeedID string `json:"feedId"`
	Query  string `json:"query,omitempty"`
}

// FeedEpisodesReply returns episodes as playable records.
type FeedEpisodesReply struct {
	Episodes []MediaRecord `json:"episodes"`
}
