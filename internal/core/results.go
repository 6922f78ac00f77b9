package core

import "github.com/wavelength-media/wavelength/pkg/wl"

// NodesResult holds a list of presence records.
type NodesResult struct {
	Nodes []wl.Presence
}

// StatusResult holds player presence and state.
type StatusResult struct {
	Player wl.Presence
	State  wl.PlayerState
}

// SessionResult reports session acquisition details.
type SessionResult struct {
	PlayerID string
	Session  wl.SessionState
}

// TrackListResult holds media records for browse and search output.
type TrackListResult struct {
	Tracks []wl.MediaRecord
}

// UploadResult reports the stored record for an uploaded file.
type UploadResult struct {
	Record wl.MediaRecord
}

// RecentSearchesResult holds a user's recent search queries.
type RecentSearchesResult struct {
	Queries []string
}

// PlaylistListResult holds playlist summaries.
type PlaylistListResult struct {
	Playlists []wl.Playlist
}

// PlaylistShowResult holds a playlist joined with its media rows.
type PlaylistShowResult struct {
	Playlist wl.PlaylistWithSongs
}

// FeedListResult holds subscribed podcast feeds.
type FeedListResult struct {
	Feeds []wl.FeedSummary
}

// EpisodeListResult holds the episodes of one podcast feed.
type EpisodeListResult struct {
	FeedID   string
	Episodes []wl.MediaRecord
}

// RawResult holds arbitrary JSON data for output.
type RawResult struct {
	Data any
}
