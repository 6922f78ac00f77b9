package wl

// Media types.
const (
	MediaAudio = "audio"
	MediaVideo = "video"
)

// MediaRecord is one stored media file's metadata row. Records are created
// by upload and immutable afterwards except for deletion.
type MediaRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	Artist    string `json:"artist,omitempty"`
	Owner     string `json:"owner"`
	CreatedAt int64  `json:"createdAt"`
}

// PlaylistItem references a media record at a position within a playlist.
// Positions are a dense 0..n-1 sequence unique per playlist.
type PlaylistItem struct {
	MediaID  string `json:"mediaId"`
	Position int64  `json:"position"`
}

// Playlist is a named, ordered collection of media references owned by one
// user. The referenced records are never owned by the playlist.
type Playlist struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Owner     string         `json:"owner"`
	Items     []PlaylistItem `json:"items"`
	CreatedAt int64          `json:"createdAt"`
}

// PlaylistWithSongs is a playlist joined to its media records, in position
// order. The join happens controller-side via media.resolve.
type PlaylistWithSongs struct {
	Playlist
	Songs []MediaRecord `json:"songs"`
}
