package playlistsrv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

// Storage persists playlists as one JSON document per playlist. Membership
// lives inside the document, so deleting the document cascades.
type Storage struct {
	root string
	mu   sync.Mutex
}

// NewStorage prepares a playlist storage rooted at root.
func NewStorage(root string) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Storage{root: root}, nil
}

func (s *Storage) playlistPath(id string) string {
	return filepath.Join(s.root, safeFilename(id)+".json")
}

// SavePlaylist writes a playlist document atomically.
func (s *Storage) SavePlaylist(pl wl.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.playlistPath(pl.ID), pl)
}

// GetPlaylist loads one playlist by id.
func (s *Storage) GetPlaylist(id string) (wl.Playlist, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pl wl.Playlist
	err := readJSON(s.playlistPath(id), &pl)
	if err != nil {
		if os.IsNotExist(err) {
			return wl.Playlist{}, false, nil
		}
		return wl.Playlist{}, false, err
	}
	return pl, true, nil
}

// ListPlaylists returns all playlists newest-first.
func (s *Storage) ListPlaylists() ([]wl.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.root, "*.json"))
	if err != nil {
		return nil, err
	}
	playlists := make([]wl.Playlist, 0, len(matches))
	for _, match := range matches {
		var pl wl.Playlist
		if err := readJSON(match, &pl); err != nil {
			return nil, fmt.Errorf("read %s: %w", match, err)
		}
		playlists = append(playlists, pl)
	}
	sort.Slice(playlists, func(i, j int) bool {
		if playlists[i].CreatedAt != playlists[j].CreatedAt {
			return playlists[i].CreatedAt > playlists[j].CreatedAt
		}
		return playlists[i].ID > playlists[j].ID
	})
	return playlists, nil
}

// DeletePlaylist removes a playlist document and its membership with it.
func (s *Storage) DeletePlaylist(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.playlistPath(id))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func safeFilename(id string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return replacer.Replace(id)
}
