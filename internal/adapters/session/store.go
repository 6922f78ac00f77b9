package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

// Store saves player sessions under XDG_STATE_HOME or ~/.local/state.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a session store.
func NewStore() (*Store, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// Get returns a session for a player if stored.
func (s *Store) Get(playerID string) (wl.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readAll()
	if err != nil {
		return wl.Session{}, false, err
	}
	sess, ok := data[playerID]
	return sess, ok, nil
}

// Put stores a session for a player.
func (s *Store) Put(playerID string, sess wl.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readAll()
	if err != nil {
		return err
	}
	data[playerID] = sess
	return s.writeAll(data)
}

// Clear removes a session for a player.
func (s *Store) Clear(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readAll()
	if err != nil {
		return err
	}
	delete(data, playerID)
	return s.writeAll(data)
}

func (s *Store) readAll() (map[string]wl.Session, error) {
	data := map[string]wl.Session{}
	file, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, nil
		}
		return nil, err
	}
	if len(file) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) writeAll(data map[string]wl.Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, payload, 0o600)
}

func sessionPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "wave", "sessions.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "wave", "sessions.json"), nil
}
