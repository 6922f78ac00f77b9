package mediastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

const recentSearchLimit = 5

// Storage persists media blobs, metadata rows, and per-user search
// history under a single root directory.
type Storage struct {
	root string
	mu   sync.Mutex
}

// NewStorage creates a storage at root.
func NewStorage(root string) (*Storage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage path required")
	}
	return &Storage{root: root}, nil
}

func (s *Storage) blobPath(filename string) string {
	return filepath.Join(s.root, "blobs", safeFilename(filename))
}

func (s *Storage) recordPath(id string) string {
	return filepath.Join(s.root, "records", safeFilename(id)+".json")
}

func (s *Storage) searchPath(user string) string {
	return filepath.Join(s.root, "searches", safeFilename(user)+".json")
}

// SaveBlob streams a blob to disk under its filename. A name collision
// overwrites the previous blob.
func (s *Storage) SaveBlob(filename string, r io.Reader) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.blobPath(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, err
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return size, nil
}

// OpenBlob opens a blob by filename for reading.
func (s *Storage) OpenBlob(filename string) (*os.File, error) {
	return os.Open(s.blobPath(filename))
}

// BlobPath returns the on-disk path for a blob filename.
func (s *Storage) BlobPath(filename string) string {
	return s.blobPath(filename)
}

// DeleteBlob removes a blob. Missing blobs are not an error; the row may
// reference a file deleted out-of-band.
func (s *Storage) DeleteBlob(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.blobPath(filename))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ListBlobNames returns the raw blob directory listing.
func (s *Storage) ListBlobNames() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.root, "blobs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.Contains(entry.Name(), ".tmp.") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// SaveRecord writes a metadata row to disk.
func (s *Storage) SaveRecord(record wl.MediaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.recordPath(record.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSON(path, record)
}

// GetRecord loads a row by id.
func (s *Storage) GetRecord(id string) (wl.MediaRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var record wl.MediaRecord
	err := readJSON(s.recordPath(id), &record)
	if err != nil {
		if os.IsNotExist(err) {
			return wl.MediaRecord{}, false, nil
		}
		return wl.MediaRecord{}, false, err
	}
	return record, true, nil
}

// ListRecords returns all rows newest first.
func (s *Storage) ListRecords() ([]wl.MediaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.root, "records", "*.json"))
	if err != nil {
		return nil, err
	}
	records := make([]wl.MediaRecord, 0, len(paths))
	for _, path := range paths {
		var record wl.MediaRecord
		if err := readJSON(path, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt > records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// DeleteRecord removes a row by id.
func (s *Storage) DeleteRecord(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.recordPath(id))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// RecordSearch prepends a query to a user's history, keeping the newest
// five distinct entries.
func (s *Storage) RecordSearch(user string, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queries, err := s.readSearchesLocked(user)
	if err != nil {
		return err
	}
	next := make([]string, 0, recentSearchLimit)
	next = append(next, query)
	for _, q := range queries {
		if q == query {
			continue
		}
		next = append(next, q)
		if len(next) == recentSearchLimit {
			break
		}
	}

	path := s.searchPath(user)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSON(path, next)
}

// RecentSearches returns a user's history, newest first.
func (s *Storage) RecentSearches(user string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readSearchesLocked(user)
}

// ClearSearches drops a user's history.
func (s *Storage) ClearSearches(user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.searchPath(user))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Storage) readSearchesLocked(user string) ([]string, error) {
	var queries []string
	err := readJSON(s.searchPath(user), &queries)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return queries, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func safeFilename(id string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return replacer.Replace(id)
}
