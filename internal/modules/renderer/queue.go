package renderer

import (
	"errors"
	"sync"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

// Queue holds the player's track queue. The queue is replaced wholesale by
// queue.set; there is no incremental editing.
type Queue struct {
	mu     sync.Mutex
	tracks []wl.CurrentTrack
	index  int64
}

// Set replaces the queue and positions it at startIndex, clamped into range.
func (q *Queue) Set(tracks []wl.CurrentTrack, startIndex int64) (wl.CurrentTrack, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = append([]wl.CurrentTrack(nil), tracks...)
	if startIndex < 0 {
		startIndex = 0
	}
	if n := int64(len(q.tracks)); startIndex >= n && n > 0 {
		startIndex = n - 1
	}
	q.index = startIndex
	return q.currentLocked()
}

// Jump moves to an explicit index.
func (q *Queue) Jump(index int64) (wl.CurrentTrack, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= int64(len(q.tracks)) {
		return wl.CurrentTrack{}, errors.New("index out of range")
	}
	q.index = index
	return q.tracks[q.index], nil
}

// Advance moves to the next track. Returns false at the end of the queue,
// leaving the index unchanged.
func (q *Queue) Advance() (wl.CurrentTrack, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.index+1 >= int64(len(q.tracks)) {
		return wl.CurrentTrack{}, false
	}
	q.index++
	return q.tracks[q.index], true
}

// Previous moves to the prior track. Returns false at the head.
func (q *Queue) Previous() (wl.CurrentTrack, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 || q.index == 0 {
		return wl.CurrentTrack{}, false
	}
	q.index--
	return q.tracks[q.index], true
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = nil
	q.index = 0
}

// Current returns the track at the queue position.
func (q *Queue) Current() (wl.CurrentTrack, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentLocked()
}

// Summary describes the queue for state publication.
func (q *Queue) Summary() wl.QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return wl.QueueState{Length: int64(len(q.tracks)), Index: q.index}
}

func (q *Queue) currentLocked() (wl.CurrentTrack, bool) {
	if len(q.tracks) == 0 || q.index < 0 || q.index >= int64(len(q.tracks)) {
		return wl.CurrentTrack{}, false
	}
	return q.tracks[q.index], true
}
