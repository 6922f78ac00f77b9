package renderer

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

// Session errors distinguish an absent lease from a token mismatch so the
// module can report the right reply code.
var (
	ErrSessionRequired = errors.New("session required")
	ErrSessionMismatch = errors.New("session mismatch")
	ErrSessionHeld     = errors.New("session already held")
)

// Sessions tracks the single playback session of a player. One owner at a
// time; mutations need the matching token until the lease expires.
type Sessions struct {
	mu        sync.Mutex
	sessionID string
	token     string
	owner     string
	expiry    time.Time
	active    bool
}

// Acquire grants a session if none is active.
func (s *Sessions) Acquire(owner string, ttl time.Duration) (wl.SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeLocked(time.Now()) {
		return wl.SessionToken{}, ErrSessionHeld
	}
	s.sessionID = "wl:session:" + randToken()
	s.token = randToken()
	s.owner = owner
	s.expiry = time.Now().Add(ttl)
	s.active = true
	return s.currentLocked(), nil
}

// Renew extends the lease if the token matches.
func (s *Sessions) Renew(sessionID string, token string, ttl time.Duration) (wl.SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked(time.Now()) {
		return wl.SessionToken{}, ErrSessionRequired
	}
	if s.sessionID != sessionID || s.token != token {
		return wl.SessionToken{}, ErrSessionMismatch
	}
	s.expiry = time.Now().Add(ttl)
	return s.currentLocked(), nil
}

// Release drops the lease if the token matches.
func (s *Sessions) Release(sessionID string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked(time.Now()) {
		return ErrSessionRequired
	}
	if s.sessionID != sessionID || s.token != token {
		return ErrSessionMismatch
	}
	s.clearLocked()
	return nil
}

// Require checks a session token for a mutation.
func (s *Sessions) Require(session *wl.Session) error {
	if session == nil {
		return ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked(time.Now()) {
		return ErrSessionRequired
	}
	if s.sessionID != session.ID || s.token != session.Token {
		return ErrSessionMismatch
	}
	return nil
}

// Current returns the active session for state publication.
func (s *Sessions) Current() (*wl.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked(time.Now()) {
		return nil, false
	}
	return &wl.SessionState{ID: s.sessionID, Owner: s.owner, ExpiresAt: s.expiry.Unix()}, true
}

func (s *Sessions) activeLocked(now time.Time) bool {
	return s.active && now.Before(s.expiry)
}

func (s *Sessions) currentLocked() wl.SessionToken {
	return wl.SessionToken{ID: s.sessionID, Token: s.token, Owner: s.owner, ExpiresAt: s.expiry.Unix()}
}

func (s *Sessions) clearLocked() {
	s.sessionID = ""
	s.token = ""
	s.owner = ""
	s.expiry = time.Time{}
	s.active = false
}

func randToken() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "token"
	}
	return hex.EncodeToString(buf[:])
}
