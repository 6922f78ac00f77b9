package player

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

// Driver executes playback actions against an audio backend.
type Driver interface {
	Play(url string) error
	Pause() error
	Resume() error
	Stop() error
	Seek(positionMS int64) error
	SetVolume(volume float64) error
}

// Engine owns exactly one playable track and its transport state. It holds
// no queue; track advance on end is delegated to the advance callback
// supplied by the owner.
//
// Driver callbacks carry the load generation returned by Load. A callback
// whose generation no longer matches the latest load is stale (it belongs to
// a superseded track) and mutates nothing.
type Engine struct {
	mu      sync.Mutex
	log     *zap.Logger
	driver  Driver
	advance func()

	current    *wl.CurrentTrack
	status     string
	volume     float64
	positionMS int64
	durationMS int64
	loadGen    uint64
}

// NewEngine creates an engine with no track loaded and full volume.
func NewEngine(log *zap.Logger, driver Driver) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:    log,
		driver: driver,
		status: wl.StatusStopped,
		volume: 1.0,
	}
}

// SetAdvance installs the end-of-track callback. A nil callback leaves
// end-of-track inert.
func (e *Engine) SetAdvance(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance = fn
}

// Load replaces the current track unconditionally, even mid-playback of
// another track, and starts the driver immediately. A driver refusal is not
// an error: the engine enters the blocked status so the owner can surface
// it, and a later Toggle retries. Returns the new load generation.
func (e *Engine) Load(track wl.CurrentTrack) uint64 {
	e.mu.Lock()
	e.loadGen++
	gen := e.loadGen
	t := track
	e.current = &t
	e.positionMS = 0
	e.durationMS = 0
	err := e.driver.Play(track.URL)
	if err != nil {
		e.status = wl.StatusBlocked
	} else {
		e.status = wl.StatusPlaying
	}
	e.mu.Unlock()

	if err != nil {
		e.log.Warn("driver refused to start", zap.String("track", track.Name), zap.Error(err))
	}
	return gen
}

// Toggle flips between playing and paused. From blocked it retries the
// driver, which is how a user gesture unblocks playback. No-op with no
// current track.
func (e *Engine) Toggle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return
	}
	switch e.status {
	case wl.StatusPlaying:
		if err := e.driver.Pause(); err != nil {
			e.log.Warn("driver pause failed", zap.Error(err))
		}
		e.status = wl.StatusPaused
	case wl.StatusPaused, wl.StatusStopped:
		if err := e.driver.Resume(); err != nil {
			e.log.Warn("driver resume failed", zap.Error(err))
		}
		e.status = wl.StatusPlaying
	case wl.StatusBlocked:
		if err := e.driver.Resume(); err != nil {
			e.log.Warn("driver still blocked", zap.Error(err))
			return
		}
		e.status = wl.StatusPlaying
	}
}

// Stop halts playback and rewinds. The current track stays loaded so a
// later Toggle can restart it.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.driver.Stop(); err != nil {
		e.log.Warn("driver stop failed", zap.Error(err))
	}
	e.status = wl.StatusStopped
	e.positionMS = 0
}

// Seek moves the position, clamped to [0, duration].
func (e *Engine) Seek(positionMS int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return
	}
	if positionMS < 0 {
		positionMS = 0
	}
	if e.durationMS > 0 && positionMS > e.durationMS {
		positionMS = e.durationMS
	}
	e.positionMS = positionMS
	if err := e.driver.Seek(positionMS); err != nil {
		e.log.Warn("driver seek failed", zap.Error(err))
	}
}

// SetVolume stores v as given; callers pre-clamp to [0,1], this layer does
// not validate.
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.volume = v
	if err := e.driver.SetVolume(v); err != nil {
		e.log.Warn("driver volume failed", zap.Error(err))
	}
}

// MuteToggle flips volume 0 and 1.0. The pre-mute level is not recalled;
// restoring always goes to full volume.
func (e *Engine) MuteToggle() {
	e.mu.Lock()
	target := 1.0
	if e.volume != 0 {
		target = 0
	}
	e.mu.Unlock()
	e.SetVolume(target)
}

// HandleTimeUpdate records driver position progress for the given load.
func (e *Engine) HandleTimeUpdate(gen uint64, positionMS int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.loadGen {
		return
	}
	e.positionMS = positionMS
}

// HandleLoadedDuration records track duration once the driver knows it.
func (e *Engine) HandleLoadedDuration(gen uint64, durationMS int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.loadGen {
		return
	}
	e.durationMS = durationMS
}

// HandleEnded fires the advance callback at end of track. Without an
// advance callback the engine stops.
func (e *Engine) HandleEnded(gen uint64) {
	e.mu.Lock()
	if gen != e.loadGen {
		e.mu.Unlock()
		return
	}
	fn := e.advance
	if fn == nil {
		e.status = wl.StatusStopped
		e.positionMS = 0
	}
	e.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Generation returns the latest load generation.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadGen
}

// Current returns a copy of the current track.
func (e *Engine) Current() (wl.CurrentTrack, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return wl.CurrentTrack{}, false
	}
	return *e.current, true
}

// Snapshot returns the transport state.
func (e *Engine) Snapshot() wl.PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return wl.PlaybackState{
		Status:     e.status,
		PositionMS: e.positionMS,
		DurationMS: e.durationMS,
		Volume:     e.volume,
	}
}
