package renderer

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/wavelength-media/wavelength/pkg/wl"
	"go.uber.org/zap"
)

type fakeDriver struct {
	mu         sync.Mutex
	played     []string
	failPlay   bool
	volume     float64
	position   int64
	duration   int64
	onPosition func()
}

func (d *fakeDriver) Play(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failPlay {
		return errors.New("autoplay refused")
	}
	d.played = append(d.played, url)
	return nil
}

func (d *fakeDriver) Pause() error  { return nil }
func (d *fakeDriver) Resume() error { return nil }
func (d *fakeDriver) Stop() error   { return nil }

func (d *fakeDriver) Seek(positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = positionMS
	return nil
}

func (d *fakeDriver) SetVolume(volume float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = volume
	return nil
}

func (d *fakeDriver) Position() (int64, int64, bool) {
	d.mu.Lock()
	position, duration := d.position, d.duration
	hook := d.onPosition
	d.onPosition = nil
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return position, duration, true
}

func (d *fakeDriver) playedURLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.played...)
}

type fakeMQTT struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (c *fakeMQTT) Publish(topic string, _ byte, _ bool, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.messages == nil {
		c.messages = map[string][][]byte{}
	}
	c.messages[topic] = append(c.messages[topic], append([]byte(nil), payload...))
	return nil
}

func (c *fakeMQTT) Subscribe(string, byte, paho.MessageHandler) error { return nil }
func (c *fakeMQTT) Unsubscribe(string) error                          { return nil }

func (c *fakeMQTT) last(topic string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.messages[topic]
	if len(msgs) == 0 {
		return nil, false
	}
	return msgs[len(msgs)-1], true
}

func newTestModule(t *testing.T) (*Module, *fakeDriver, *fakeMQTT) {
	t.Helper()
	driver := &fakeDriver{}
	client := &fakeMQTT{}
	mod, err := newModule(zap.NewNop(), client, Config{NodeID: "wl:player:test"}, driver)
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	return mod, driver, client
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func acquire(t *testing.T, mod *Module) *wl.Session {
	t.Helper()
	cmd := wl.CommandEnvelope{
		ID:   "acq",
		Type: "session.acquire",
		From: "alice",
		Body: mustJSON(t, wl.SessionAcquireBody{}),
	}
	reply := mod.dispatch(cmd)
	if !reply.OK {
		t.Fatalf("acquire failed: %+v", reply.Err)
	}
	var body wl.SessionReplyBody
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &wl.Session{ID: body.Session.ID, Token: body.Session.Token}
}

func TestDispatchRequiresIdentity(t *testing.T) {
	mod, _, _ := newTestModule(t)
	reply := mod.dispatch(wl.CommandEnvelope{ID: "c1", Type: "player.toggle"})
	if reply.OK || reply.Err.Code != wl.CodeUnauthenticated {
		t.Fatalf("expected UNAUTHENTICATED, got %+v", reply)
	}
}

func TestMutationWithoutSession(t *testing.T) {
	mod, _, _ := newTestModule(t)
	reply := mod.dispatch(wl.CommandEnvelope{ID: "c1", Type: "player.toggle", From: "alice"})
	if reply.OK || reply.Err.Code != wl.CodeSessionRequired {
		t.Fatalf("expected SESSION_REQUIRED, got %+v", reply)
	}
}

func TestMutationWithWrongToken(t *testing.T) {
	mod, _, _ := newTestModule(t)
	session := acquire(t, mod)
	bad := &wl.Session{ID: session.ID, Token: "wrong"}
	reply := mod.dispatch(wl.CommandEnvelope{ID: "c1", Type: "player.toggle", From: "alice", Session: bad})
	if reply.OK || reply.Err.Code != wl.CodeSessionMismatch {
		t.Fatalf("expected SESSION_MISMATCH, got %+v", reply)
	}
}

func TestAcquireIsExclusive(t *testing.T) {
	mod, _, _ := newTestModule(t)
	acquire(t, mod)
	cmd := wl.CommandEnvelope{ID: "c2", Type: "session.acquire", From: "bob", Body: mustJSON(t, wl.SessionAcquireBody{})}
	reply := mod.dispatch(cmd)
	if reply.OK || reply.Err.Code != wl.CodeConflict {
		t.Fatalf("expected CONFLICT, got %+v", reply)
	}
}

func TestReleaseFreesSession(t *testing.T) {
	mod, _, _ := newTestModule(t)
	session := acquire(t, mod)
	reply := mod.dispatch(wl.CommandEnvelope{ID: "c1", Type: "session.release", From: "alice", Session: session, Body: mustJSON(t, struct{}{})})
	if !reply.OK {
		t.Fatalf("release failed: %+v", reply.Err)
	}
	acquire(t, mod)
}

func TestLoadStartsPlayback(t *testing.T) {
	mod, driver, _ := newTestModule(t)
	session := acquire(t, mod)

	track := wl.CurrentTrack{MediaID: "m1", Name: "song.mp3", URL: "http://lib/media/song.mp3"}
	cmd := wl.CommandEnvelope{ID: "c1", Type: "player.load", From: "alice", Session: session, Body: mustJSON(t, wl.PlayerLoadBody{Track: track})}
	reply := mod.dispatch(cmd)
	if !reply.OK {
		t.Fatalf("load failed: %+v", reply.Err)
	}

	urls := driver.playedURLs()
	if len(urls) != 1 || urls[0] != track.URL {
		t.Fatalf("driver urls = %v", urls)
	}
	if state := mod.engine.Snapshot(); state.Status != wl.StatusPlaying {
		t.Fatalf("status = %s", state.Status)
	}
	current, ok := mod.engine.Current()
	if !ok || current.MediaID != "m1" {
		t.Fatalf("current = %+v ok=%v", current, ok)
	}
}

func TestLoadRefusedGoesBlockedThenToggleRecovers(t *testing.T) {
	mod, driver, _ := newTestModule(t)
	session := acquire(t, mod)

	driver.failPlay = true
	track := wl.CurrentTrack{Name: "song.mp3", URL: "http://lib/media/song.mp3"}
	mod.dispatch(wl.CommandEnvelope{ID: "c1", Type: "player.load", From: "alice", Session: session, Body: mustJSON(t, wl.PlayerLoadBody{Track: track})})
	if state := mod.engine.Snapshot(); state.Status != wl.StatusBlocked {
		t.Fatalf("status = %s, want blocked", state.Status)
	}

	driver.failPlay = false
	reply := mod.dispatch(wl.CommandEnvelope{ID: "c2", Type: "player.toggle", From: "alice", Session: session, Body: mustJSON(t, struct{}{})})
	if !reply.OK {
		t.Fatalf("toggle failed: %+v", reply.Err)
	}
	if state := mod.engine.Snapshot(); state.Status != wl.StatusPlaying {
		t.Fatalf("status = %s, want playing", state.Status)
	}
}

func TestQueueSetStartsAtIndexAndAdvances(t *testing.T) {
	mod, driver, _ := newTestModule(t)
	session := acquire(t, mod)

	tracks := []wl.CurrentTrack{
		{MediaID: "m1", Name: "one.mp3", URL: "http://lib/media/one.mp3"},
		{MediaID: "m2", Name: "two.mp3", URL: "http://lib/media/two.mp3"},
	}
	cmd := wl.CommandEnvelope{ID: "c1", Type: "queue.set", From: "alice", Session: session, Body: mustJSON(t, wl.QueueSetBody{Tracks: tracks, StartIndex: 0})}
	if reply := mod.dispatch(cmd); !reply.OK {
		t.Fatalf("queue.set failed: %+v", reply.Err)
	}

	mod.engine.HandleEnded(mod.engine.Generation())
	urls := driver.playedURLs()
	if len(urls) != 2 || urls[1] != tracks[1].URL {
		t.Fatalf("driver urls = %v", urls)
	}

	// End of the last track stops playback.
	mod.engine.HandleEnded(mod.engine.Generation())
	if state := mod.engine.Snapshot(); state.Status != wl.StatusStopped {
		t.Fatalf("status = %s, want stopped", state.Status)
	}
}

func TestNextPrevAtQueueEdges(t *testing.T) {
	mod, _, _ := newTestModule(t)
	session := acquire(t, mod)

	tracks := []wl.CurrentTrack{{MediaID: "m1", Name: "one.mp3", URL: "http://lib/media/one.mp3"}}
	mod.dispatch(wl.CommandEnvelope{ID: "c1", Type: "queue.set", From: "alice", Session: session, Body: mustJSON(t, wl.QueueSetBody{Tracks: tracks})})

	reply := mod.dispatch(wl.CommandEnvelope{ID: "c2", Type: "player.next", From: "alice", Session: session, Body: mustJSON(t, struct{}{})})
	if reply.OK || reply.Err.Code != wl.CodeInvalid {
		t.Fatalf("next at end must fail, got %+v", reply)
	}
	reply = mod.dispatch(wl.CommandEnvelope{ID: "c3", Type: "player.prev", From: "alice", Session: session, Body: mustJSON(t, struct{}{})})
	if reply.OK || reply.Err.Code != wl.CodeInvalid {
		t.Fatalf("prev at head must fail, got %+v", reply)
	}
}

func TestSetVolumeValidatesRange(t *testing.T) {
	mod, _, _ := newTestModule(t)
	session := acquire(t, mod)

	cmd := wl.CommandEnvelope{ID: "c1", Type: "player.setVolume", From: "alice", Session: session, Body: mustJSON(t, wl.PlayerSetVolumeBody{Volume: 1.5})}
	reply := mod.dispatch(cmd)
	if reply.OK || reply.Err.Code != wl.CodeInvalid {
		t.Fatalf("expected INVALID, got %+v", reply)
	}
}

func TestMuteToggleRestoresFullVolume(t *testing.T) {
	mod, driver, _ := newTestModule(t)
	session := acquire(t, mod)

	mod.dispatch(wl.CommandEnvelope{ID: "c1", Type: "player.setVolume", From: "alice", Session: session, Body: mustJSON(t, wl.PlayerSetVolumeBody{Volume: 0.4})})
	mod.dispatch(wl.CommandEnvelope{ID: "c2", Type: "player.muteToggle", From: "alice", Session: session, Body: mustJSON(t, struct{}{})})
	if driver.volume != 0 {
		t.Fatalf("volume after mute = %v", driver.volume)
	}
	mod.dispatch(wl.CommandEnvelope{ID: "c3", Type: "player.muteToggle", From: "alice", Session: session, Body: mustJSON(t, struct{}{})})
	if driver.volume != 1.0 {
		t.Fatalf("unmute restores full volume, got %v", driver.volume)
	}
}

func TestPublishStateIsRetainedSnapshot(t *testing.T) {
	mod, _, client := newTestModule(t)
	session := acquire(t, mod)

	track := wl.CurrentTrack{MediaID: "m1", Name: "song.mp3", URL: "http://lib/media/song.mp3"}
	mod.dispatch(wl.CommandEnvelope{ID: "c1", Type: "player.load", From: "alice", Session: session, Body: mustJSON(t, wl.PlayerLoadBody{Track: track})})
	if err := mod.publishState(); err != nil {
		t.Fatalf("publish state: %v", err)
	}

	payload, ok := client.last(wl.TopicState(wl.BaseTopic, "wl:player:test"))
	if !ok {
		t.Fatalf("no state published")
	}
	var state wl.PlayerState
	if err := json.Unmarshal(payload, &state); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if state.Session == nil || state.Session.Owner != "alice" {
		t.Fatalf("state session = %+v", state.Session)
	}
	if state.Current == nil || state.Current.MediaID != "m1" {
		t.Fatalf("state current = %+v", state.Current)
	}
	if state.Playback == nil || state.Playback.Status != wl.StatusPlaying {
		t.Fatalf("state playback = %+v", state.Playback)
	}
	if state.Queue == nil || state.Queue.Length != 1 {
		t.Fatalf("state queue = %+v", state.Queue)
	}
	if state.StateVersion == 0 {
		t.Fatalf("state version not set")
	}
}

func TestPositionPollDuringLoadKeepsNewTrackFresh(t *testing.T) {
	mod, driver, _ := newTestModule(t)
	session := acquire(t, mod)

	first := wl.CurrentTrack{MediaID: "m1", Name: "one.mp3", URL: "http://lib/media/one.mp3"}
	reply := mod.dispatch(wl.CommandEnvelope{ID: "c1", Type: "player.load", From: "alice", Session: session, Body: mustJSON(t, wl.PlayerLoadBody{Track: first})})
	if !reply.OK {
		t.Fatalf("load failed: %+v", reply.Err)
	}

	// The hook loads a second track between the position poll and the
	// engine update, like a command racing the ticker.
	driver.mu.Lock()
	driver.position = 5000
	driver.duration = 60000
	driver.onPosition = func() {
		second := wl.CurrentTrack{MediaID: "m2", Name: "two.mp3", URL: "http://lib/media/two.mp3"}
		reply := mod.dispatch(wl.CommandEnvelope{ID: "c2", Type: "player.load", From: "alice", Session: session, Body: mustJSON(t, wl.PlayerLoadBody{Track: second})})
		if !reply.OK {
			t.Fatalf("load failed: %+v", reply.Err)
		}
	}
	driver.mu.Unlock()

	mod.updatePlaybackState()

	if state := mod.engine.Snapshot(); state.PositionMS != 0 {
		t.Fatalf("stale position leaked into the new track: %d", state.PositionMS)
	}
	current, ok := mod.engine.Current()
	if !ok || current.MediaID != "m2" {
		t.Fatalf("current = %+v ok=%v", current, ok)
	}
}
