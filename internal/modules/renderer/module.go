package renderer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/wavelength-media/wavelength/internal/adapters/mqttserver"
	"github.com/wavelength-media/wavelength/internal/player"
	"github.com/wavelength-media/wavelength/pkg/wl"
	"go.uber.org/zap"
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// Driver extends the engine driver with position polling for state updates.
type Driver interface {
	player.Driver
	Position() (positionMS int64, durationMS int64, ok bool)
}

const defaultSessionTTL = 5 * time.Minute

// Config configures the player module.
type Config struct {
	NodeID    string
	TopicBase string
	Name      string
	Pipeline  string
	Device    string
	Crossfade time.Duration
	Volume    float64
}

// Module is a playback node. It owns the single-track engine, the queue and
// the session lease, and publishes retained state after every mutation.
type Module struct {
	log      *zap.Logger
	client   mqttClient
	engine   *player.Engine
	driver   Driver
	sessions *Sessions
	queue    *Queue
	config   Config
	cmdTopic string

	mu           sync.Mutex
	stateVersion int64
}

// NewModule creates a player module with the built-in driver.
func NewModule(log *zap.Logger, client *mqttserver.Client, cfg Config) (*Module, error) {
	driver, err := NewDriver(cfg.Pipeline, cfg.Device, cfg.Crossfade)
	if err != nil {
		return nil, err
	}
	return newModule(log, client, cfg, driver)
}

func newModule(log *zap.Logger, client mqttClient, cfg Config, driver Driver) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = wl.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Player"
	}

	engine := player.NewEngine(log, driver)
	if cfg.Volume > 0 && cfg.Volume <= 1.0 {
		engine.SetVolume(cfg.Volume)
	}

	m := &Module{
		log:      log,
		client:   client,
		engine:   engine,
		driver:   driver,
		sessions: &Sessions{},
		queue:    &Queue{},
		config:   cfg,
		cmdTopic: wl.TopicCommands(cfg.TopicBase, cfg.NodeID),
	}
	engine.SetAdvance(m.advance)
	return m, nil
}

// Run starts the module.
func (m *Module) Run(ctx context.Context) error {
	if err := m.publishPresence(); err != nil {
		return err
	}
	if err := m.publishState(); err != nil {
		return err
	}

	go m.runPositionUpdates(ctx)

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(msg)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)

	<-ctx.Done()
	return nil
}

func (m *Module) publishPresence() error {
	presence := wl.Presence{
		NodeID: m.config.NodeID,
		Kind:   "player",
		Name:   m.config.Name,
		Caps: map[string]any{
			"seek":   true,
			"volume": true,
			"queue":  true,
		},
		TS: time.Now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(wl.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) publishState() error {
	m.mu.Lock()
	m.stateVersion++
	version := m.stateVersion
	m.mu.Unlock()

	playback := m.engine.Snapshot()
	queue := m.queue.Summary()
	state := wl.PlayerState{
		Playback:     &playback,
		Queue:        &queue,
		StateVersion: version,
		TS:           time.Now().Unix(),
	}
	if session, ok := m.sessions.Current(); ok {
		state.Session = session
	}
	if current, ok := m.engine.Current(); ok {
		state.Current = &current
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return m.client.Publish(wl.TopicState(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) handleMessage(msg paho.Message) {
	var cmd wl.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}

	reply := m.dispatch(cmd)
	if err := m.publishState(); err != nil {
		m.log.Error("publish state", zap.Error(err))
	}
	if cmd.ReplyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Error("marshal reply", zap.Error(err))
		return
	}
	if err := m.client.Publish(cmd.ReplyTo, 1, false, payload); err != nil {
		m.log.Error("publish reply", zap.Error(err))
	}
}

func (m *Module) dispatch(cmd wl.CommandEnvelope) wl.ReplyEnvelope {
	if strings.TrimSpace(cmd.From) == "" {
		return errorReply(cmd, wl.CodeUnauthenticated, "caller identity required")
	}
	reply := wl.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "ack",
		OK:   true,
		TS:   time.Now().Unix(),
	}

	if wl.CommandRequiresSession(cmd.Type) {
		if err := m.sessions.Require(cmd.Session); err != nil {
			return sessionError(cmd, err)
		}
	}

	switch cmd.Type {
	case "session.acquire":
		return m.sessionAcquire(cmd, reply)
	case "session.renew":
		return m.sessionRenew(cmd, reply)
	case "session.release":
		return m.sessionRelease(cmd, reply)
	case "player.load":
		return m.playerLoad(cmd, reply)
	case "player.toggle":
		m.engine.Toggle()
		return reply
	case "player.stop":
		m.engine.Stop()
		return reply
	case "player.seek":
		return m.playerSeek(cmd, reply)
	case "player.setVolume":
		return m.playerSetVolume(cmd, reply)
	case "player.muteToggle":
		m.engine.MuteToggle()
		return reply
	case "player.next":
		return m.playerNext(cmd, reply)
	case "player.prev":
		return m.playerPrev(cmd, reply)
	case "queue.set":
		return m.queueSet(cmd, reply)
	case "queue.jump":
		return m.queueJump(cmd, reply)
	case "queue.clear":
		m.queue.Clear()
		return reply
	default:
		return errorReply(cmd, wl.CodeInvalid, "unsupported command")
	}
}

func (m *Module) sessionAcquire(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.SessionAcquireBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	ttl := defaultSessionTTL
	if body.TTLMS > 0 {
		ttl = time.Duration(body.TTLMS) * time.Millisecond
	}

	token, err := m.sessions.Acquire(cmd.From, ttl)
	if err != nil {
		return errorReply(cmd, wl.CodeConflict, err.Error())
	}

	m.mu.Lock()
	version := m.stateVersion
	m.mu.Unlock()
	payload, _ := json.Marshal(wl.SessionReplyBody{Session: token, StateVersion: version})
	reply.Body = payload
	return reply
}

func (m *Module) sessionRenew(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.SessionRenewBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	ttl := defaultSessionTTL
	if body.TTLMS > 0 {
		ttl = time.Duration(body.TTLMS) * time.Millisecond
	}

	token, err := m.sessions.Renew(cmd.Session.ID, cmd.Session.Token, ttl)
	if err != nil {
		return sessionError(cmd, err)
	}
	m.mu.Lock()
	version := m.stateVersion
	m.mu.Unlock()
	payload, _ := json.Marshal(wl.SessionReplyBody{Session: token, StateVersion: version})
	reply.Body = payload
	return reply
}

func (m *Module) sessionRelease(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	if err := m.sessions.Release(cmd.Session.ID, cmd.Session.Token); err != nil {
		return sessionError(cmd, err)
	}
	return reply
}

func (m *Module) playerLoad(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.PlayerLoadBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	if strings.TrimSpace(body.Track.URL) == "" {
		return errorReply(cmd, wl.CodeInvalid, "track url required")
	}

	// A direct load replaces the queue with just this track.
	m.queue.Set([]wl.CurrentTrack{body.Track}, 0)
	m.engine.Load(body.Track)
	return reply
}

func (m *Module) playerSeek(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.PlayerSeekBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	m.engine.Seek(body.PositionMS)
	return reply
}

func (m *Module) playerSetVolume(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.PlayerSetVolumeBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	if body.Volume < 0 || body.Volume > 1.0 {
		return errorReply(cmd, wl.CodeInvalid, "volume must be between 0 and 1")
	}
	m.engine.SetVolume(body.Volume)
	return reply
}

func (m *Module) playerNext(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	track, ok := m.queue.Advance()
	if !ok {
		return errorReply(cmd, wl.CodeInvalid, "end of queue")
	}
	m.engine.Load(track)
	return reply
}

func (m *Module) playerPrev(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	track, ok := m.queue.Previous()
	if !ok {
		return errorReply(cmd, wl.CodeInvalid, "start of queue")
	}
	m.engine.Load(track)
	return reply
}

func (m *Module) queueSet(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.QueueSetBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	if len(body.Tracks) == 0 {
		return errorReply(cmd, wl.CodeInvalid, "tracks required")
	}
	for _, track := range body.Tracks {
		if strings.TrimSpace(track.URL) == "" {
			return errorReply(cmd, wl.CodeInvalid, "track url required")
		}
	}

	track, ok := m.queue.Set(body.Tracks, body.StartIndex)
	if !ok {
		return errorReply(cmd, wl.CodeInvalid, "tracks required")
	}
	m.engine.Load(track)
	return reply
}

func (m *Module) queueJump(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.QueueJumpBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	track, err := m.queue.Jump(body.Index)
	if err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	m.engine.Load(track)
	return reply
}

// advance runs at end of track. End of queue stops the engine.
func (m *Module) advance() {
	track, ok := m.queue.Advance()
	if !ok {
		m.engine.Stop()
		return
	}
	m.engine.Load(track)
}

func (m *Module) runPositionUpdates(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.updatePlaybackState()
		}
	}
}

func (m *Module) updatePlaybackState() {
	if m.engine.Snapshot().Status != wl.StatusPlaying {
		return
	}
	// Capture the generation before polling. A load that lands between the
	// poll and the update would otherwise get the old track's position
	// attributed to it.
	gen := m.engine.Generation()
	positionMS, durationMS, ok := m.driver.Position()
	if !ok {
		return
	}

	m.engine.HandleTimeUpdate(gen, positionMS)
	if durationMS > 0 {
		m.engine.HandleLoadedDuration(gen, durationMS)
		if positionMS >= durationMS {
			m.engine.HandleEnded(gen)
		}
	}
	if err := m.publishState(); err != nil {
		m.log.Error("publish state", zap.Error(err))
	}
}

func sessionError(cmd wl.CommandEnvelope, err error) wl.ReplyEnvelope {
	code := wl.CodeSessionRequired
	if errors.Is(err, ErrSessionMismatch) {
		code = wl.CodeSessionMismatch
	}
	return errorReply(cmd, code, err.Error())
}

func errorReply(cmd wl.CommandEnvelope, code string, message string) wl.ReplyEnvelope {
	return wl.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   time.Now().Unix(),
		Err: &wl.ReplyError{
			Code:    code,
			Message: message,
		},
	}
}
