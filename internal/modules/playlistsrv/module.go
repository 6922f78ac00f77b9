package playlistsrv

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/wavelength-media/wavelength/internal/adapters/idgen"
	"github.com/wavelength-media/wavelength/internal/adapters/mqttserver"
	"github.com/wavelength-media/wavelength/pkg/wl"
	"go.uber.org/zap"
)

// Config configures the playlist server module.
type Config struct {
	NodeID    string
	TopicBase string
	Name      string
	Root      string
}

// Module stores named, ordered playlists per owner. Playlists hold media
// references only; the records themselves stay with the library.
type Module struct {
	log      *zap.Logger
	client   *mqttserver.Client
	config   Config
	storage  *Storage
	idgen    idgen.Generator
	cmdTopic string
}

// NewModule creates a playlist server module.
func NewModule(log *zap.Logger, client *mqttserver.Client, cfg Config) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("root required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = wl.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Playlist Server"
	}

	storage, err := NewStorage(cfg.Root)
	if err != nil {
		return nil, err
	}
	return &Module{
		log:      log,
		client:   client,
		config:   cfg,
		storage:  storage,
		cmdTopic: wl.TopicCommands(cfg.TopicBase, cfg.NodeID),
	}, nil
}

// Run starts the module.
func (m *Module) Run(ctx context.Context) error {
	if err := m.publishPresence(); err != nil {
		return err
	}

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
		Kind:   "playlist",
		Name:   m.config.Name,
		Caps: map[string]any{
			"create": true,
			"delete": true,
			"list":   true,
		},
		TS: time.Now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(wl.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) handleMessage(msg paho.Message) {
	var cmd wl.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}
	reply := m.dispatch(cmd)
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
	switch cmd.Type {
	case "playlist.create":
		return m.playlistCreate(cmd, reply)
	case "playlist.delete":
		return m.playlistDelete(cmd, reply)
	case "playlist.list":
		return m.playlistList(cmd, reply)
	default:
		return errorReply(cmd, wl.CodeInvalid, "unsupported command")
	}
}

func (m *Module) playlistCreate(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.PlaylistCreateBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	if strings.TrimSpace(body.Name) == "" {
		return errorReply(cmd, wl.CodeInvalid, "name required")
	}
	if len(body.MediaIDs) == 0 {
		return errorReply(cmd, wl.CodeInvalid, "mediaIds required")
	}

	items := make([]wl.PlaylistItem, 0, len(body.MediaIDs))
	for i, mediaID := range body.MediaIDs {
		items = append(items, wl.PlaylistItem{MediaID: mediaID, Position: int64(i)})
	}
	pl := wl.Playlist{
		ID:        "wl:playlist:" + m.idgen.NewID(),
		Name:      body.Name,
		Type:      body.Type,
		Owner:     cmd.From,
		Items:     items,
		CreatedAt: time.Now().Unix(),
	}
	if err := m.storage.SavePlaylist(pl); err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}

	payload, _ := json.Marshal(wl.PlaylistCreateReply{Playlist: pl})
	reply.Body = payload
	return reply
}

func (m *Module) playlistDelete(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	var body wl.PlaylistDeleteBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, wl.CodeInvalid, "invalid body")
	}
	pl, ok, err := m.storage.GetPlaylist(body.ID)
	if err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	if !ok {
		return errorReply(cmd, wl.CodeNotFound, "playlist not found")
	}
	if pl.Owner != cmd.From {
		return errorReply(cmd, wl.CodeNotFound, "playlist not found")
	}
	if err := m.storage.DeletePlaylist(body.ID); err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}
	return reply
}

func (m *Module) playlistList(cmd wl.CommandEnvelope, reply wl.ReplyEnvelope) wl.ReplyEnvelope {
	playlists, err := m.storage.ListPlaylists()
	if err != nil {
		return errorReply(cmd, wl.CodeInvalid, err.Error())
	}

	out := wl.PlaylistListReply{Playlists: make([]wl.Playlist, 0, len(playlists))}
	for _, pl := range playlists {
		if pl.Owner != cmd.From {
			continue
		}
		out.Playlists = append(out.Playlists, pl)
	}
	payload, _ := json.Marshal(out)
	reply.Body = payload
	return reply
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
