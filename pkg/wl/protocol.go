package wl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "wl/v1"

// CommandEnvelope is the common controller command envelope for MQTT.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Session *Session        `json:"session,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// Session carries the session token used for player mutations.
type Session struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// ReplyEnvelope is the response envelope for commands.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Reply error codes.
const (
	CodeInvalid         = "INVALID"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeSessionRequired = "SESSION_REQUIRED"
	CodeSessionMismatch = "SESSION_MISMATCH"
	CodeUnauthenticated = "UNAUTHENTICATED"
)

// Presence describes a node presence payload.
type Presence struct {
	NodeID    string            `json:"nodeId"`
	Kind      string            `json:"kind"`
	Name      string            `json:"name"`
	Caps      map[string]any    `json:"caps,omitempty"`
	Endpoints map[string]string `json:"endpoints,omitempty"`
	TS        int64             `json:"ts"`
}

// Playback status values. Blocked means the driver refused to start and
// playback is waiting on an explicit user action.
const (
	StatusPlaying = "playing"
	StatusPaused  = "paused"
	StatusStopped = "stopped"
	StatusBlocked = "blocked"
)

// PlayerState captures the retained state of a player node.
type PlayerState struct {
	Session      *SessionState  `json:"session,omitempty"`
	Playback     *PlaybackState `json:"playback,omitempty"`
	Queue        *QueueState    `json:"queue,omitempty"`
	Current      *CurrentTrack  `json:"current,omitempty"`
	StateVersion int64          `json:"stateVersion,omitempty"`
	TS           int64          `json:"ts"`
}

// SessionState reflects player session ownership and expiry.
type SessionState struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	ExpiresAt int64  `json:"expiresAt"`
}

// PlaybackState describes transport status and properties.
type PlaybackState struct {
	Status     string  `json:"status"`
	PositionMS int64   `json:"positionMs"`
	DurationMS int64   `json:"durationMs"`
	Volume     float64 `json:"volume"`
}

// QueueState summarizes the player queue.
type QueueState struct {
	Length int64 `json:"length"`
	Index  int64 `json:"index"`
}

// CurrentTrack describes the currently loaded track.
type CurrentTrack struct {
	MediaID string `json:"mediaId,omitempty"`
	Name    string `json:"name"`
	Artist  string `json:"artist,omitempty"`
	URL     string `json:"url"`
}

// Event is a generic event payload.
type Event struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}

	return CommandEnvelope{
		Type: cmdType,
		Body: payload,
	}, nil
}

// ValidateCommandEnvelope validates required fields and session rules.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if cmd.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(cmd.From) == "" {
		return errors.New("from is required")
	}
	if len(cmd.Body) == 0 {
		return errors.New("body is required")
	}
	if CommandRequiresSession(cmd.Type) && cmd.Session == nil {
		return errors.New("session is required for player mutations")
	}
	if cmd.Session != nil {
		if strings.TrimSpace(cmd.Session.ID) == "" || strings.TrimSpace(cmd.Session.Token) == "" {
			return errors.New("session id and token are required")
		}
	}
	return nil
}

// CommandRequiresSession reports whether a command needs a session token.
func CommandRequiresSession(cmdType string) bool {
	switch cmdType {
	case "session.renew", "session.release":
		return true
	case "player.load", "player.toggle", "player.stop", "player.seek", "player.next", "player.prev":
		return true
	case "player.setVolume", "player.muteToggle":
		return true
	case "queue.set", "queue.jump", "queue.clear":
		return true
	default:
		return false
	}
}

// TopicPresence builds the presence topic for a node.
func TopicPresence(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/presence", topicBase, nodeID)
}

// TopicState builds the state topic for a node.
func TopicState(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/state", topicBase, nodeID)
}

// TopicCommands builds the command topic for a node.
func TopicCommands(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/cmd", topicBase, nodeID)
}

// TopicEvents builds the events topic for a node.
func TopicEvents(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/evt", topicBase, nodeID)
}

// TopicReply builds the reply topic for a controller instance.
func TopicReply(topicBase, controllerID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, controllerID)
}
