package ports

import (
	"context"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

// Broker publishes commands and reads retained state/presence.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, nodeID string, cmd wl.CommandEnvelope) (wl.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]wl.Presence, error)
	GetPlayerState(ctx context.Context, nodeID string) (wl.PlayerState, error)
	WatchPlayer(ctx context.Context, nodeID string) (<-chan wl.PlayerState, <-chan wl.Event, <-chan error)
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}

// SessionStore persists player session tokens between commands.
type SessionStore interface {
	Get(playerID string) (wl.Session, bool, error)
	Put(playerID string, session wl.Session) error
	Clear(playerID string) error
}
