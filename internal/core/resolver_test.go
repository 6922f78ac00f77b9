package core

import (
	"context"
	"testing"

	"github.com/wavelength-media/wavelength/pkg/wl"
)

type fakeBroker struct {
	presence []wl.Presence
}

func (f fakeBroker) ReplyTopic() string { return "" }
func (f fakeBroker) PublishCommand(ctx context.Context, nodeID string, cmd wl.CommandEnvelope) (wl.ReplyEnvelope, error) {
	return wl.ReplyEnvelope{}, nil
}
func (f fakeBroker) ListPresence(ctx context.Context) ([]wl.Presence, error) { return f.presence, nil }
func (f fakeBroker) GetPlayerState(ctx context.Context, nodeID string) (wl.PlayerState, error) {
	return wl.PlayerState{}, nil
}
func (f fakeBroker) WatchPlayer(ctx context.Context, nodeID string) (<-chan wl.PlayerState, <-chan wl.Event, <-chan error) {
	stateCh := make(chan wl.PlayerState)
	eventCh := make(chan wl.Event)
	errCh := make(chan error)
	close(stateCh)
	close(eventCh)
	close(errCh)
	return stateCh, eventCh, errCh
}

func TestResolverAlias(t *testing.T) {
	presence := []wl.Presence{{NodeID: "wl:player:one", Kind: "player", Name: "Desk"}}
	resolver := Resolver{
		Presence: fakeBroker{presence: presence},
		Config: Config{
			Aliases: map[string]string{"desk": "wl:player:one"},
		},
	}
	got, err := resolver.ResolvePlayer(context.Background(), "desk")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.NodeID != "wl:player:one" {
		t.Fatalf("expected alias resolution")
	}
}

func TestResolverAmbiguous(t *testing.T) {
	presence := []wl.Presence{
		{NodeID: "wl:player:one", Kind: "player", Name: "Desk"},
		{NodeID: "wl:player:two", Kind: "player", Name: "Desk"},
	}
	resolver := Resolver{Presence: fakeBroker{presence: presence}}
	_, err := resolver.ResolvePlayer(context.Background(), "Desk")
	if err == nil {
		t.Fatalf("expected ambiguous error")
	}
}

func TestResolverSingleNodeDefault(t *testing.T) {
	presence := []wl.Presence{
		{NodeID: "wl:library:main", Kind: "library", Name: "Library"},
		{NodeID: "wl:player:one", Kind: "player", Name: "Desk"},
	}
	resolver := Resolver{Presence: fakeBroker{presence: presence}}
	got, err := resolver.ResolveLibrary(context.Background(), "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.NodeID != "wl:library:main" {
		t.Fatalf("expected lone library node, got %s", got.NodeID)
	}
}
