package wl

import "testing"

func TestValidateCommandEnvelopeSessionRequired(t *testing.T) {
	cmd, err := NewCommand("player.load", PlayerLoadBody{Track: CurrentTrack{URL: "http://x/a.mp3", Name: "a"}})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	cmd.ID = "id"
	cmd.TS = 1
	cmd.From = "tester"
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected session error")
	}

	cmd.Session = &Session{ID: "s", Token: "t"}
	if err := ValidateCommandEnvelope(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCommandEnvelopeMissingFields(t *testing.T) {
	cmd := CommandEnvelope{}
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCommandRequiresSession(t *testing.T) {
	cases := []struct {
		cmdType string
		want    bool
	}{
		{"player.load", true},
		{"player.toggle", true},
		{"player.setVolume", true},
		{"queue.set", true},
		{"media.query", false},
		{"media.search", false},
		{"playlist.create", false},
		{"session.acquire", false},
	}
	for _, tc := range cases {
		if got := CommandRequiresSession(tc.cmdType); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.cmdType, got, tc.want)
		}
	}
}

func TestTopics(t *testing.T) {
	if got := TopicCommands(BaseTopic, "wl:player:main"); got != "wl/v1/node/wl:player:main/cmd" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := TopicReply(BaseTopic, "cli-1"); got != "wl/v1/reply/cli-1" {
		t.Fatalf("unexpected topic %q", got)
	}
}
