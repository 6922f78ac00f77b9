package main

import "testing"

func TestKnownExtensions(t *testing.T) {
	accepted := []string{
		".mp3", ".wav", ".m4a", ".aac", ".ogg", ".flac", ".alac", ".aiff",
		".mp4", ".mov", ".wmv", ".avi", ".mkv", ".webm",
	}
	for _, ext := range accepted {
		if !knownExtensions[ext] {
			t.Errorf("%s should be accepted", ext)
		}
	}
	if len(knownExtensions) != len(accepted) {
		t.Errorf("allow-list has %d entries, want %d", len(knownExtensions), len(accepted))
	}
	for _, ext := range []string{".opus", ".txt", ".exe"} {
		if knownExtensions[ext] {
			t.Errorf("%s should not be accepted", ext)
		}
	}
}
