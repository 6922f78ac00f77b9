package main

import "testing"

func TestLooksLikeVolume(t *testing.T) {
	cases := map[string]bool{
		"":        false,
		"50":      true,
		"+5":      true,
		"-10":     true,
		"0":       true,
		"kitchen": false,
	}
	for arg, want := range cases {
		if got := looksLikeVolume(arg); got != want {
			t.Errorf("looksLikeVolume(%q) = %v, want %v", arg, got, want)
		}
	}
}
