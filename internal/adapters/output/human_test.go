package output

import "testing"

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1 MB"},
		{5*1024*1024 + 256*1024, "5.25 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}

	for _, test := range tests {
		if got := FormatSize(test.bytes); got != test.expected {
			t.Fatalf("FormatSize(%d) = %q, want %q", test.bytes, got, test.expected)
		}
	}
}

func TestFormatMS(t *testing.T) {
	tests := []struct {
		ms       int64
		expected string
	}{
		{0, "0:00"},
		{1000, "0:01"},
		{61000, "1:01"},
		{3600000, "60:00"},
	}

	for _, test := range tests {
		if got := formatMS(test.ms); got != test.expected {
			t.Fatalf("formatMS(%d) = %q, want %q", test.ms, got, test.expected)
		}
	}
}
