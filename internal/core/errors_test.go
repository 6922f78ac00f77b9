package core

import "testing"

func TestErrorForReplyCode(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{"SESSION_REQUIRED", ExitSession},
		{"SESSION_MISMATCH", ExitSession},
		{"NOT_FOUND", ExitNotFound},
		{"CONFLICT", ExitConflict},
		{"INVALID", ExitUsage},
		{"UNAUTHENTICATED", ExitAuth},
		{"UNKNOWN", ExitRuntime},
	}

	for _, test := range tests {
		err := ErrorForReplyCode(test.code, "message")
		if err.Code != test.expected {
			t.Fatalf("code %s expected %d got %d", test.code, test.expected, err.Code)
		}
	}
}
