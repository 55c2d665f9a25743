package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     bool
	}{
		{
			name:     "exit code 0 is success",
			exitCode: 0,
			want:     true,
		},
		{
			name:     "exit code 1 is failure",
			exitCode: 1,
			want:     false,
		},
		{
			name:     "exit code 127 is failure",
			exitCode: 127,
			want:     false,
		},
		{
			name:     "negative exit code is failure",
			exitCode: -1,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsSuccess(tt.exitCode)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     string
	}{
		{"success", 0, "Success"},
		{"general failure", 1, "General failure"},
		{"not executable", 126, "Command found but not executable"},
		{"not found", 127, "Command not found"},
		{"interrupted", 130, "Terminated by Ctrl-C"},
		{"unknown", 42, "Unknown error"},
		{"killed without status", -1, "Killed by signal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorMessage(tt.exitCode))
		})
	}
}

func TestGetErrorMessage_Signal(t *testing.T) {
	assert.Contains(t, GetErrorMessage(137), "Killed by signal 9")
	assert.Contains(t, GetErrorMessage(143), "Killed by signal 15")
}
