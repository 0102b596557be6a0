package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCompoundDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"500ms", 500 * time.Millisecond},
		{"1ms", time.Millisecond},
		{"1s", time.Second},
		{"2.5s", 2500 * time.Millisecond},
		{"1m", time.Minute},
		{"2.5m", 150 * time.Second},
		{"1h", time.Hour},
		{"1.5h", 90 * time.Minute},
		{"1d", 24 * time.Hour},
		{"2.5d", 60 * time.Hour},
		{"1d 2h 30m 10s 500ms", 24*time.Hour + 2*time.Hour + 30*time.Minute + 10*time.Second + 500*time.Millisecond},
		{"2h 15m", 2*time.Hour + 15*time.Minute},
		{" 1D 2H ", 26 * time.Hour},
		{"  5m   10s", 5*time.Minute + 10*time.Second},
		{"", 0},
		{"abc", 0},
		{"1x", 0},
		{"1d 2x", 0},
		{"1d2x", 0},
		{"1d 2", 0},
		{"ms", 0},
		{"1", 0},
		{"1d 2h 3x", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.want, ParseCompoundDuration(tt.input))
		})
	}
}
