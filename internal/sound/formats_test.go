package sound

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsAsset(t *testing.T) {
	tests := []struct {
		path      string
		asset     bool
		decodable bool
	}{
		{"a.wav", true, true},
		{"A.WAV", true, true},
		{"dir/x.mp3", true, true},
		{"x.flac", true, true},
		{"x.ogg", true, true},
		{"x.wma", true, false},
		{"x.aac", true, false},
		{"x.m4a", true, false},
		{"index.json", false, false},
		{"noext", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.asset, IsAsset(tt.path))
			require.Equal(t, tt.decodable, IsDecodable(tt.path))
		})
	}
}
