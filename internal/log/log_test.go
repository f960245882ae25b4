package log

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected Level
		ok       bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"e", LevelError, true},
		{"", LevelInfo, true},
		{"loud", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			require.Equal(t, tt.expected, got)
			require.Equal(t, tt.ok, ok)
		})
	}
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "keysound.log")

	cleanup, err := Init(path)
	require.NoError(t, err)
	SetLevel(LevelDebug)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Info(CatProfile, "Profile loaded", "name", "Default")
	ErrorErr(CatAudio, "Decode failed", os.ErrNotExist, "path", "x.wav")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "cat=profile")
	require.Contains(t, string(data), "name=Default")
	require.Contains(t, string(data), "error=\"file does not exist\"")
}

func TestSetLevel_FiltersLowerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
		SetOutput(&bytes.Buffer{})
	})

	Debug(CatCapture, "hidden")
	Info(CatCapture, "hidden too")
	Warn(CatCapture, "shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	before := PanicCount()
	done := make(chan struct{})

	SafeGo("test.panic", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "goroutine did not run")
	}

	require.Eventually(t, func() bool { return PanicCount() == before+1 }, time.Second, 5*time.Millisecond)
}
