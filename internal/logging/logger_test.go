package logging

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHexString(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, ""},
		{"single", []byte{0x0f}, "0F"},
		{"separator", []byte{0x5a, 0xa5, 0xc0, 0xa1}, "5A A5 C0 A1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HexString(tt.data))
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	t.Cleanup(func() { SetLogger(nil) })

	require.NoError(t, Initialize(""))
	assert.False(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	t.Cleanup(func() { SetLogger(nil) })

	require.NoError(t, Initialize(""))
	assert.True(t, GetLogger().Core().Enabled(zapcore.WarnLevel))
	assert.False(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
}

func TestInitializeWithOptions_File(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })
	path := filepath.Join(t.TempDir(), "powerroam.log")

	require.NoError(t, InitializeWithOptions(Options{Level: "info", File: path}))
	Info("hello", zap.String("k", "v"))
	Sync()

	assert.FileExists(t, path)
}

func TestInitializeWithOptions_DefaultLevel(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	t.Run("applies when nothing else is set", func(t *testing.T) {
		t.Setenv(LogLevelEnvVar, "")
		var buf bytes.Buffer
		require.NoError(t, InitializeWithOptions(Options{DefaultLevel: "warn", Console: &buf}))

		Info("quiet")
		Warn("Checksum validation failed", zap.String("payload", "2A"))
		Sync()

		assert.NotContains(t, buf.String(), "quiet")
		assert.Contains(t, buf.String(), "Checksum validation failed")
		assert.Contains(t, buf.String(), `"2A"`)
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv(LogLevelEnvVar, "error")
		require.NoError(t, InitializeWithOptions(Options{DefaultLevel: "warn", Console: &bytes.Buffer{}}))
		assert.False(t, GetLogger().Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(LogLevelEnvVar, "error")
		require.NoError(t, InitializeWithOptions(Options{Level: "debug", DefaultLevel: "warn", Console: &bytes.Buffer{}}))
		assert.True(t, GetLogger().Core().Enabled(zapcore.DebugLevel))
	})
}

func TestGetLogger_ConcurrentWithInitialize(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	t.Cleanup(func() { SetLogger(nil) })

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Debug("tick")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = InitializeWithOptions(Options{})
			}
		}()
	}
	wg.Wait()
	assert.NotNil(t, GetLogger())
}

func TestInitializeWithOptions_BadLevel(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })
	assert.Error(t, InitializeWithOptions(Options{Level: "chatty"}))
}

func TestLogNotification_OnlyAtDebug(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	LogNotification("ble", []byte{1, 2, 3})
	assert.Equal(t, 0, logs.Len())

	core, logs = observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	LogNotification("ble", []byte{1, 2, 3})
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "010203", entry.ContextMap()["hex"])
	assert.Equal(t, "ble", entry.ContextMap()["source"])
}
