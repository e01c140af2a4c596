package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"ble", KindBLE, false},
		{"BRIDGE", KindBridge, false},
		{"serial", KindSerial, false},
		{"replay", KindReplay, false},
		{"usb", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_MissingTarget(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"bridge without url", Options{Kind: KindBridge}},
		{"serial without port", Options{Kind: KindSerial}},
		{"replay without file", Options{Kind: KindReplay}},
		{"unknown kind", Options{Kind: "carrier-pigeon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestOpen_Replay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.cap")
	require.NoError(t, os.WriteFile(path, []byte("0102\n"), 0o600))

	link, err := Open(context.Background(), Options{Kind: KindReplay, ReplayFile: path})
	require.NoError(t, err)
	defer link.Close()

	ch, err := link.Notifications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, receive(t, ch))
}

func TestMatchName(t *testing.T) {
	assert.True(t, matchName("UGREEN GS1200", "ugreen gs"))
	assert.True(t, matchName("ugreen gs", "ugreen gs"))
	assert.False(t, matchName("", "ugreen gs"))
	assert.False(t, matchName("Pixel 9", "ugreen gs"))
}

func TestFanout_DropsWhenFull(t *testing.T) {
	f := newFanout("test")
	for i := range notificationBuffer {
		require.True(t, f.send([]byte{byte(i)}), "send %d", i)
	}

	assert.False(t, f.send([]byte{0xff}))
	assert.False(t, f.send([]byte{0xfe}))
	assert.Equal(t, 2, f.dropped)

	f.close()
	f.close()
	assert.False(t, f.send([]byte{0x00}), "send after close")

	n := 0
	for range f.ch {
		n++
	}
	assert.Equal(t, notificationBuffer, n)
}
