package device

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerroam/powerroam/internal/protocol"
	"github.com/powerroam/powerroam/internal/transport"
)

// Notifications captured from a station; the first is the stale replay.
var captured = []string{
	"5aa5c0a115010000f90e",
	"5aa5c0a10f0400000003006f355aa5c0a10b08000000000000000000d826",
	"5aa5c0a1160c000100010100000001010000009e0c5aa5c0a11301000138465aa5c0a1170600000000000000c67a",
	"5aa5c0a10c0e0000000000000003000000000000006a995aa5c0a115010000f90e",
	"5aa5c0a10408004400470055004d00c61a5aa5c0a1091c00f2007e0d930d930d8e0d900d920d920d6409000000d4155aa46a000010fc",
}

func replay(t *testing.T, lines ...string) *transport.ReplayLink {
	t.Helper()
	entries := make([]transport.CaptureEntry, 0, len(lines))
	for _, l := range lines {
		data, err := hex.DecodeString(l)
		require.NoError(t, err)
		entries = append(entries, transport.CaptureEntry{Data: data})
	}
	link := transport.NewReplayLink(entries, 0)
	t.Cleanup(func() { _ = link.Close() })
	return link
}

type tallyRecorder struct {
	mu      sync.Mutex
	tallies []protocol.Tally
}

func (r *tallyRecorder) ObserveNotification(t protocol.Tally) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tallies = append(r.tallies, t)
}

func TestSession_UpdatesSkipsFirstNotification(t *testing.T) {
	obs := &tallyRecorder{}
	s := NewSession(replay(t, captured[0], captured[1]), WithObserver(obs))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := s.Updates(ctx)
	require.NoError(t, err)

	var got []protocol.Update
	for u := range ch {
		got = append(got, u)
	}
	assert.Equal(t, []protocol.Update{
		protocol.TotalPower{Input: 0, Output: 3},
		protocol.ACPower(0),
	}, got)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.tallies, 1)
	assert.Equal(t, protocol.Tally{Decoded: 2}, obs.tallies[0])
}

func TestSession_UpdatesSurvivesBadRecords(t *testing.T) {
	obs := &tallyRecorder{}
	s := NewSession(replay(t,
		captured[0],
		"5aa5c0a10f0400000003006f36", // bad checksum
		"5aa5c0a115010000f90e",
	), WithObserver(obs))

	ch, err := s.Updates(context.Background())
	require.NoError(t, err)

	var got []protocol.Update
	for u := range ch {
		got = append(got, u)
	}
	assert.Equal(t, []protocol.Update{protocol.BatteryPercent(0)}, got)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.tallies, 2)
	assert.Equal(t, 1, obs.tallies[0].Checksum)
}

func TestSession_Status(t *testing.T) {
	s := NewSession(replay(t, captured...))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := s.Status(ctx)
	require.NoError(t, err)

	assert.Equal(t, protocol.Power{BatteryOne: 68, BatteryTwo: 71, InverterOne: 85, InverterTwo: 77}, info.Power)
	assert.Equal(t, protocol.FlashlightLow, info.Flashlight)
	assert.Equal(t, uint16(5588), info.Capacity.DischargeTime)
	assert.Equal(t, protocol.DCPower{USBTwo: 3}, info.DCPower)
	assert.True(t, info.Status.KeyVoice)
}

func TestSession_StatusIncomplete(t *testing.T) {
	s := NewSession(replay(t, captured[0], captured[1]))

	_, err := s.Status(context.Background())
	assert.ErrorIs(t, err, protocol.ErrIncompleteSnapshot)
}

func TestSession_Flashlight(t *testing.T) {
	s := NewSession(replay(t, captured[0], captured[1], captured[2]))

	mode, err := s.Flashlight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.FlashlightLow, mode)
}

func TestSession_FlashlightStreamEnded(t *testing.T) {
	s := NewSession(replay(t, captured[0], captured[1]))

	_, err := s.Flashlight(context.Background())
	assert.ErrorIs(t, err, ErrStreamEnded)
}

type writeLink struct {
	transport.Link
	writes [][]byte
	err    error
}

func (w *writeLink) Write(_ context.Context, frame []byte) error {
	if w.err != nil {
		return w.err
	}
	w.writes = append(w.writes, frame)
	return nil
}

func TestSession_SetFlashlight(t *testing.T) {
	link := &writeLink{}
	s := NewSession(link)

	require.NoError(t, s.SetFlashlight(context.Background(), protocol.FlashlightLow))
	require.Len(t, link.writes, 1)
	assert.Equal(t, "5aa5a1c0130100018dff", hex.EncodeToString(link.writes[0]))

	err := s.SetFlashlight(context.Background(), protocol.FlashlightMode(7))
	assert.ErrorIs(t, err, protocol.ErrInvalidFlashlightMode)
	assert.Len(t, link.writes, 1)
}

func TestSession_SetFlashlightWriteError(t *testing.T) {
	boom := errors.New("boom")
	s := NewSession(&writeLink{err: boom})

	err := s.SetFlashlight(context.Background(), protocol.FlashlightOff)
	assert.ErrorIs(t, err, boom)
}
