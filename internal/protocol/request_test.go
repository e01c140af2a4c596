package protocol

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{
			name:    "flashlight off",
			payload: []byte{0x13, 0x01, 0x00, 0x00},
			want:    "5aa5a1c0130100004c3f",
		},
		{
			name:    "leading zeros stripped",
			payload: []byte{0x00, 0x00, 0x06, 0x00, 0x00},
			want:    "5aa5a1c006000045d8",
		},
		{
			name:    "interior zeros kept",
			payload: []byte{0x20, 0x00, 0x00},
			want:    "5aa5a1c0200000a413",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildRequest(tt.payload)
			if diff := cmp.Diff(mustHex(t, tt.want), got); diff != "" {
				t.Errorf("BuildRequest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildRequest_EmptyPayload(t *testing.T) {
	want := BuildRequest(nil)
	for _, payload := range [][]byte{{}, {0x00}, {0x00, 0x00, 0x00}} {
		if diff := cmp.Diff(want, BuildRequest(payload)); diff != "" {
			t.Errorf("BuildRequest(%x) mismatch (-want +got):\n%s", payload, diff)
		}
	}
	if len(want) != 6 {
		t.Errorf("empty frame length = %d, want 6", len(want))
	}
	if crc := Checksum(requestChecksumPrefix[:]); want[4] != byte(crc) || want[5] != byte(crc>>8) {
		t.Errorf("empty frame checksum = %x, want %04x", want[4:], crc)
	}
}

func TestBuildFlashlightRequest(t *testing.T) {
	tests := []struct {
		mode FlashlightMode
		want string
	}{
		{FlashlightOff, "5aa5a1c0130100004c3f"},
		{FlashlightLow, "5aa5a1c0130100018dff"},
		{FlashlightStrobe, "5aa5a1c0130100030c3e"},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got := BuildFlashlightRequest(tt.mode)
			if diff := cmp.Diff(mustHex(t, tt.want), got); diff != "" {
				t.Errorf("BuildFlashlightRequest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildFlashlightRequest_AllModesFramed(t *testing.T) {
	for _, mode := range FlashlightModes {
		frame := BuildFlashlightRequest(mode)
		if len(frame) != 10 {
			t.Errorf("%s: frame length = %d, want 10", mode, len(frame))
			continue
		}
		if frame[7] != byte(mode) {
			t.Errorf("%s: mode byte = %d", mode, frame[7])
		}
		crc := Checksum(append([]byte{0xa1, 0xc0}, frame[4:8]...))
		if frame[8] != byte(crc) || frame[9] != byte(crc>>8) {
			t.Errorf("%s: checksum bytes %x, want %04x", mode, frame[8:], crc)
		}
	}
}

func TestParseFlashlightMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FlashlightMode
		wantErr bool
	}{
		{"off", FlashlightOff, false},
		{"LOW", FlashlightLow, false},
		{"High", FlashlightHigh, false},
		{"strobe", FlashlightStrobe, false},
		{"sos", FlashlightSOS, false},
		{"disco", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFlashlightMode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFlashlightMode) {
					t.Errorf("ParseFlashlightMode(%q) error = %v, want ErrInvalidFlashlightMode", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFlashlightMode(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFlashlightMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFlashlightByte(t *testing.T) {
	for b := 0; b < 256; b++ {
		mode, err := ParseFlashlightByte(byte(b))
		if b <= 4 {
			if err != nil || byte(mode) != byte(b) {
				t.Errorf("ParseFlashlightByte(%d) = %v, %v", b, mode, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidFlashlightMode) {
			t.Errorf("ParseFlashlightByte(%d) error = %v, want ErrInvalidFlashlightMode", b, err)
		}
	}
}
