package protocol

import (
	"encoding/hex"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/powerroam/powerroam/internal/logging"
)

// captureLen is the size of every notification captured from the device.
// The tail is zero padding after the last record.
const captureLen = 128

// capture builds a notification buffer from the hex of its meaningful prefix.
func capture(t *testing.T, prefix string) []byte {
	t.Helper()
	b, err := hex.DecodeString(prefix)
	if err != nil {
		t.Fatalf("bad hex %q: %v", prefix, err)
	}
	if len(b) > captureLen {
		t.Fatalf("capture prefix is %d bytes, max %d", len(b), captureLen)
	}
	return append(b, make([]byte, captureLen-len(b))...)
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// Notifications captured from a PowerRoam station during normal operation.
const (
	captureTotalAndAC     = "5aa5c0a10f0400000003006f355aa5c0a10b08000000000000000000d826"
	captureStatusLightLow = "5aa5c0a1160c000100010100000001010000009e0c5aa5c0a11301000138465aa5c0a1170600000000000000c67a"
	captureStatusLightOff = "5aa5c0a1160c000100010100000001010000009e0c5aa5c0a113010000f9865aa5c0a1170600000000000000c67a"
	captureDCAndBattery   = "5aa5c0a10c0e0000000000000003000000000000006a995aa5c0a115010000f90e"
	capturePowerCapacity  = "5aa5c0a10408004400470055004d00c61a5aa5c0a1091c00f2007e0d930d930d8e0d900d920d920d6409000000d4155aa46a000010fc"
)

var capturedStatus = Status{
	LowNoise:          true,
	LowBatteryWarning: false,
	USBSwitch:         true,
	DCSwitch:          true,
	ACFrequencyHz:     0,
	WarningVoice:      false,
	ACTurbo:           false,
	ACSwitch:          true,
	BatteryHealth:     true,
	Locking:           false,
	KeyVoice:          true,
	Standby:           false,
}

func TestDecodeNotification_Captures(t *testing.T) {
	tests := []struct {
		name    string
		capture string
		want    []Update
	}{
		{
			name:    "total power then ac power",
			capture: captureTotalAndAC,
			want:    []Update{TotalPower{Input: 0, Output: 3}, ACPower(0)},
		},
		{
			name:    "status, flashlight low, unknown tag 0x17",
			capture: captureStatusLightLow,
			want:    []Update{capturedStatus, FlashlightStatus{Mode: FlashlightLow}},
		},
		{
			name:    "status, flashlight off, unknown tag 0x17",
			capture: captureStatusLightOff,
			want:    []Update{capturedStatus, FlashlightStatus{Mode: FlashlightOff}},
		},
		{
			name:    "dc power then battery percent",
			capture: captureDCAndBattery,
			want: []Update{
				DCPower{TypeCOne: 0, TypeCTwo: 0, USBOne: 0, USBTwo: 3, Total: 0},
				BatteryPercent(0),
			},
		},
		{
			name:    "power then capacity",
			capture: capturePowerCapacity,
			want: []Update{
				Power{BatteryOne: 68, BatteryTwo: 71, InverterOne: 85, InverterTwo: 77},
				Capacity{ChargeTime: 0, DischargeTime: 5588, BatteryPercent: 90},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeNotification(capture(t, tt.capture))
			if err != nil {
				t.Fatalf("DecodeNotification() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeNotification() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRecord_SingleBitFlipFailsValidation(t *testing.T) {
	records := []string{
		"5aa5c0a10f0400000003006f35",
		"5aa5c0a1160c000100010100000001010000009e0c",
		"5aa5c0a1091c00f2007e0d930d930d8e0d900d920d920d6409000000d4155aa46a000010fc",
	}

	for _, rec := range records {
		original := mustHex(t, rec)
		if _, err := DecodeRecord(original); err != nil {
			t.Fatalf("baseline record %s: unexpected error %v", rec, err)
		}

		dataLen := int(original[5]) | int(original[6])<<8
		for i := checksumStart; i < headerLen+dataLen; i++ {
			for bit := 0; bit < 8; bit++ {
				flipped := slices.Clone(original)
				flipped[i] ^= 1 << bit

				update, err := DecodeRecord(flipped)
				if err == nil {
					t.Errorf("record %s: flipping byte %d bit %d decoded to %v, want error", rec[:12], i, bit, update)
				}
			}
		}
	}
}

func TestDecodeRecord_Errors(t *testing.T) {
	tests := []struct {
		name    string
		record  []byte
		wantErr error
	}{
		{
			name:    "shorter than header",
			record:  []byte{0x5a, 0xa5, 0xc0, 0xa1, 0x0f},
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "length field past end of record",
			record:  []byte{0x5a, 0xa5, 0xc0, 0xa1, 0x0f, 0x40, 0x00, 0x00, 0x00},
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "length field of 0xffff",
			record:  []byte{0x5a, 0xa5, 0xc0, 0xa1, 0x0f, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00},
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "missing checksum bytes",
			record:  []byte{0x5a, 0xa5, 0xc0, 0xa1, 0x0f, 0x04, 0x00, 0x00, 0x00, 0x03, 0x00},
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "garbage without separator",
			record:  []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09},
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "wrong checksum",
			record:  []byte{0x5a, 0xa5, 0xc0, 0xa1, 0x0f, 0x04, 0x00, 0x00, 0x00, 0x03, 0x00, 0x6f, 0x36},
			wantErr: ErrChecksumMismatch,
		},
		{
			name:    "flashlight mode out of range",
			record:  buildRecord(TagFlashlightStatus, []byte{0x05}),
			wantErr: ErrInvalidFlashlightMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := DecodeRecord(tt.record)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodeRecord() error = %v, want %v", err, tt.wantErr)
			}
			if update != nil {
				t.Errorf("DecodeRecord() update = %v, want nil", update)
			}
		})
	}
}

func TestDecodeRecord_InvalidFlashlightIsNotUnknownTag(t *testing.T) {
	_, err := DecodeRecord(buildRecord(TagFlashlightStatus, []byte{0xff}))

	var valErr *InvalidValueError
	if !errors.As(err, &valErr) {
		t.Fatalf("DecodeRecord() error = %v, want *InvalidValueError", err)
	}
	if valErr.Value != 0xff || valErr.Tag != TagFlashlightStatus {
		t.Errorf("InvalidValueError = %+v", valErr)
	}
	if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrMalformedFrame) {
		t.Errorf("invalid value error must not match other kinds: %v", err)
	}
}

func TestDecodeRecord_ChecksumErrorCarriesPayload(t *testing.T) {
	record := mustHex(t, "5aa5c0a10f0400000003006f36")

	_, err := DecodeRecord(record)

	var csErr *ChecksumError
	if !errors.As(err, &csErr) {
		t.Fatalf("DecodeRecord() error = %v, want *ChecksumError", err)
	}
	if diff := cmp.Diff([]byte{0x00, 0x00, 0x03, 0x00}, csErr.Payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if csErr.Expected != 0x356f || csErr.Actual != 0x366f {
		t.Errorf("checksums = 0x%04x/0x%04x, want 0x356f/0x366f", csErr.Expected, csErr.Actual)
	}
}

func TestDecodeRecord_Ignored(t *testing.T) {
	tests := []struct {
		name   string
		record []byte
	}{
		{name: "empty", record: nil},
		{name: "unknown tag", record: buildRecord(0x17, make([]byte, 6))},
		{name: "power too short", record: buildRecord(TagPower, make([]byte, 7))},
		{name: "capacity too short", record: buildRecord(TagCapacity, make([]byte, 23))},
		{name: "ac power too short", record: buildRecord(TagACPower, make([]byte, 7))},
		{name: "dc power too short", record: buildRecord(TagDCPower, make([]byte, 9))},
		{name: "total power too short", record: buildRecord(TagTotalPower, make([]byte, 3))},
		{name: "flashlight empty", record: buildRecord(TagFlashlightStatus, nil)},
		{name: "battery empty", record: buildRecord(TagBatteryPercent, nil)},
		{name: "status too short", record: buildRecord(TagStatus, make([]byte, 11))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := DecodeRecord(tt.record)
			if err != nil {
				t.Fatalf("DecodeRecord() error = %v, want nil", err)
			}
			if update != nil {
				t.Errorf("DecodeRecord() = %v, want nil", update)
			}
		})
	}
}

func TestDecodeRecord_Variants(t *testing.T) {
	capacityData := make([]byte, 24)
	capacityData[19], capacityData[20] = 0xff, 0xff
	capacityData[21], capacityData[22] = 0x2c, 0x01
	capacityData[23] = 77

	tests := []struct {
		name   string
		record []byte
		want   Update
	}{
		{
			name:   "ac power reads offset 6",
			record: buildRecord(TagACPower, []byte{9, 9, 9, 9, 9, 9, 0xf4, 0x01}),
			want:   ACPower(500),
		},
		{
			name:   "capacity keeps 0xffff charge time",
			record: buildRecord(TagCapacity, capacityData),
			want:   Capacity{ChargeTime: 0xffff, DischargeTime: 300, BatteryPercent: 77},
		},
		{
			name:   "battery percent",
			record: buildRecord(TagBatteryPercent, []byte{64}),
			want:   BatteryPercent(64),
		},
		{
			name:   "status key voice inverted",
			record: buildRecord(TagStatus, []byte{0, 1, 0, 0, 50, 1, 1, 0, 0, 1, 1, 1}),
			want: Status{
				LowBatteryWarning: true,
				ACFrequencyHz:     50,
				WarningVoice:      true,
				ACTurbo:           true,
				Locking:           true,
				KeyVoice:          false,
				Standby:           true,
			},
		},
		{
			name:   "flashlight sos",
			record: buildRecord(TagFlashlightStatus, []byte{4}),
			want:   FlashlightStatus{Mode: FlashlightSOS},
		},
		{
			name:   "trailing bytes after checksum are ignored",
			record: append(buildRecord(TagTotalPower, []byte{0x10, 0x00, 0x20, 0x00}), 0, 0, 0, 0),
			want:   TotalPower{Input: 16, Output: 32},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecord(tt.record)
			if err != nil {
				t.Fatalf("DecodeRecord() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeRecord() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeNotification_BadRecordDoesNotStopBatch(t *testing.T) {
	var buf []byte
	buf = append(buf, buildRecord(TagTotalPower, []byte{1, 0, 2, 0})...)
	bad := buildRecord(TagBatteryPercent, []byte{50})
	bad[len(bad)-1] ^= 0xff
	buf = append(buf, bad...)
	buf = append(buf, buildRecord(TagFlashlightStatus, []byte{9})...)
	buf = append(buf, buildRecord(TagACPower, make([]byte, 8))...)

	updates, tally, err := DecodeNotificationTally(buf)

	want := []Update{TotalPower{Input: 1, Output: 2}, ACPower(0)}
	if diff := cmp.Diff(want, updates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("error %v should include checksum mismatch", err)
	}
	if !errors.Is(err, ErrInvalidFlashlightMode) {
		t.Errorf("error %v should include invalid flashlight mode", err)
	}
	wantTally := Tally{Decoded: 2, Checksum: 1, Invalid: 1}
	if diff := cmp.Diff(wantTally, tally); diff != "" {
		t.Errorf("tally mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeNotification_LogsChecksumFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	_, err := DecodeNotification(mustHex(t, "5aa5c0a10f0400000003006f36"))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("DecodeNotification() error = %v, want checksum mismatch", err)
	}

	entries := logs.FilterMessage("Checksum validation failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d checksum warnings, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["payload"] != "00 00 03 00" || fields["tag"] != "TotalPower" {
		t.Errorf("warning fields = %v", fields)
	}
}

func TestDecodeNotification_TruncatedTail(t *testing.T) {
	buf := buildRecord(TagTotalPower, []byte{5, 0, 6, 0})
	buf = append(buf, buildRecord(TagDCPower, make([]byte, 10))[:12]...)

	updates, err := DecodeNotification(buf)

	if diff := cmp.Diff([]Update{TotalPower{Input: 5, Output: 6}}, updates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("error = %v, want malformed frame", err)
	}
}

func TestSplitRecords(t *testing.T) {
	sep := Separator[:]
	tests := []struct {
		name string
		buf  []byte
		want [][]byte
	}{
		{
			name: "no separator yields whole buffer",
			buf:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
			want: [][]byte{{1, 2, 3, 4, 5, 6, 7, 8}},
		},
		{
			name: "short buffer yields whole buffer",
			buf:  []byte{0x5a, 0xa5, 0xc0, 0xa1},
			want: [][]byte{{0x5a, 0xa5, 0xc0, 0xa1}},
		},
		{
			name: "empty buffer yields one empty slice",
			buf:  []byte{},
			want: [][]byte{{}},
		},
		{
			name: "leading bytes are discarded",
			buf:  slices.Concat([]byte{0xee, 0xee}, sep, []byte{1, 2}, sep, []byte{3}),
			want: [][]byte{slices.Concat(sep, []byte{1, 2}), slices.Concat(sep, []byte{3})},
		},
		{
			name: "back to back separators",
			buf:  slices.Concat(sep, sep, []byte{9}),
			want: [][]byte{slices.Clone(sep), slices.Concat(sep, []byte{9})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(SplitRecords(tt.buf))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitRecords() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitRecords_CountMatchesSeparators(t *testing.T) {
	for n := 1; n <= 6; n++ {
		var buf []byte
		for i := 0; i < n; i++ {
			buf = append(buf, buildRecord(TagBatteryPercent, []byte{byte(i)})...)
		}

		got := slices.Collect(SplitRecords(buf))
		if len(got) != n {
			t.Fatalf("n=%d: got %d slices", n, len(got))
		}
		for i, s := range got {
			if len(s) == 0 {
				t.Errorf("n=%d: slice %d is empty", n, i)
			}
		}
	}
}

func TestSplitRecords_StopsEarly(t *testing.T) {
	buf := capture(t, captureStatusLightLow)

	count := 0
	for range SplitRecords(buf) {
		count++
		break
	}
	if count != 1 {
		t.Errorf("iterated %d times after break, want 1", count)
	}
}

// buildRecord frames data as an inbound record with a valid checksum.
func buildRecord(tag Tag, data []byte) []byte {
	rec := append([]byte{}, Separator[:]...)
	rec = append(rec, byte(tag), byte(len(data)), byte(len(data)>>8))
	rec = append(rec, data...)
	crc := Checksum(rec[checksumStart:])
	return append(rec, byte(crc), byte(crc>>8))
}
