package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"iter"

	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/logging"
)

// Record framing constants
const (
	SeparatorLen   = 4
	headerLen      = SeparatorLen + 1 + 2 // separator + tag + length
	checksumLen    = 2
	recordOverhead = headerLen + checksumLen

	// checksumStart is where CRC coverage begins: the last two separator bytes
	checksumStart = 2
)

// Separator starts every inbound record.
var Separator = [SeparatorLen]byte{0x5a, 0xa5, 0xc0, 0xa1}

// SplitRecords returns the candidate records of a notification buffer.
//
// Each separator occurrence starts a record, the last record runs to the end
// of buf and anything before the first separator is dropped. A buffer that
// is too short to hold a separator and a tag, or that has no separator at
// all, comes back whole as a single candidate. The sequence is lazy and walks
// buf once per range loop.
func SplitRecords(buf []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		first := -1
		if len(buf) > SeparatorLen {
			first = bytes.Index(buf, Separator[:])
		}
		if first < 0 {
			yield(buf)
			return
		}

		start := first
		for {
			next := bytes.Index(buf[start+SeparatorLen:], Separator[:])
			if next < 0 {
				break
			}
			end := start + SeparatorLen + next
			if !yield(buf[start:end]) {
				return
			}
			start = end
		}
		yield(buf[start:])
	}
}

// DecodeRecord decodes one candidate record.
//
// It returns (nil, nil) for an empty slice, an unknown tag or a record too
// short for its tag. Structural problems come back as *FrameError, CRC
// failures as *ChecksumError and out-of-range enum bytes as
// *InvalidValueError.
func DecodeRecord(record []byte) (Update, error) {
	if len(record) == 0 {
		return nil, nil
	}

	if len(record) < headerLen {
		return nil, &FrameError{Reason: "record shorter than header", Declared: -1, Actual: len(record)}
	}
	if !bytes.Equal(record[:SeparatorLen], Separator[:]) {
		return nil, &FrameError{Reason: "record does not start with separator", Declared: -1, Actual: len(record)}
	}

	tag := Tag(record[SeparatorLen])
	dataLen := int(binary.LittleEndian.Uint16(record[SeparatorLen+1 : headerLen]))
	if len(record) < dataLen+recordOverhead {
		return nil, &FrameError{Reason: "length field exceeds record", Declared: dataLen, Actual: len(record)}
	}

	data := record[headerLen : headerLen+dataLen]
	declared := binary.LittleEndian.Uint16(record[headerLen+dataLen : headerLen+dataLen+checksumLen])
	computed := Checksum(record[checksumStart : headerLen+dataLen])
	if computed != declared {
		return nil, &ChecksumError{
			Tag:      tag,
			Expected: computed,
			Actual:   declared,
			Payload:  data,
		}
	}

	return decodeData(tag, data)
}

// decodeData maps validated record data to its update kind.
func decodeData(tag Tag, data []byte) (Update, error) {
	switch tag {
	case TagPower:
		if len(data) < minPowerLen {
			return nil, nil
		}
		return Power{
			BatteryOne:  le16(data, 0),
			BatteryTwo:  le16(data, 2),
			InverterOne: le16(data, 4),
			InverterTwo: le16(data, 6),
		}, nil

	case TagCapacity:
		if len(data) < minCapacityLen {
			return nil, nil
		}
		return Capacity{
			ChargeTime:     le16(data, 19),
			DischargeTime:  le16(data, 21),
			BatteryPercent: data[23],
		}, nil

	case TagACPower:
		if len(data) < minACPowerLen {
			return nil, nil
		}
		return ACPower(le16(data, 6)), nil

	case TagDCPower:
		if len(data) < minDCPowerLen {
			return nil, nil
		}
		return DCPower{
			TypeCOne: le16(data, 0),
			TypeCTwo: le16(data, 2),
			USBOne:   le16(data, 4),
			USBTwo:   le16(data, 6),
			Total:    le16(data, 8),
		}, nil

	case TagTotalPower:
		if len(data) < minTotalPowerLen {
			return nil, nil
		}
		return TotalPower{Input: le16(data, 0), Output: le16(data, 2)}, nil

	case TagFlashlightStatus:
		if len(data) < minFlashlightLen {
			return nil, nil
		}
		mode, err := ParseFlashlightByte(data[0])
		if err != nil {
			return nil, err
		}
		return FlashlightStatus{Mode: mode}, nil

	case TagBatteryPercent:
		if len(data) < minBatteryLen {
			return nil, nil
		}
		return BatteryPercent(data[0]), nil

	case TagStatus:
		if len(data) < minStatusLen {
			return nil, nil
		}
		return Status{
			LowNoise:          data[0] != 0,
			LowBatteryWarning: data[1] != 0,
			USBSwitch:         data[2] != 0,
			DCSwitch:          data[3] != 0,
			ACFrequencyHz:     data[4],
			WarningVoice:      data[5] != 0,
			ACTurbo:           data[6] != 0,
			ACSwitch:          data[7] != 0,
			BatteryHealth:     data[8] != 0,
			Locking:           data[9] != 0,
			KeyVoice:          data[10] == 0, // inverted on the wire
			Standby:           data[11] != 0,
		}, nil

	default:
		return nil, nil
	}
}

// DecodeNotification splits a notification buffer and decodes every record.
// Updates are returned in wire order. Per-record failures never stop the
// batch; they are joined into the returned error. Checksum failures are also
// logged with the offending payload.
func DecodeNotification(buf []byte) ([]Update, error) {
	updates, _, err := DecodeNotificationTally(buf)
	return updates, err
}

// DecodeNotificationTally is DecodeNotification plus per-record outcome counts.
func DecodeNotificationTally(buf []byte) ([]Update, Tally, error) {
	var (
		updates = make([]Update, 0, 2)
		tally   Tally
		errs    []error
	)

	for record := range SplitRecords(buf) {
		update, err := DecodeRecord(record)
		tally.observe(update, err)
		if err != nil {
			var csErr *ChecksumError
			if errors.As(err, &csErr) {
				logging.Warn("Checksum validation failed",
					zap.String("tag", csErr.Tag.String()),
					zap.String("payload", logging.HexString(csErr.Payload)),
				)
			}
			errs = append(errs, err)
			continue
		}
		if update != nil {
			updates = append(updates, update)
		}
	}

	return updates, tally, errors.Join(errs...)
}

// Tally counts per-record outcomes of one or more notifications.
type Tally struct {
	Decoded   int // produced an update
	Ignored   int // empty, unknown tag or undersized
	Malformed int
	Checksum  int
	Invalid   int
}

func (t *Tally) observe(u Update, err error) {
	switch {
	case err == nil && u != nil:
		t.Decoded++
	case err == nil:
		t.Ignored++
	case errors.Is(err, ErrChecksumMismatch):
		t.Checksum++
	case errors.Is(err, ErrMalformedFrame):
		t.Malformed++
	default:
		t.Invalid++
	}
}

// Add accumulates o into t.
func (t *Tally) Add(o Tally) {
	t.Decoded += o.Decoded
	t.Ignored += o.Ignored
	t.Malformed += o.Malformed
	t.Checksum += o.Checksum
	t.Invalid += o.Invalid
}

func le16(data []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(data[off : off+2])
}
