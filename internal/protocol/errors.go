package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Sentinel errors for per-record decode failures. Use errors.Is against
// these; the concrete types below carry the details.
var (
	// ErrMalformedFrame means the record is truncated or its length field
	// points past the end of the buffer.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrChecksumMismatch means the record failed CRC validation.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrInvalidFlashlightMode means a flashlight record carried a mode byte
	// outside the known set.
	ErrInvalidFlashlightMode = errors.New("invalid flashlight mode")

	// ErrIncompleteSnapshot means the update source ended before every
	// snapshot field was seen.
	ErrIncompleteSnapshot = errors.New("update stream ended before snapshot was complete")
)

// FrameError describes a record that could not be sliced safely.
type FrameError struct {
	Reason   string
	Declared int // declared data length, -1 if the header was unreadable
	Actual   int // bytes available in the candidate slice
}

func (e *FrameError) Error() string {
	if e.Declared < 0 {
		return fmt.Sprintf("malformed frame: %s (%d bytes)", e.Reason, e.Actual)
	}
	return fmt.Sprintf("malformed frame: %s (declared %d data bytes, record needs %d, have %d)",
		e.Reason, e.Declared, e.Declared+recordOverhead, e.Actual)
}

func (e *FrameError) Unwrap() error { return ErrMalformedFrame }

// ChecksumError describes a record whose trailing checksum did not match.
type ChecksumError struct {
	Tag      Tag
	Expected uint16 // checksum computed over the record
	Actual   uint16 // checksum carried by the record
	Payload  []byte // record data bytes
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for tag 0x%02x: computed 0x%04x, record has 0x%04x, payload %s",
		byte(e.Tag), e.Expected, e.Actual, hex.EncodeToString(e.Payload))
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// InvalidValueError describes a record whose field held a byte outside the
// field's closed set of values.
type InvalidValueError struct {
	Tag   Tag
	Field string
	Value byte
	err   error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%v: tag 0x%02x field %s has value 0x%02x", e.err, byte(e.Tag), e.Field, e.Value)
}

func (e *InvalidValueError) Unwrap() error { return e.err }
