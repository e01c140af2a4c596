package protocol

import "encoding/binary"

// Outbound frames swap the last two magic bytes relative to the inbound
// separator. The checksum prefix is the reverse of the trailing magic pair.
var (
	requestMagic          = [4]byte{0x5a, 0xa5, 0xa1, 0xc0}
	requestChecksumPrefix = [2]byte{0xa1, 0xc0}
)

// Command payload prefixes
const (
	cmdFlashlight byte = 0x13
)

// BuildRequest frames a command payload for transmission.
//
// Frame Structure:
//
//	[0-3]   5A A5 A1 C0    Request magic
//	[4..n]  payload        Payload with leading zero bytes removed
//	[n+1..] checksum       CRC-16/MODBUS of A1 C0 + payload (little-endian)
//
// An all-zero or empty payload produces a frame with no payload bytes.
func BuildRequest(payload []byte) []byte {
	trimmed := trimLeadingZeros(payload)

	crcInput := make([]byte, 0, len(requestChecksumPrefix)+len(trimmed))
	crcInput = append(crcInput, requestChecksumPrefix[:]...)
	crcInput = append(crcInput, trimmed...)

	frame := make([]byte, 0, len(requestMagic)+len(trimmed)+checksumLen)
	frame = append(frame, requestMagic[:]...)
	frame = append(frame, trimmed...)
	return binary.LittleEndian.AppendUint16(frame, Checksum(crcInput))
}

// BuildFlashlightRequest builds the command that switches the flashlight to
// mode.
//
// Payload Structure:
//
//	[0]  0x13  Flashlight command
//	[1]  0x01  Value length
//	[2]  0x00
//	[3]  mode  FlashlightMode wire value
func BuildFlashlightRequest(mode FlashlightMode) []byte {
	return BuildRequest([]byte{cmdFlashlight, 0x01, 0x00, byte(mode)})
}

func trimLeadingZeros(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}
