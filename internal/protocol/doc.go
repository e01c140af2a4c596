// Package protocol implements the PowerRoam power station BLE protocol.
//
// The station pushes telemetry as GATT notifications. A single notification
// usually carries several records back to back, each introduced by the same
// 4-byte separator. Commands travel the other way in a slightly different
// framing.
//
// # Inbound Records
//
// Every record has this layout:
//   - Separator: 5A A5 C0 A1
//   - Tag: 1 byte, selects the update kind
//   - Length: 2 bytes (little-endian), data bytes only
//   - Data: Length bytes
//   - Checksum: 2 bytes (little-endian) CRC-16/MODBUS
//
// The checksum covers the last two separator bytes, the tag, the length field
// and the data. The separator is not escaped, so a data payload that happens
// to contain 5A A5 C0 A1 is split there. The device has never been observed to
// send such a payload and the ambiguity is kept as is.
//
// # Update Kinds
//
//   - 0x04 Power: battery and inverter power
//   - 0x09 Capacity: charge and discharge time, battery percent
//   - 0x0b AcPower: AC output power
//   - 0x0c DcPower: USB-C, USB-A and total DC output power
//   - 0x0f TotalPower: total input and output power
//   - 0x13 FlashlightStatus: flashlight mode
//   - 0x15 BatteryPercent: raw battery percent
//   - 0x16 Status: switches, warnings and AC frequency
//
// Unknown tags and records shorter than their kind requires are dropped
// without an error. The device emits several record kinds nobody has mapped
// yet.
//
// # Usage Example - Decoding
//
//	updates, err := protocol.DecodeNotification(buf)
//	if err != nil {
//	    // per-record failures, the updates are still usable
//	    logging.Debug("Notification had bad records", zap.Error(err))
//	}
//	for _, u := range updates {
//	    switch u := u.(type) {
//	    case protocol.TotalPower:
//	        fmt.Println(u.Input, u.Output)
//	    }
//	}
//
// # Usage Example - Snapshot
//
//	info, ok := protocol.BuildDeviceInfo(slices.Values(updates))
//
// # Usage Example - Commands
//
//	frame := protocol.BuildFlashlightRequest(protocol.FlashlightSOS)
//	err := link.Write(ctx, frame)
//
// # Error Handling
//
// The decoder distinguishes between:
//   - ErrMalformedFrame: truncated record or a length field past the buffer
//   - ErrChecksumMismatch: record failed CRC validation
//   - ErrInvalidFlashlightMode: flashlight record with an unknown mode byte
//
// None of them stop decoding of the remaining records.
//
// # Thread Safety
//
// Decoding and encoding functions are stateless and safe for concurrent use.
// State is not; give every notification stream its own.
package protocol
