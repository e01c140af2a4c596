// Package transport delivers raw notification buffers from a power station
// and carries command frames back to it.
//
// Every transport implements Link. A Link hands out one notification buffer
// per channel receive, whole and in arrival order; it never reassembles or
// splits buffers, that is the job of the protocol package.
//
// # Links
//
//   - BLE: talks to the station directly through the host Bluetooth adapter
//     (tinygo.org/x/bluetooth).
//   - Bridge: dials a BLE-to-WebSocket bridge. Each binary message is one
//     notification; commands go back as binary messages.
//   - Serial: a USB dongle that forwards one hex-encoded notification per line.
//   - Replay: plays back a capture file. Writes are logged and discarded.
//
// # Capture Files
//
// Captures are plain text, one notification per line:
//
//	# powerroam capture
//	2026-10-19T08:15:02.114Z 5aa5c0a10f0400000003006f35...
//	5A A5 C0 A1 0B 08 00 00 00 00 00 00 00 00 00 D8 26
//
// Lines starting with '#' and blank lines are skipped. The RFC3339 timestamp
// is optional and hex may be written with or without spaces. A Recorder wraps
// any Link and appends what it receives in this format.
//
// # Lifecycle
//
// Notifications may be called once per Link. The returned channel closes when
// ctx is cancelled, the link is closed, or the underlying transport ends.
// Close is safe to call more than once.
package transport
