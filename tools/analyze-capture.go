//go:build ignore

// analyze-capture prints a record-by-record breakdown of a capture written
// by "powerroam record".
//
//	go run tools/analyze-capture.go session.cap
package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/powerroam/powerroam/internal/logging"
	"github.com/powerroam/powerroam/internal/protocol"
	"github.com/powerroam/powerroam/internal/transport"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze-capture <capture-file>")
		fmt.Println("Example: analyze-capture session.cap")
		os.Exit(1)
	}

	filename := os.Args[1]
	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error opening file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	entries, err := transport.ReadCapture(f)
	if err != nil {
		fmt.Printf("Error reading capture: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== powerroam Capture Analyzer ===\n")
	fmt.Printf("File: %s\n", filename)
	fmt.Printf("Notifications: %d\n\n", len(entries))

	var total protocol.Tally
	tags := map[protocol.Tag]int{}
	for i, entry := range entries {
		total.Add(analyzeNotification(i+1, entry, tags))
	}

	fmt.Printf("========================================\n")
	fmt.Printf("Summary\n")
	fmt.Printf("========================================\n")
	fmt.Printf("  Decoded:   %d\n", total.Decoded)
	fmt.Printf("  Ignored:   %d\n", total.Ignored)
	fmt.Printf("  Malformed: %d\n", total.Malformed)
	fmt.Printf("  Checksum:  %d\n", total.Checksum)
	fmt.Printf("  Invalid:   %d\n", total.Invalid)
	fmt.Println()
	fmt.Println("Records by tag:")
	for tag := range 256 {
		if n := tags[protocol.Tag(tag)]; n > 0 {
			fmt.Printf("  0x%02x %-18s %d\n", tag, protocol.Tag(tag), n)
		}
	}
}

func analyzeNotification(n int, entry transport.CaptureEntry, tags map[protocol.Tag]int) protocol.Tally {
	ts := "no timestamp"
	if !entry.Time.IsZero() {
		ts = entry.Time.Format("15:04:05.000")
	}

	fmt.Printf("========================================\n")
	fmt.Printf("Notification #%d - %d bytes - %s\n", n, len(entry.Data), ts)
	fmt.Printf("========================================\n")
	if n == 1 {
		fmt.Println("(stale buffer, skipped by sessions)")
	}

	var tally protocol.Tally
	for record := range protocol.SplitRecords(entry.Data) {
		analyzeRecord(record, tags)

		update, err := protocol.DecodeRecord(record)
		switch {
		case err == nil && update != nil:
			tally.Decoded++
			fmt.Printf("    -> %s\n", update)
		case err == nil:
			tally.Ignored++
			fmt.Println("    -> ignored (empty, unknown tag or short)")
		case errors.Is(err, protocol.ErrChecksumMismatch):
			tally.Checksum++
			fmt.Printf("    -> %v\n", err)
		case errors.Is(err, protocol.ErrMalformedFrame):
			tally.Malformed++
			fmt.Printf("    -> %v\n", err)
		default:
			tally.Invalid++
			fmt.Printf("    -> %v\n", err)
		}
	}
	fmt.Println()
	return tally
}

// analyzeRecord prints the header fields and the CRC check of one record.
func analyzeRecord(record []byte, tags map[protocol.Tag]int) {
	const header = protocol.SeparatorLen + 3
	if len(record) < header {
		fmt.Printf("  [short] %s\n", logging.HexString(record))
		return
	}

	tag := protocol.Tag(record[protocol.SeparatorLen])
	length := int(binary.LittleEndian.Uint16(record[protocol.SeparatorLen+1 : header]))
	tags[tag]++
	fmt.Printf("  tag 0x%02x (%s) len %d\n", byte(tag), tag, length)

	end := header + length
	if len(record) < end+2 {
		fmt.Printf("    data (truncated): %s\n", logging.HexString(record[header:]))
		return
	}
	fmt.Printf("    data: %s\n", logging.HexString(record[header:end]))

	declared := binary.LittleEndian.Uint16(record[end : end+2])
	computed := protocol.Checksum(record[2:end])
	if declared == computed {
		fmt.Printf("    crc:  0x%04x ✅\n", declared)
	} else {
		fmt.Printf("    crc:  0x%04x ❌ (computed 0x%04x)\n", declared, computed)
	}
	if trailing := len(record) - end - 2; trailing > 0 {
		fmt.Printf("    trailing padding: %d bytes\n", trailing)
	}
}
