package transport

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/logging"
)

// CaptureHeader is written at the top of every new capture file.
const CaptureHeader = "# powerroam capture v1"

// CaptureEntry is one recorded notification.
type CaptureEntry struct {
	Time time.Time // zero when the line had no timestamp
	Data []byte
}

// FormatLine renders one capture line without the trailing newline. A zero
// ts omits the timestamp.
func FormatLine(ts time.Time, data []byte) string {
	if ts.IsZero() {
		return hex.EncodeToString(data)
	}
	return ts.UTC().Format(time.RFC3339Nano) + " " + hex.EncodeToString(data)
}

// ParseLine decodes one capture line. ok is false for blank and comment
// lines.
func ParseLine(line string) (entry CaptureEntry, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return CaptureEntry{}, false, nil
	}

	fields := strings.Fields(line)
	if ts, perr := time.Parse(time.RFC3339Nano, fields[0]); perr == nil {
		entry.Time = ts
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return CaptureEntry{}, false, fmt.Errorf("timestamp without data")
	}

	data, err := hex.DecodeString(strings.Join(fields, ""))
	if err != nil {
		return CaptureEntry{}, false, fmt.Errorf("invalid hex: %w", err)
	}
	entry.Data = data
	return entry, true, nil
}

// ReadCapture reads every entry of a capture. Errors carry the line number.
func ReadCapture(r io.Reader) ([]CaptureEntry, error) {
	var entries []CaptureEntry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		entry, ok, err := ParseLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return entries, nil
}

// CaptureWriter appends notifications to a capture stream. It is safe for
// concurrent use.
type CaptureWriter struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewCaptureWriter writes the capture header, followed by an optional
// comment line, and returns a writer for the entries.
func NewCaptureWriter(w io.Writer, comment string) (*CaptureWriter, error) {
	header := CaptureHeader + "\n"
	if comment != "" {
		header += "# " + comment + "\n"
	}
	if _, err := io.WriteString(w, header); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &CaptureWriter{w: w, now: time.Now}, nil
}

// WriteNotification appends one timestamped line.
func (c *CaptureWriter) WriteNotification(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := io.WriteString(c.w, FormatLine(c.now(), data)+"\n")
	return err
}

// Recorder is a Link that copies every notification of the wrapped link to
// a capture before passing it on.
type Recorder struct {
	Link
	capture *CaptureWriter
	count   int
	mu      sync.Mutex
}

// NewRecorder wraps link so that its notifications are written to capture.
func NewRecorder(link Link, capture *CaptureWriter) *Recorder {
	return &Recorder{Link: link, capture: capture}
}

// Notifications implements Link.
func (r *Recorder) Notifications(ctx context.Context) (<-chan []byte, error) {
	in, err := r.Link.Notifications(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte, notificationBuffer)
	go func() {
		defer close(out)
		for data := range in {
			if err := r.capture.WriteNotification(data); err != nil {
				logging.Error("Failed to record notification", zap.Error(err))
			} else {
				r.mu.Lock()
				r.count++
				r.mu.Unlock()
			}
			select {
			case out <- data:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Recorded returns how many notifications have been written so far.
func (r *Recorder) Recorded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
