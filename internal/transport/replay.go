package transport

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/logging"
)

// ReplayLink plays back recorded notifications.
//
// With a positive interval, entries are spaced by that interval. With a zero
// interval, entries that carry timestamps are spaced as they were recorded
// and the rest are delivered back to back.
type ReplayLink struct {
	entries  []CaptureEntry
	interval time.Duration
	source   string

	mu         sync.Mutex
	subscribed bool
	closed     bool
	done       chan struct{}
	wg         sync.WaitGroup
}

// OpenReplay loads a capture file for playback.
func OpenReplay(path string, interval time.Duration) (*ReplayLink, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	entries, err := ReadCapture(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	link := NewReplayLink(entries, interval)
	link.source = path
	logging.Info("Loaded capture", zap.String("path", path), zap.Int("notifications", link.Len()))
	return link, nil
}

// NewReplayLink replays entries held in memory.
func NewReplayLink(entries []CaptureEntry, interval time.Duration) *ReplayLink {
	return &ReplayLink{
		entries:  entries,
		interval: interval,
		source:   "replay",
		done:     make(chan struct{}),
	}
}

// Len returns the number of entries to replay.
func (l *ReplayLink) Len() int { return len(l.entries) }

// Notifications implements Link. The channel closes after the last entry.
func (l *ReplayLink) Notifications(ctx context.Context) (<-chan []byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.subscribed {
		return nil, ErrAlreadySubscribed
	}
	l.subscribed = true

	out := make(chan []byte)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(out)

		var prev time.Time
		for i, entry := range l.entries {
			if i > 0 {
				if !l.wait(ctx, l.delay(prev, entry.Time)) {
					return
				}
			}
			prev = entry.Time

			logging.LogNotification(l.source, entry.Data)
			select {
			case out <- entry.Data:
			case <-ctx.Done():
				return
			case <-l.done:
				return
			}
		}
	}()
	return out, nil
}

func (l *ReplayLink) delay(prev, next time.Time) time.Duration {
	if l.interval > 0 {
		return l.interval
	}
	if prev.IsZero() || next.IsZero() || !next.After(prev) {
		return 0
	}
	return next.Sub(prev)
}

func (l *ReplayLink) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-l.done:
		return false
	}
}

// Write implements Link. Frames are logged and discarded.
func (l *ReplayLink) Write(_ context.Context, frame []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	logging.LogWrite(l.source, frame)
	return nil
}

// Close stops playback and waits for the playback goroutine to exit.
func (l *ReplayLink) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.done)
	}
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}
