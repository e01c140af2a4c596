package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/powerroam/powerroam/internal/logging"
)

// Link is a bidirectional connection to one power station.
type Link interface {
	// Notifications subscribes to the device and returns a channel of raw
	// notification buffers.
	Notifications(ctx context.Context) (<-chan []byte, error)

	// Write sends one command frame without waiting for a response.
	Write(ctx context.Context, frame []byte) error

	Close() error
}

var (
	ErrClosed            = errors.New("link closed")
	ErrAlreadySubscribed = errors.New("notifications already subscribed")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrNoCharacteristic  = errors.New("characteristic not found")
)

// notificationBuffer is the channel depth links use before dropping.
const notificationBuffer = 32

// Kind selects a Link implementation.
type Kind string

const (
	KindBLE    Kind = "ble"
	KindBridge Kind = "bridge"
	KindSerial Kind = "serial"
	KindReplay Kind = "replay"
)

// Kinds lists every supported transport.
var Kinds = []Kind{KindBLE, KindBridge, KindSerial, KindReplay}

// ParseKind parses a transport name, as given to --transport.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown transport %q (expected ble, bridge, serial or replay)", s)
}

// Options configures Open. Only the fields of the selected Kind are used.
type Options struct {
	Kind Kind

	// BLE
	DeviceName  string
	ScanTimeout time.Duration
	NotifyUUID  string
	WriteUUID   string

	// Bridge
	BridgeURL string

	// Serial
	SerialPort string
	BaudRate   int

	// Replay
	ReplayFile     string
	ReplayInterval time.Duration
}

// Open connects the link selected by opts.Kind.
func Open(ctx context.Context, opts Options) (Link, error) {
	switch opts.Kind {
	case KindBLE, "":
		return DialBLE(ctx, BLEOptions{
			DeviceName:  opts.DeviceName,
			ScanTimeout: opts.ScanTimeout,
			NotifyUUID:  opts.NotifyUUID,
			WriteUUID:   opts.WriteUUID,
		})
	case KindBridge:
		if opts.BridgeURL == "" {
			return nil, errors.New("bridge transport requires a bridge URL")
		}
		return DialBridge(ctx, opts.BridgeURL)
	case KindSerial:
		if opts.SerialPort == "" {
			return nil, errors.New("serial transport requires a serial port")
		}
		return OpenSerial(opts.SerialPort, opts.BaudRate)
	case KindReplay:
		if opts.ReplayFile == "" {
			return nil, errors.New("replay transport requires a capture file")
		}
		return OpenReplay(opts.ReplayFile, opts.ReplayInterval)
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.Kind)
	}
}

// fanout forwards buffers to a subscriber channel and closes it exactly once.
// Sends never block: when the subscriber falls behind, buffers are dropped
// and a warning is logged at most every dropWarnInterval.
type fanout struct {
	ch      chan []byte
	closed  bool
	source  string
	dropped int
	warn    rate.Sometimes
}

const dropWarnInterval = 5 * time.Second

func newFanout(source string) *fanout {
	return &fanout{
		ch:     make(chan []byte, notificationBuffer),
		source: source,
		warn:   rate.Sometimes{First: 1, Interval: dropWarnInterval},
	}
}

// send reports false when the buffer was dropped.
func (f *fanout) send(data []byte) bool {
	if f.closed {
		return false
	}
	select {
	case f.ch <- data:
		return true
	default:
		f.dropped++
		f.warn.Do(func() {
			logging.Warn("Dropped notifications, consumer too slow",
				zap.String("source", f.source), zap.Int("dropped", f.dropped))
		})
		return false
	}
}

// hold queues data for a subscriber that has not arrived yet. Once the
// buffer is full, later data is dropped silently so the oldest buffers stay.
func (f *fanout) hold(data []byte) {
	if f.closed {
		return
	}
	select {
	case f.ch <- data:
	default:
	}
}

func (f *fanout) close() {
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}
