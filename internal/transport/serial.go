package transport

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/logging"
)

// DefaultBaudRate is used when no baud rate is configured.
const DefaultBaudRate = 115200

// SerialPorter is the subset of serial.Port the link needs. Tests substitute
// an in-memory pipe.
type SerialPorter interface {
	io.ReadWriteCloser
}

// SerialLink talks to a USB BLE dongle that forwards notifications as hex
// lines and accepts commands the same way.
type SerialLink struct {
	port SerialPorter
	name string

	writeMu sync.Mutex

	mu         sync.Mutex
	subscribed bool
	closed     bool
	done       chan struct{}
	wg         sync.WaitGroup
}

// OpenSerial opens the dongle at path. A zero baud uses DefaultBaudRate.
func OpenSerial(path string, baud int) (*SerialLink, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	logging.Info("Opened serial port", zap.String("port", path), zap.Int("baud", baud))
	return NewSerialLink(port, path), nil
}

// NewSerialLink wraps an already open port.
func NewSerialLink(port SerialPorter, name string) *SerialLink {
	return &SerialLink{port: port, name: name, done: make(chan struct{})}
}

// Notifications implements Link. Lines that fail to decode are logged and
// skipped.
func (s *SerialLink) Notifications(ctx context.Context) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.subscribed {
		return nil, ErrAlreadySubscribed
	}
	s.subscribed = true

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	out := newFanout(s.name)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer out.close()
		scan := bufio.NewScanner(s.port)
		for scan.Scan() {
			entry, ok, err := ParseLine(scan.Text())
			if err != nil {
				logging.Debug("Skipping undecodable serial line",
					zap.String("port", s.name),
					zap.String("line", scan.Text()),
					zap.Error(err),
				)
				continue
			}
			if !ok {
				continue
			}
			logging.LogNotification(s.name, entry.Data)
			out.send(entry.Data)
		}
		if err := scan.Err(); err != nil && !s.isClosed() {
			logging.Warn("Serial read failed", zap.String("port", s.name), zap.Error(err))
		}
	}()
	return out.ch, nil
}

// Write implements Link. The frame is sent as one hex line.
func (s *SerialLink) Write(ctx context.Context, frame []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := io.WriteString(s.port, hex.EncodeToString(frame)+"\n"); err != nil {
		return fmt.Errorf("failed to write to %s: %w", s.name, err)
	}
	logging.LogWrite(s.name, frame)
	return nil
}

func (s *SerialLink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes the port, which also ends the notification channel, and
// waits for the reader to exit.
func (s *SerialLink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	err := s.port.Close()
	s.wg.Wait()
	return err
}
