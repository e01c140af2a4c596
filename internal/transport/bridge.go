package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/logging"
)

const (
	// Time allowed to write a message to the bridge
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the bridge
	pongWait = 60 * time.Second

	// Send pings to the bridge with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size accepted from the bridge
	maxMessageSize = 8192
)

// BridgeLink talks to a station through a BLE-to-WebSocket bridge.
type BridgeLink struct {
	conn *websocket.Conn
	url  string

	writeMu sync.Mutex

	mu         sync.Mutex
	subscribed bool
	closed     bool
	done       chan struct{}
	wg         sync.WaitGroup // reader and pinger
}

// DialBridge connects to the bridge at url (ws:// or wss://).
func DialBridge(ctx context.Context, url string) (*BridgeLink, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial bridge %s: %w", url, err)
	}
	logging.Info("Connected to bridge", zap.String("url", url))
	return newBridgeLink(conn, url), nil
}

func newBridgeLink(conn *websocket.Conn, url string) *BridgeLink {
	conn.SetReadLimit(maxMessageSize)
	return &BridgeLink{conn: conn, url: url, done: make(chan struct{})}
}

// Notifications implements Link. Each binary message is one notification;
// text messages are logged and skipped.
func (b *BridgeLink) Notifications(ctx context.Context) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.subscribed {
		return nil, ErrAlreadySubscribed
	}
	b.subscribed = true

	_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPongHandler(func(string) error {
		return b.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	out := newFanout(b.url)
	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		b.pingLoop(ctx)
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = b.Close()
		case <-b.done:
		}
	}()
	go func() {
		defer b.wg.Done()
		defer out.close()
		for {
			msgType, data, err := b.conn.ReadMessage()
			if err != nil {
				if !b.isClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					logging.Warn("Bridge read failed", zap.String("url", b.url), zap.Error(err))
				}
				return
			}
			_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))

			switch msgType {
			case websocket.BinaryMessage:
				logging.LogNotification(b.url, data)
				out.send(data)
			case websocket.TextMessage:
				logging.Debug("Ignoring text message from bridge",
					zap.String("url", b.url),
					zap.String("content", string(data)),
				)
			}
		}
	}()
	return out.ch, nil
}

func (b *BridgeLink) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.writeMu.Lock()
			err := b.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			b.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-b.done:
			return
		}
	}
}

// Write implements Link.
func (b *BridgeLink) Write(ctx context.Context, frame []byte) error {
	if b.isClosed() {
		return ErrClosed
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := b.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write to bridge: %w", err)
	}
	logging.LogWrite(b.url, frame)
	return nil
}

func (b *BridgeLink) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close sends a close frame, tears down the connection and waits for the
// reader and pinger to exit.
func (b *BridgeLink) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.writeMu.Lock()
	_ = b.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	b.writeMu.Unlock()

	err := b.conn.Close()
	b.wg.Wait()
	return err
}
