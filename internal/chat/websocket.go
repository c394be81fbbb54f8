package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// WebSocket receives chat from a relay that pushes one JSON object per
// frame: {"author": "...", "text": "..."}. "message" is accepted in place of
// "text".
type WebSocket struct {
	wait   time.Duration
	dialer websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	box  *mailbox
}

type relayFrame struct {
	Author  string `json:"author"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

// NewWebSocket creates a relay source.
func NewWebSocket(wait time.Duration) *WebSocket {
	return &WebSocket{
		wait:   wait,
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Connect dials the relay at identifier, a ws:// or wss:// URL.
func (w *WebSocket) Connect(ctx context.Context, identifier string) error {
	u, err := url.Parse(strings.TrimSpace(identifier))
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return &ConnectionError{Source: "websocket", Identifier: identifier, Err: errors.New("expected a ws:// or wss:// URL")}
	}

	conn, resp, err := w.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return &ConnectionError{Source: "websocket", Identifier: identifier, Err: err}
	}

	box := newMailbox()
	w.mu.Lock()
	w.conn, w.box = conn, box
	w.mu.Unlock()

	go w.readLoop(conn, box)
	log.Debug("Connected to chat relay", "url", u.Redacted())
	return nil
}

func (w *WebSocket) IsAlive() bool {
	w.mu.Lock()
	box := w.box
	w.mu.Unlock()
	return box != nil && box.isAlive()
}

func (w *WebSocket) Poll(ctx context.Context) ([]Message, error) {
	w.mu.Lock()
	box := w.box
	w.mu.Unlock()
	if box == nil {
		return nil, errors.New("websocket: not connected")
	}
	return box.take(ctx, w.wait), nil
}

// Disconnect sends a close frame and drops the connection.
func (w *WebSocket) Disconnect() error {
	w.mu.Lock()
	conn := w.conn
	w.conn, w.box = nil, nil
	w.mu.Unlock()
	if conn == nil {
		return nil
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

func (w *WebSocket) readLoop(conn *websocket.Conn, box *mailbox) {
	defer box.hangUp()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				log.Warn("Chat relay read failed", "err", err)
			}
			return
		}

		var f relayFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Debug("Skipping malformed relay frame", "err", err)
			continue
		}
		text := f.Text
		if text == "" {
			text = f.Message
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		box.push(Message{Author: f.Author, Text: text})
	}
}
