package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"wagate/pkg/whatsapp/types"

	"github.com/coder/websocket"
)

// maxQRAttempts mirrors the upstream single-QR-retry policy: a second
// unanswered pairing code is delivered, a third becomes an auth failure.
const maxQRAttempts = 2

// wireEvent is the websocket frame format of the gateway's event feed.
type wireEvent struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

type qrPayload struct {
	QR string `json:"qr"`
}

type readyPayload struct {
	PhoneNumber string `json:"phoneNumber"`
}

type failurePayload struct {
	Reason string `json:"reason"`
}

// eventStream reads the websocket event feed for one tenant and converts
// frames into typed events on a single channel. One reader goroutine owns
// the connection; the channel closes after a terminal event or shutdown.
type eventStream struct {
	conn   *websocket.Conn
	events chan types.Event
	cancel context.CancelFunc

	mu   sync.Mutex
	done bool
}

func newEventStream(ctx context.Context, baseURL, apiKey, tenantID string) (*eventStream, error) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/api/sessions/" + tenantID + "/events"

	header := http.Header{}
	if apiKey != "" {
		header.Set("X-Api-Key", apiKey)
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, 30*time.Second)
	defer cancelDial()

	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, err
	}
	// Inbound message bodies can be large
	conn.SetReadLimit(1 << 20)

	readCtx, cancel := context.WithCancel(context.Background())
	s := &eventStream{
		conn:   conn,
		events: make(chan types.Event, 16),
		cancel: cancel,
	}

	go s.readLoop(readCtx)
	return s, nil
}

// Events returns the typed event channel.
func (s *eventStream) Events() <-chan types.Event {
	return s.events
}

// Shutdown stops the reader without emitting a terminal event; used on
// explicit logout, after which no further events may be delivered.
func (s *eventStream) Shutdown() {
	s.finish()
	s.cancel()
}

func (s *eventStream) readLoop(ctx context.Context) {
	defer func() {
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
	}()

	qrCount := 0

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			// A broken feed is indistinguishable from a remote
			// disconnect; surface it as one.
			s.emitTerminal(types.Event{Kind: types.EventDisconnected, Reason: "event stream closed"})
			return
		}

		var frame wireEvent
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch types.EventKind(frame.Event) {
		case types.EventQR:
			var p qrPayload
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				continue
			}
			qrCount++
			if qrCount > maxQRAttempts {
				s.emitTerminal(types.Event{Kind: types.EventAuthFailure, Reason: "pairing not completed"})
				return
			}
			if !s.emit(types.Event{Kind: types.EventQR, QR: p.QR}) {
				return
			}

		case types.EventAuthenticated:
			if !s.emit(types.Event{Kind: types.EventAuthenticated}) {
				return
			}

		case types.EventReady:
			var p readyPayload
			_ = json.Unmarshal(frame.Payload, &p)
			if !s.emit(types.Event{Kind: types.EventReady, PhoneNumber: p.PhoneNumber}) {
				return
			}

		case types.EventMessage:
			var msg types.InboundMessage
			if err := json.Unmarshal(frame.Payload, &msg); err != nil {
				continue
			}
			if !s.emit(types.Event{Kind: types.EventMessage, Message: &msg}) {
				return
			}

		case types.EventAuthFailure:
			var p failurePayload
			_ = json.Unmarshal(frame.Payload, &p)
			s.emitTerminal(types.Event{Kind: types.EventAuthFailure, Reason: p.Reason})
			return

		case types.EventDisconnected:
			var p failurePayload
			_ = json.Unmarshal(frame.Payload, &p)
			s.emitTerminal(types.Event{Kind: types.EventDisconnected, Reason: p.Reason})
			return
		}
	}
}

// emit delivers an event unless the stream was shut down. Returns false
// when delivery is no longer possible.
func (s *eventStream) emit(ev types.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	s.events <- ev
	return true
}

func (s *eventStream) emitTerminal(ev types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.events <- ev
	close(s.events)
}

func (s *eventStream) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.events)
}
