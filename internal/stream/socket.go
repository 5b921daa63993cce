// Package stream turns a raw bidirectional socket into a restartable,
// backpressure-safe, multi-consumer message stream. It is venue-agnostic:
// protocol framing (auth, heartbeats, channel naming) lives in the venue
// adapters built on top of it.
package stream

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// Handlers carries the callbacks a Socket implementation invokes over
// its lifetime. OnOpen fires with the ready socket once the transport
// accepts writes; OnClose fires with the transport close code
// (1000 = normal closure).
type Handlers struct {
	OnOpen    func(s Socket)
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func(code int, reason string)
}

// Socket is a minimal bidirectional message transport.
type Socket interface {
	Send(payload []byte) error
	Close() error
}

// Factory dials a Socket and registers its callbacks. Injectable so
// tests can substitute an in-memory socket.
type Factory func(url string, h Handlers) (Socket, error)

// wsSocket adapts a gorilla websocket connection to the Socket interface.
type wsSocket struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial is the default websocket-backed Factory.
func Dial(url string, h Handlers) (Socket, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}

	s := &wsSocket{conn: conn}
	if h.OnOpen != nil {
		h.OnOpen(s)
	}
	go s.readLoop(h)
	return s, nil
}

func (s *wsSocket) readLoop(h Handlers) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				if h.OnClose != nil {
					h.OnClose(ce.Code, ce.Text)
				}
			} else if h.OnError != nil {
				h.OnError(err)
			}
			return
		}
		if h.OnMessage != nil {
			h.OnMessage(data)
		}
	}
}

func (s *wsSocket) Send(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
