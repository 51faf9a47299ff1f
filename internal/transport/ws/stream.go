package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"avalon/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum event size accepted from the game server. Snapshots carry the
	// whole table, so this is far above what local subscribers may send.
	maxEventSize = 1 << 20
)

// Sink receives the game server's events in arrival order
type Sink interface {
	Deliver(e domain.Event)

	// Refresh asks for a full snapshot, since events missed while
	// disconnected are gone for good
	Refresh()
}

// Stream keeps a connection to the game server's event socket open,
// reconnecting with exponential backoff until its context ends
type Stream struct {
	url        string
	header     http.Header
	sink       Sink
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger
}

// NewStream creates a stream for the event socket at url
func NewStream(url, clientID string, sink Sink, minBackoff, maxBackoff time.Duration, logger *slog.Logger) *Stream {
	header := http.Header{}
	if clientID != "" {
		header.Set("X-Client-ID", clientID)
	}
	return &Stream{
		url:    url,
		header: header,
		sink:   sink,
		dialer: &websocket.Dialer{
			HandshakeTimeout: writeWait,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		logger:     logger.With("component", "events"),
	}
}

// Run connects and delivers events until ctx is cancelled
func (s *Stream) Run(ctx context.Context) {
	backoff := s.minBackoff
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
		if err == nil {
			s.logger.Info("event stream connected", "url", s.url)
			backoff = s.minBackoff
			s.sink.Refresh()
			err = s.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("event stream disconnected", "error", err, "retry", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.maxBackoff)
	}
}

// serve runs the pumps for one connection and returns why it ended
func (s *Stream) serve(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go s.writePump(ctx, conn, done)
	return s.readPump(conn)
}

// readPump pumps events from the game server to the sink
func (s *Stream) readPump(conn *websocket.Conn) error {
	defer conn.Close()

	conn.SetReadLimit(maxEventSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("closed by server")
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		event, err := domain.DecodeEvent(message)
		if err != nil {
			s.logger.Warn("dropping malformed event", "error", err)
			continue
		}
		s.sink.Deliver(event)
	}
}

// writePump keeps the connection alive with pings and closes it when ctx
// ends. The stream never writes anything else.
func (s *Stream) writePump(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				return
			}
		}
	}
}
