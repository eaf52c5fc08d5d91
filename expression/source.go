package expression

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// FaceMessage is one detected face in a landmark feed message.
type FaceMessage struct {
	Categories   []Score    `json:"categories"`
	HeadRotation [3]float64 `json:"headRotation"`
}

// FeedMessage is the JSON frame sent by a face-tracking service.
// Only the first face is used.
type FeedMessage struct {
	Faces     []FaceMessage `json:"faces"`
	Timestamp int64         `json:"timestamp,omitempty"`
}

// WebSocketSource reads blendshape frames from a websocket feed and
// publishes them into a Tracker. It reconnects with exponential backoff
// until its context is cancelled.
type WebSocketSource struct {
	url     string
	tracker *Tracker
	dialer  *websocket.Dialer

	minBackoff time.Duration
	maxBackoff time.Duration

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	received  uint64
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewWebSocketSource creates a source for the given feed URL.
func NewWebSocketSource(url string, tracker *Tracker) *WebSocketSource {
	return &WebSocketSource{
		url:        url,
		tracker:    tracker,
		dialer:     websocket.DefaultDialer,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Start begins reading in the background.
func (s *WebSocketSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("websocket source already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	logrus.WithFields(logrus.Fields{
		"function": "WebSocketSource.Start",
		"url":      s.url,
	}).Info("Starting landmark feed")

	go s.connectLoop(ctx)
	return nil
}

// Stop cancels the read loop and waits for it to exit.
func (s *WebSocketSource) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	logrus.WithFields(logrus.Fields{
		"function": "WebSocketSource.Stop",
		"url":      s.url,
		"received": s.Received(),
	}).Info("Landmark feed stopped")
}

// IsConnected reports whether a connection is currently open.
func (s *WebSocketSource) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Received returns the number of frames published to the tracker.
func (s *WebSocketSource) Received() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.received
}

func (s *WebSocketSource) connectLoop(ctx context.Context) {
	defer close(s.done)

	backoff := s.minBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		connected, err := s.readConn(ctx)
		s.setConn(nil)
		if ctx.Err() != nil {
			return
		}

		var wait time.Duration
		wait, backoff = s.nextBackoff(backoff, connected)

		logrus.WithFields(logrus.Fields{
			"function": "WebSocketSource.connectLoop",
			"url":      s.url,
			"backoff":  wait,
			"error":    err,
		}).Warn("Landmark feed disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// nextBackoff returns how long to wait before the next dial and the
// backoff to carry forward. A connection that was established restarts
// the sequence at minBackoff.
func (s *WebSocketSource) nextBackoff(current time.Duration, connected bool) (wait, next time.Duration) {
	if connected {
		current = s.minBackoff
	}
	return current, min(current*2, s.maxBackoff)
}

// readConn dials the feed and reads until the connection fails. It
// reports whether the dial succeeded.
func (s *WebSocketSource) readConn(ctx context.Context) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.setConn(conn)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logrus.WithFields(logrus.Fields{
		"function": "WebSocketSource.readConn",
		"url":      s.url,
	}).Info("Landmark feed connected")

	for {
		var msg FeedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return true, fmt.Errorf("read frame: %w", err)
		}
		s.handle(msg)
	}
}

func (s *WebSocketSource) handle(msg FeedMessage) {
	if len(msg.Faces) == 0 {
		// no face in view; the last known observation stays in place
		return
	}
	face := msg.Faces[0]
	s.tracker.Observe(face.Categories, face.HeadRotation)

	s.mu.Lock()
	s.received++
	s.mu.Unlock()
}

func (s *WebSocketSource) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && s.conn != conn {
		s.conn.Close()
	}
	s.conn = conn
	s.connected = conn != nil
}
