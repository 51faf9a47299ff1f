package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"avalon/internal/domain"
)

// ErrSessionClosed is returned for work submitted after Close
var ErrSessionClosed = errors.New("session closed")

// inboxSize bounds work queued for the loop before Post blocks
const inboxSize = 256

// Session owns one controller and the goroutine it runs on. Transport
// events, timer callbacks, request responses and user commands all reach the
// controller through the session's inbox, one at a time.
type Session struct {
	ID         string
	controller *Controller
	logger     *slog.Logger

	inbox     chan func()
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewSession creates a session and starts its loop
func NewSession(deps Deps, cfg ControllerConfig, logger *slog.Logger) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		ID:     id,
		logger: logger.With("session", id),
		inbox:  make(chan func(), inboxSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.controller = NewController(ctx, deps, s, cfg, s.logger)

	go s.loop()

	return s
}

// Post queues fn to run on the loop. Work posted after Close is dropped.
func (s *Session) Post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

// After runs fn on the loop once d has elapsed, unless cancelled first
func (s *Session) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { s.Post(fn) })
	return func() { t.Stop() }
}

// Deliver hands an inbound event to the controller
func (s *Session) Deliver(e domain.Event) {
	s.Post(func() { s.controller.HandleEvent(e) })
}

// Do runs fn against the controller on the loop and waits for its result
func (s *Session) Do(fn func(c *Controller) error) error {
	reply := make(chan error, 1)
	select {
	case s.inbox <- func() { reply <- fn(s.controller) }:
	case <-s.done:
		return ErrSessionClosed
	}

	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

// View returns the controller's current view
func (s *Session) View() (View, error) {
	var v View
	err := s.Do(func(c *Controller) error {
		v = c.View()
		return nil
	})
	return v, err
}

// Refresh fetches a snapshot, used after the event stream (re)connects
func (s *Session) Refresh() {
	s.Post(func() { s.controller.RefreshSnapshot() })
}

func (s *Session) loop() {
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.inbox:
			fn()
		}
	}
}

// Close stops the loop and cancels in-flight requests
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		s.logger.Info("session closed")
	})
}
