// Package services provides infrastructure services.
package services

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orris-inc/triage/internal/shared/logger"
)

// Listener receives serialized ticket events. Deliver must not block.
type Listener interface {
	Deliver(frame []byte) error
}

// ListenerHub tracks the live listeners of every ticket.
// Listeners are only referenced by the hub; it never closes them.
type ListenerHub struct {
	// map[TicketID]set of listeners
	listeners map[string]map[Listener]struct{}
	mu        sync.RWMutex

	logger logger.Interface
}

// NewListenerHub creates a new ListenerHub instance.
func NewListenerHub(log logger.Interface) *ListenerHub {
	return &ListenerHub{
		listeners: make(map[string]map[Listener]struct{}),
		logger:    log,
	}
}

// Subscribe adds l to the listener set of ticketID.
func (h *ListenerHub) Subscribe(ticketID string, l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribeLocked(ticketID, l)
}

func (h *ListenerHub) subscribeLocked(ticketID string, l Listener) {
	set, ok := h.listeners[ticketID]
	if !ok {
		set = make(map[Listener]struct{})
		h.listeners[ticketID] = set
	}
	set[l] = struct{}{}
}

// Attach runs prime and subscribes l only if prime succeeds. Both happen
// under the hub lock, so no event published after prime observed the
// ticket can be missed by l.
func (h *ListenerHub) Attach(ticketID string, l Listener, prime func() error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prime != nil {
		if err := prime(); err != nil {
			return err
		}
	}
	h.subscribeLocked(ticketID, l)

	h.logger.Debugw("listener attached",
		"ticket_id", ticketID,
		"listeners", len(h.listeners[ticketID]),
	)
	return nil
}

// Unsubscribe removes l from ticketID. Removing a non-member is a no-op.
func (h *ListenerHub) Unsubscribe(ticketID string, l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.listeners[ticketID]
	if !ok {
		return
	}
	if _, member := set[l]; !member {
		return
	}
	delete(set, l)
	if len(set) == 0 {
		delete(h.listeners, ticketID)
	}

	h.logger.Debugw("listener detached",
		"ticket_id", ticketID,
		"listeners", len(set),
	)
}

// Listeners returns a point-in-time copy of the listener set of ticketID.
func (h *ListenerHub) Listeners(ticketID string) []Listener {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.listeners[ticketID]
	result := make([]Listener, 0, len(set))
	for l := range set {
		result = append(result, l)
	}
	return result
}

// Count returns the total number of attached listeners.
func (h *ListenerHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.listeners {
		n += len(set)
	}
	return n
}

// ListenerConn is a websocket listener. Frames are queued on Send and
// written by the connection's write pump.
type ListenerConn struct {
	TicketID    string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
}

// NewListenerConn creates a listener with a send buffer of the given size.
func NewListenerConn(ticketID string, conn *websocket.Conn, buffer int) *ListenerConn {
	if buffer <= 0 {
		buffer = 1
	}
	return &ListenerConn{
		TicketID:    ticketID,
		Conn:        conn,
		Send:        make(chan []byte, buffer),
		ConnectedAt: time.Now(),
	}
}

// Deliver queues frame without blocking. A full buffer counts as a failed
// delivery so a slow client cannot stall the publisher.
func (c *ListenerConn) Deliver(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrListenerClosed
	}

	select {
	case c.Send <- frame:
		return nil
	default:
		return ErrSendChannelFull
	}
}

// Close closes the send channel. Safe to call more than once.
func (c *ListenerConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// HubErrors defines listener hub related errors.
var (
	ErrListenerClosed  = &HubError{Code: "LISTENER_CLOSED", Message: "listener closed"}
	ErrSendChannelFull = &HubError{Code: "SEND_CHANNEL_FULL", Message: "send channel full"}
)

// HubError represents a listener hub error.
type HubError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *HubError) Error() string {
	return e.Message
}
