package pubsub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	vo "github.com/orris-inc/triage/internal/domain/ticket/valueobjects"
	"github.com/orris-inc/triage/internal/infrastructure/services"
	"github.com/orris-inc/triage/internal/shared/goroutine"
	proto "github.com/orris-inc/triage/internal/shared/hubprotocol/ticket"
	"github.com/orris-inc/triage/internal/shared/logger"
)

// ListenerRegistry is the part of the listener hub the broadcaster needs.
type ListenerRegistry interface {
	Listeners(ticketID string) []services.Listener
	Unsubscribe(ticketID string, l services.Listener)
}

// EventMirror relays serialized events outside the process.
type EventMirror interface {
	Mirror(ctx context.Context, ticketID string, frame []byte) error
}

// closer is implemented by listeners that own a connection.
type closer interface {
	Close()
}

const (
	defaultMirrorQueueSize = 1024
	defaultMirrorTimeout   = 2 * time.Second
)

type mirrorItem struct {
	ticketID string
	frame    []byte
}

// Broadcaster delivers ticket events to every listener of a ticket.
//
// Mirroring runs on a single background drainer fed by a bounded queue, so a
// slow or unreachable mirror never delays local delivery. Frames that do not
// fit in the queue are dropped.
type Broadcaster struct {
	registry ListenerRegistry
	mirror   EventMirror
	logger   logger.Interface

	mirrorQueueSize int
	mirrorTimeout   time.Duration
	mirrorQueue     chan mirrorItem
	stop            chan struct{}
	done            chan struct{}
	closeOnce       sync.Once
	closed          atomic.Bool
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithMirror relays every published event through m.
func WithMirror(m EventMirror) BroadcasterOption {
	return func(b *Broadcaster) {
		b.mirror = m
	}
}

// WithMirrorQueueSize bounds the number of frames waiting to be mirrored.
func WithMirrorQueueSize(n int) BroadcasterOption {
	return func(b *Broadcaster) {
		if n > 0 {
			b.mirrorQueueSize = n
		}
	}
}

// WithMirrorTimeout bounds a single mirror call.
func WithMirrorTimeout(d time.Duration) BroadcasterOption {
	return func(b *Broadcaster) {
		if d > 0 {
			b.mirrorTimeout = d
		}
	}
}

// NewBroadcaster creates a new Broadcaster. When a mirror is configured the
// caller must Close the broadcaster to stop its drainer.
func NewBroadcaster(registry ListenerRegistry, log logger.Interface, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		registry:        registry,
		logger:          log,
		mirrorQueueSize: defaultMirrorQueueSize,
		mirrorTimeout:   defaultMirrorTimeout,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.mirror == nil {
		close(b.done)
		return b
	}

	b.mirrorQueue = make(chan mirrorItem, b.mirrorQueueSize)
	goroutine.SafeGo(log, "ticket-event-mirror", func() {
		defer close(b.done)
		b.drainMirror()
	})
	return b
}

// Publish serializes event once and delivers it to a point-in-time copy of
// the ticket's listeners. Listeners that fail delivery are removed after the
// pass. Delivery failures are logged, never returned. The frame is then
// queued for the mirror, if any, without waiting on it.
func (b *Broadcaster) Publish(ctx context.Context, ticketID string, event any) {
	frame, err := json.Marshal(event)
	if err != nil {
		b.logger.Errorw("failed to marshal ticket event",
			"ticket_id", ticketID,
			"error", err,
		)
		return
	}

	var failed []services.Listener
	for _, l := range b.registry.Listeners(ticketID) {
		if err := l.Deliver(frame); err != nil {
			b.logger.Debugw("listener delivery failed",
				"ticket_id", ticketID,
				"error", err,
			)
			failed = append(failed, l)
		}
	}

	for _, l := range failed {
		b.registry.Unsubscribe(ticketID, l)
		if c, ok := l.(closer); ok {
			c.Close()
		}
	}

	if len(failed) > 0 {
		b.logger.Infow("removed failed listeners",
			"ticket_id", ticketID,
			"count", len(failed),
		)
	}

	b.enqueueMirror(ticketID, frame)
}

func (b *Broadcaster) enqueueMirror(ticketID string, frame []byte) {
	if b.mirror == nil || b.closed.Load() {
		return
	}

	select {
	case b.mirrorQueue <- mirrorItem{ticketID: ticketID, frame: frame}:
	default:
		b.logger.Warnw("mirror queue full, dropping ticket event",
			"ticket_id", ticketID,
			"queue_size", b.mirrorQueueSize,
		)
	}
}

func (b *Broadcaster) drainMirror() {
	for {
		select {
		case <-b.stop:
			b.flushMirror()
			return
		case item := <-b.mirrorQueue:
			b.mirrorOne(item)
		}
	}
}

// flushMirror sends what is already queued and gives up at the first failure.
func (b *Broadcaster) flushMirror() {
	for {
		select {
		case item := <-b.mirrorQueue:
			if err := b.mirrorOne(item); err != nil {
				b.logger.Warnw("dropping queued ticket events on shutdown",
					"count", len(b.mirrorQueue),
				)
				return
			}
		default:
			return
		}
	}
}

func (b *Broadcaster) mirrorOne(item mirrorItem) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.mirrorTimeout)
	defer cancel()

	err := b.mirror.Mirror(ctx, item.ticketID, item.frame)
	if err != nil {
		b.logger.Warnw("failed to mirror ticket event",
			"ticket_id", item.ticketID,
			"error", err,
		)
	}
	return err
}

// Close stops mirroring after flushing queued frames and waits for the
// drainer to exit. It is safe to call more than once.
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.stop)
	})
	<-b.done
}

// PublishStatus publishes a status event. errMsg may be nil.
func (b *Broadcaster) PublishStatus(ctx context.Context, ticketID string, status vo.TicketStatus, errMsg *string) {
	b.Publish(ctx, ticketID, proto.NewStatusEvent(ticketID, status.String(), errMsg))
}
