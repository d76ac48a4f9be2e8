package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/triage/internal/shared/biztime"
	proto "github.com/orris-inc/triage/internal/shared/hubprotocol/ticket"
	"github.com/orris-inc/triage/internal/shared/logger"
	"github.com/orris-inc/triage/internal/shared/utils/logutil"
)

// DefaultTicketEventChannel is the Redis channel ticket events are mirrored to.
const DefaultTicketEventChannel = "triage:ticket:events"

// RedisEventMirror mirrors ticket events to a Redis Pub/Sub channel so other
// processes can follow generation without a websocket.
type RedisEventMirror struct {
	client     *redis.Client
	channel    string
	logger     logger.Interface
	instanceID string // Unique ID for this instance, stamped on every envelope
}

// NewRedisEventMirror creates a new Redis-based event mirror.
func NewRedisEventMirror(client *redis.Client, channel string, logger logger.Interface) *RedisEventMirror {
	if channel == "" {
		channel = DefaultTicketEventChannel
	}
	return &RedisEventMirror{
		client:     client,
		channel:    channel,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
}

// InstanceID returns the ID stamped on envelopes published by this mirror.
func (m *RedisEventMirror) InstanceID() string {
	return m.instanceID
}

// Mirror publishes an already serialized event.
func (m *RedisEventMirror) Mirror(ctx context.Context, ticketID string, frame []byte) error {
	envelope := proto.MirrorEnvelope{
		InstanceID: m.instanceID,
		TicketID:   ticketID,
		Timestamp:  biztime.NowUTC().Unix(),
		Event:      json.RawMessage(frame),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal mirror envelope: %w", err)
	}

	if err := m.client.Publish(ctx, m.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish ticket event: %w", err)
	}
	return nil
}

// Subscribe consumes mirrored events until ctx is done, reconnecting with
// exponential backoff. handler runs on the subscriber goroutine, so events
// arrive in publish order.
func (m *RedisEventMirror) Subscribe(ctx context.Context, handler func(env proto.MirrorEnvelope)) error {
	return m.subscribeWithReconnect(ctx, func(payload string) {
		var env proto.MirrorEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			m.logger.Warnw("failed to unmarshal mirror envelope",
				"payload", logutil.TruncateForLog(payload, 256),
				"error", err,
			)
			return
		}
		handler(env)
	})
}

// subscribeWithReconnect wraps subscribe with automatic reconnection and exponential backoff.
func (m *RedisEventMirror) subscribeWithReconnect(ctx context.Context, handler func(payload string)) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := m.subscribe(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.logger.Warnw("ticket event subscription disconnected, reconnecting",
			"channel", m.channel,
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

func (m *RedisEventMirror) subscribe(ctx context.Context, handler func(payload string)) error {
	sub := m.client.Subscribe(ctx, m.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", m.channel, err)
	}

	m.logger.Infow("subscribed to ticket event channel",
		"channel", m.channel,
	)

	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			m.logger.Infow("ticket event subscriber stopped",
				"channel", m.channel,
				"reason", ctx.Err(),
			)
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				m.logger.Warnw("ticket event channel closed",
					"channel", m.channel,
				)
				return nil
			}
			handler(msg.Payload)
		}
	}
}
