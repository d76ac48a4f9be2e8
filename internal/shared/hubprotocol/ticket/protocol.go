// Package ticket defines the websocket event protocol for ticket listeners.
// These types are shared between infrastructure (broadcaster, Redis mirror)
// and application layers.
package ticket

import (
	"encoding/json"
	"fmt"
)

// Event type constants. Every event is Server -> Listener.
const (
	MsgTypeSnapshot = "snapshot"
	MsgTypeStatus   = "status"
	MsgTypeToken    = "token"
	MsgTypeComplete = "complete"
)

// SnapshotEvent carries the full ticket record. It is the first event every
// listener receives.
type SnapshotEvent struct {
	Type     string `json:"type"`
	TicketID string `json:"ticketId"`
	Ticket   any    `json:"ticket"`
}

// StatusEvent reports a lifecycle transition. Error is always serialized,
// as null when absent.
type StatusEvent struct {
	Type     string  `json:"type"`
	TicketID string  `json:"ticketId"`
	Status   string  `json:"status"`
	Error    *string `json:"error"`
}

// TokenEvent carries one generated text fragment.
type TokenEvent struct {
	Type     string `json:"type"`
	TicketID string `json:"ticketId"`
	Token    string `json:"token"`
}

// CompleteEvent carries the parsed generation result.
type CompleteEvent struct {
	Type           string `json:"type"`
	TicketID       string `json:"ticketId"`
	Summary        string `json:"summary"`
	SuggestedReply string `json:"suggested_reply"`
}

func NewSnapshotEvent(ticketID string, ticket any) SnapshotEvent {
	return SnapshotEvent{Type: MsgTypeSnapshot, TicketID: ticketID, Ticket: ticket}
}

func NewStatusEvent(ticketID, status string, errMsg *string) StatusEvent {
	return StatusEvent{Type: MsgTypeStatus, TicketID: ticketID, Status: status, Error: errMsg}
}

func NewTokenEvent(ticketID, token string) TokenEvent {
	return TokenEvent{Type: MsgTypeToken, TicketID: ticketID, Token: token}
}

func NewCompleteEvent(ticketID, summary, suggestedReply string) CompleteEvent {
	return CompleteEvent{Type: MsgTypeComplete, TicketID: ticketID, Summary: summary, SuggestedReply: suggestedReply}
}

// Header holds the fields common to every event.
type Header struct {
	Type     string `json:"type"`
	TicketID string `json:"ticketId"`
}

// DecodeHeader reads the type and ticket ID of a serialized event.
func DecodeHeader(frame []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(frame, &h); err != nil {
		return Header{}, fmt.Errorf("failed to decode event header: %w", err)
	}
	if h.Type == "" {
		return Header{}, fmt.Errorf("event has no type")
	}
	return h, nil
}

// MirrorEnvelope wraps a serialized event for relay over Redis Pub/Sub.
type MirrorEnvelope struct {
	InstanceID string          `json:"instance_id"`
	TicketID   string          `json:"ticket_id"`
	Timestamp  int64           `json:"timestamp"`
	Event      json.RawMessage `json:"event"`
}
