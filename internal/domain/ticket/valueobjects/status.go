package valueobjects

import "fmt"

// TicketStatus is the generation lifecycle state of a ticket.
type TicketStatus string

const (
	StatusPending    TicketStatus = "pending"
	StatusProcessing TicketStatus = "processing"
	StatusDone       TicketStatus = "done"
	StatusError      TicketStatus = "error"
)

var validTicketStatuses = map[TicketStatus]bool{
	StatusPending:    true,
	StatusProcessing: true,
	StatusDone:       true,
	StatusError:      true,
}

// Terminal states have no outgoing transitions.
var ticketStatusTransitions = map[TicketStatus][]TicketStatus{
	StatusPending: {
		StatusProcessing,
		StatusError,
	},
	StatusProcessing: {
		StatusDone,
		StatusError,
	},
}

func (ts TicketStatus) String() string {
	return string(ts)
}

func (ts TicketStatus) IsValid() bool {
	return validTicketStatuses[ts]
}

func (ts TicketStatus) CanTransitionTo(newStatus TicketStatus) bool {
	for _, allowed := range ticketStatusTransitions[ts] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is done or error.
func (ts TicketStatus) IsTerminal() bool {
	return ts == StatusDone || ts == StatusError
}

func (ts TicketStatus) IsProcessing() bool {
	return ts == StatusProcessing
}

func (ts TicketStatus) IsDone() bool {
	return ts == StatusDone
}

func (ts TicketStatus) IsError() bool {
	return ts == StatusError
}

func NewTicketStatus(s string) (TicketStatus, error) {
	ts := TicketStatus(s)
	if !ts.IsValid() {
		return "", fmt.Errorf("invalid ticket status: %s", s)
	}
	return ts, nil
}
