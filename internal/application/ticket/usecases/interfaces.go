package usecases

import (
	"context"

	"github.com/orris-inc/triage/internal/application/ticket/dto"
	"github.com/orris-inc/triage/internal/domain/ticket"
	vo "github.com/orris-inc/triage/internal/domain/ticket/valueobjects"
	"github.com/orris-inc/triage/internal/infrastructure/services"
)

type SubmitTicketExecutor interface {
	Execute(ctx context.Context, cmd SubmitTicketCommand) (*dto.TicketDTO, error)
}

type GetTicketExecutor interface {
	Execute(ctx context.Context, query GetTicketQuery) (*dto.TicketDTO, error)
}

type ListTicketsExecutor interface {
	Execute(ctx context.Context) ([]*dto.TicketDTO, error)
}

type WatchTicketExecutor interface {
	Attach(ctx context.Context, cmd WatchTicketCommand) error
	Detach(ticketID string, l services.Listener)
}

// TextGenerator is a ticket.Generator that can report whether it has
// credentials before any request is made.
type TextGenerator interface {
	ticket.Generator
	Configured() bool
}

// EventPublisher fans ticket events out to listeners.
type EventPublisher interface {
	Publish(ctx context.Context, ticketID string, event any)
	PublishStatus(ctx context.Context, ticketID string, status vo.TicketStatus, errMsg *string)
}

// ListenerRegistry attaches and detaches ticket listeners.
type ListenerRegistry interface {
	Attach(ticketID string, l services.Listener, prime func() error) error
	Unsubscribe(ticketID string, l services.Listener)
}
