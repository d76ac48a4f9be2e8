package usecases

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/orris-inc/triage/internal/application/ticket/dto"
	"github.com/orris-inc/triage/internal/domain/ticket"
	"github.com/orris-inc/triage/internal/infrastructure/services"
	"github.com/orris-inc/triage/internal/shared/errors"
	proto "github.com/orris-inc/triage/internal/shared/hubprotocol/ticket"
	"github.com/orris-inc/triage/internal/shared/id"
	"github.com/orris-inc/triage/internal/shared/logger"
)

type WatchTicketCommand struct {
	TicketID string
	Listener services.Listener
}

// WatchTicketUseCase attaches listeners to a ticket. The snapshot is queued
// on the listener before it joins the registry, so it always arrives first.
type WatchTicketUseCase struct {
	ticketRepo ticket.Repository
	registry   ListenerRegistry
	logger     logger.Interface
}

func NewWatchTicketUseCase(ticketRepo ticket.Repository, registry ListenerRegistry, logger logger.Interface) *WatchTicketUseCase {
	return &WatchTicketUseCase{
		ticketRepo: ticketRepo,
		registry:   registry,
		logger:     logger,
	}
}

// Attach delivers the current snapshot to cmd.Listener and subscribes it.
// An unknown ticket yields a not-found AppError and no subscription.
func (uc *WatchTicketUseCase) Attach(ctx context.Context, cmd WatchTicketCommand) error {
	if !id.IsTicketID(cmd.TicketID) {
		return errors.NewNotFoundError("Ticket not found")
	}

	err := uc.registry.Attach(cmd.TicketID, cmd.Listener, func() error {
		t, err := uc.ticketRepo.Get(ctx, cmd.TicketID)
		if err != nil {
			return err
		}

		frame, err := json.Marshal(proto.NewSnapshotEvent(t.ID(), dto.ToTicketDTO(t)))
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		return cmd.Listener.Deliver(frame)
	})
	if err != nil {
		if stderrors.Is(err, ticket.ErrTicketNotFound) {
			return errors.NewNotFoundError("Ticket not found")
		}
		uc.logger.Warnw("failed to attach ticket listener",
			"ticket_id", cmd.TicketID,
			"error", err,
		)
		return err
	}

	uc.logger.Debugw("ticket listener attached", "ticket_id", cmd.TicketID)
	return nil
}

// Detach removes the listener. Detaching an unknown listener is a no-op.
func (uc *WatchTicketUseCase) Detach(ticketID string, l services.Listener) {
	uc.registry.Unsubscribe(ticketID, l)
}
