package usecases

import (
	"context"
	stderrors "errors"

	"github.com/orris-inc/triage/internal/application/ticket/dto"
	"github.com/orris-inc/triage/internal/domain/ticket"
	"github.com/orris-inc/triage/internal/shared/errors"
	"github.com/orris-inc/triage/internal/shared/id"
	"github.com/orris-inc/triage/internal/shared/logger"
)

type GetTicketQuery struct {
	TicketID string
}

type GetTicketUseCase struct {
	ticketRepo ticket.Repository
	logger     logger.Interface
}

func NewGetTicketUseCase(ticketRepo ticket.Repository, logger logger.Interface) *GetTicketUseCase {
	return &GetTicketUseCase{
		ticketRepo: ticketRepo,
		logger:     logger,
	}
}

func (uc *GetTicketUseCase) Execute(ctx context.Context, query GetTicketQuery) (*dto.TicketDTO, error) {
	if query.TicketID == "" {
		return nil, errors.NewValidationError("ticket ID is required")
	}
	if !id.IsTicketID(query.TicketID) {
		return nil, errors.NewNotFoundError("Ticket not found")
	}

	t, err := uc.ticketRepo.Get(ctx, query.TicketID)
	if err != nil {
		if stderrors.Is(err, ticket.ErrTicketNotFound) {
			return nil, errors.NewNotFoundError("Ticket not found")
		}
		uc.logger.Errorw("failed to get ticket", "ticket_id", query.TicketID, "error", err)
		return nil, errors.NewInternalError("failed to get ticket")
	}

	return dto.ToTicketDTO(t), nil
}
