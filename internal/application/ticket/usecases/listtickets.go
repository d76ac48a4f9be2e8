package usecases

import (
	"context"

	"github.com/orris-inc/triage/internal/application/ticket/dto"
	"github.com/orris-inc/triage/internal/domain/ticket"
	"github.com/orris-inc/triage/internal/shared/errors"
	"github.com/orris-inc/triage/internal/shared/logger"
)

type ListTicketsUseCase struct {
	ticketRepo ticket.Repository
	logger     logger.Interface
}

func NewListTicketsUseCase(ticketRepo ticket.Repository, logger logger.Interface) *ListTicketsUseCase {
	return &ListTicketsUseCase{
		ticketRepo: ticketRepo,
		logger:     logger,
	}
}

// Execute returns every ticket in submission order.
func (uc *ListTicketsUseCase) Execute(ctx context.Context) ([]*dto.TicketDTO, error) {
	tickets, err := uc.ticketRepo.List(ctx)
	if err != nil {
		uc.logger.Errorw("failed to list tickets", "error", err)
		return nil, errors.NewInternalError("failed to list tickets")
	}
	return dto.ToTicketDTOs(tickets), nil
}
