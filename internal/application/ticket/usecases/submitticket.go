package usecases

import (
	"context"

	"github.com/orris-inc/triage/internal/application/ticket/dto"
	"github.com/orris-inc/triage/internal/domain/ticket"
	"github.com/orris-inc/triage/internal/shared/errors"
	"github.com/orris-inc/triage/internal/shared/goroutine"
	"github.com/orris-inc/triage/internal/shared/logger"
)

type SubmitTicketCommand struct {
	Title       string
	Description string
}

// SubmitTicketUseCase creates a ticket and launches its generation worker.
type SubmitTicketUseCase struct {
	ticketRepo ticket.Repository
	generator  TextGenerator
	worker     *GenerationWorker
	launcher   goroutine.Launcher
	logger     logger.Interface
}

func NewSubmitTicketUseCase(
	ticketRepo ticket.Repository,
	generator TextGenerator,
	worker *GenerationWorker,
	launcher goroutine.Launcher,
	logger logger.Interface,
) *SubmitTicketUseCase {
	return &SubmitTicketUseCase{
		ticketRepo: ticketRepo,
		generator:  generator,
		worker:     worker,
		launcher:   launcher,
		logger:     logger,
	}
}

// Execute returns the ticket in the processing state. Generation continues
// in the background after Execute returns.
func (uc *SubmitTicketUseCase) Execute(ctx context.Context, cmd SubmitTicketCommand) (*dto.TicketDTO, error) {
	if err := ticket.ValidateContent(cmd.Title, cmd.Description); err != nil {
		uc.logger.Warnw("invalid submit ticket command", "error", err)
		return nil, errors.NewValidationError(err.Error())
	}

	if !uc.generator.Configured() {
		uc.logger.Warnw("ticket rejected, generation service not configured")
		return nil, errors.NewConfigurationError(missingKeySubmitMessage)
	}

	created, err := uc.ticketRepo.Create(ctx, cmd.Title, cmd.Description)
	if err != nil {
		uc.logger.Errorw("failed to create ticket", "error", err)
		return nil, errors.NewInternalError("failed to create ticket")
	}

	ticketID := created.ID()
	uc.launcher.Go("ticket-generation-"+ticketID, func() {
		uc.worker.Run(context.Background(), ticketID)
	})

	uc.logger.Infow("ticket submitted", "ticket_id", ticketID)

	return dto.ToTicketDTO(created), nil
}
