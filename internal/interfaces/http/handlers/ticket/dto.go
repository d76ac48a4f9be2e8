package ticket

import (
	"github.com/orris-inc/triage/internal/application/ticket/usecases"
)

// CreateTicketRequest is the body of POST /tickets.
type CreateTicketRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=4000"`
}

func (r *CreateTicketRequest) ToCommand() usecases.SubmitTicketCommand {
	return usecases.SubmitTicketCommand{
		Title:       r.Title,
		Description: r.Description,
	}
}
