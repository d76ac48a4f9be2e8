package dto

import (
	"time"

	"github.com/orris-inc/triage/internal/domain/ticket"
)

// TicketDTO is the JSON representation of a ticket. Optional fields are
// serialized as null when unset.
type TicketDTO struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	Summary        *string   `json:"summary"`
	SuggestedReply *string   `json:"suggested_reply"`
	Error          *string   `json:"error"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func ToTicketDTO(t *ticket.Ticket) *TicketDTO {
	if t == nil {
		return nil
	}

	return &TicketDTO{
		ID:             t.ID(),
		Title:          t.Title(),
		Description:    t.Description(),
		Status:         t.Status().String(),
		Summary:        t.Summary(),
		SuggestedReply: t.SuggestedReply(),
		Error:          t.Error(),
		CreatedAt:      t.CreatedAt(),
		UpdatedAt:      t.UpdatedAt(),
	}
}

func ToTicketDTOs(tickets []*ticket.Ticket) []*TicketDTO {
	result := make([]*TicketDTO, 0, len(tickets))
	for _, t := range tickets {
		result = append(result, ToTicketDTO(t))
	}
	return result
}
