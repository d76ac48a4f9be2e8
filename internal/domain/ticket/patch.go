package ticket

import vo "github.com/orris-inc/triage/internal/domain/ticket/valueobjects"

// Patch is a partial update applied atomically by the repository.
// Nil fields are left unchanged.
type Patch struct {
	Status         *vo.TicketStatus
	Summary        *string
	SuggestedReply *string
	Error          *string
	ClearError     bool
}

// CompletedPatch moves a ticket to done with its generated fields.
func CompletedPatch(summary, suggestedReply string) Patch {
	status := vo.StatusDone
	return Patch{
		Status:         &status,
		Summary:        &summary,
		SuggestedReply: &suggestedReply,
		ClearError:     true,
	}
}

// FailedPatch moves a ticket to error with a message.
func FailedPatch(message string) Patch {
	status := vo.StatusError
	return Patch{
		Status: &status,
		Error:  &message,
	}
}
