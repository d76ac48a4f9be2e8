package ticket

import "context"

// Repository owns ticket records. Implementations must be safe for
// concurrent use and linearize updates.
type Repository interface {
	// Create stores a new processing ticket under a freshly generated ID.
	Create(ctx context.Context, title, description string) (*Ticket, error)
	// Get returns a copy of the ticket or ErrTicketNotFound.
	Get(ctx context.Context, ticketID string) (*Ticket, error)
	// List returns copies of all tickets in insertion order.
	List(ctx context.Context) ([]*Ticket, error)
	// Update merges the patch. Unknown IDs are a silent no-op.
	Update(ctx context.Context, ticketID string, patch Patch) error
}
