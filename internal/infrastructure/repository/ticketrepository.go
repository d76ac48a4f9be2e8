package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orris-inc/triage/internal/domain/ticket"
	"github.com/orris-inc/triage/internal/shared/biztime"
	"github.com/orris-inc/triage/internal/shared/id"
)

// maxIDAttempts bounds retries on the (practically impossible) event of a
// generated ID colliding with an existing ticket.
const maxIDAttempts = 5

// TicketRepository is a process-scoped, memory-resident ticket store.
// Every read returns a copy; every write replaces the stored record while
// holding the lock, so readers observe either the old or the new record.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*ticket.Ticket
	order   []string
	now     func() time.Time
	newID   func() (string, error)
}

// NewTicketRepository creates an empty store.
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{
		tickets: make(map[string]*ticket.Ticket),
		now:     biztime.NowUTC,
		newID:   id.NewTicketID,
	}
}

func (r *TicketRepository) Create(ctx context.Context, title, description string) (*ticket.Ticket, error) {
	if err := ticket.ValidateContent(title, description); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ticketID, err := r.freshIDLocked()
	if err != nil {
		return nil, err
	}

	t, err := ticket.NewTicket(ticketID, title, description, r.now())
	if err != nil {
		return nil, err
	}

	r.tickets[ticketID] = t
	r.order = append(r.order, ticketID)

	return t.Clone(), nil
}

func (r *TicketRepository) freshIDLocked() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		ticketID, err := r.newID()
		if err != nil {
			return "", fmt.Errorf("failed to generate ticket ID: %w", err)
		}
		if _, exists := r.tickets[ticketID]; !exists {
			return ticketID, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique ticket ID after %d attempts", maxIDAttempts)
}

func (r *TicketRepository) Get(ctx context.Context, ticketID string) (*ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tickets[ticketID]
	if !ok {
		return nil, ticket.ErrTicketNotFound
	}
	return t.Clone(), nil
}

func (r *TicketRepository) List(ctx context.Context) ([]*ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*ticket.Ticket, 0, len(r.order))
	for _, ticketID := range r.order {
		result = append(result, r.tickets[ticketID].Clone())
	}
	return result, nil
}

func (r *TicketRepository) Update(ctx context.Context, ticketID string, patch ticket.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tickets[ticketID]
	if !ok {
		return nil
	}

	next, err := current.Apply(patch, biztime.Later(current.UpdatedAt(), r.now()))
	if err != nil {
		return fmt.Errorf("failed to update ticket %s: %w", ticketID, err)
	}

	r.tickets[ticketID] = next
	return nil
}

// Count returns the number of stored tickets.
func (r *TicketRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tickets)
}
