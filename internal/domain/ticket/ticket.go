package ticket

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	vo "github.com/orris-inc/triage/internal/domain/ticket/valueobjects"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 4000
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrInvalidTransition = errors.New("invalid ticket status transition")
	ErrInvalidPatch      = errors.New("invalid ticket patch")
)

// Ticket is a submitted support item tracked from submission to a terminal
// generation state. Optional fields are nil until set.
type Ticket struct {
	id             string
	title          string
	description    string
	status         vo.TicketStatus
	summary        *string
	suggestedReply *string
	errMsg         *string
	createdAt      time.Time
	updatedAt      time.Time
}

// NewTicket creates a ticket in the processing state. Lengths are counted in
// characters, not bytes.
func NewTicket(id, title, description string, now time.Time) (*Ticket, error) {
	if id == "" {
		return nil, fmt.Errorf("ticket ID is required")
	}
	if err := ValidateContent(title, description); err != nil {
		return nil, err
	}

	return &Ticket{
		id:          id,
		title:       title,
		description: description,
		status:      vo.StatusProcessing,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ValidateContent checks the title and description length bounds.
func ValidateContent(title, description string) error {
	titleLen := utf8.RuneCountInString(title)
	if titleLen == 0 {
		return fmt.Errorf("title is required")
	}
	if titleLen > MaxTitleLength {
		return fmt.Errorf("title exceeds maximum length of %d characters", MaxTitleLength)
	}

	descLen := utf8.RuneCountInString(description)
	if descLen == 0 {
		return fmt.Errorf("description is required")
	}
	if descLen > MaxDescriptionLength {
		return fmt.Errorf("description exceeds maximum length of %d characters", MaxDescriptionLength)
	}
	return nil
}

func (t *Ticket) ID() string {
	return t.id
}

func (t *Ticket) Title() string {
	return t.title
}

func (t *Ticket) Description() string {
	return t.description
}

func (t *Ticket) Status() vo.TicketStatus {
	return t.status
}

func (t *Ticket) Summary() *string {
	return copyString(t.summary)
}

func (t *Ticket) SuggestedReply() *string {
	return copyString(t.suggestedReply)
}

func (t *Ticket) Error() *string {
	return copyString(t.errMsg)
}

func (t *Ticket) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Ticket) UpdatedAt() time.Time {
	return t.updatedAt
}

// Clone returns an independent copy of the ticket.
func (t *Ticket) Clone() *Ticket {
	c := *t
	c.summary = copyString(t.summary)
	c.suggestedReply = copyString(t.suggestedReply)
	c.errMsg = copyString(t.errMsg)
	return &c
}

// Apply returns a copy of t with the patch merged and updatedAt set to now.
// t itself is never modified, so a rejected patch leaves no trace.
func (t *Ticket) Apply(p Patch, now time.Time) (*Ticket, error) {
	next := t.Clone()

	if p.Status != nil && *p.Status != t.status {
		if !t.status.CanTransitionTo(*p.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, *p.Status)
		}
		next.status = *p.Status
	} else if t.status.IsTerminal() {
		return nil, fmt.Errorf("%w: ticket %s is already %s", ErrInvalidTransition, t.id, t.status)
	}

	if p.Summary != nil {
		next.summary = copyString(p.Summary)
	}
	if p.SuggestedReply != nil {
		next.suggestedReply = copyString(p.SuggestedReply)
	}
	if p.ClearError {
		next.errMsg = nil
	} else if p.Error != nil {
		next.errMsg = copyString(p.Error)
	}

	if err := next.checkInvariants(); err != nil {
		return nil, err
	}

	next.updatedAt = now
	return next, nil
}

func (t *Ticket) checkInvariants() error {
	if !t.status.IsDone() && (t.summary != nil || t.suggestedReply != nil) {
		return fmt.Errorf("%w: summary and suggested reply require status %s", ErrInvalidPatch, vo.StatusDone)
	}
	if !t.status.IsError() && t.errMsg != nil {
		return fmt.Errorf("%w: error message requires status %s", ErrInvalidPatch, vo.StatusError)
	}
	return nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
