package ticket

import (
	"context"
	"errors"
	"fmt"
)

// GenerationRequest is a single chat completion request for a ticket.
type GenerationRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	JSONOutput   bool
}

// FragmentStream yields incremental text fragments. Next returns io.EOF once
// the stream completed normally.
type FragmentStream interface {
	Next() (string, error)
	Close() error
}

// Generator is the external text generation service.
type Generator interface {
	Stream(ctx context.Context, req GenerationRequest) (FragmentStream, error)
}

// FailureKind classifies why a generation attempt failed. None of them is
// retried automatically; the client resubmits a new ticket.
type FailureKind string

const (
	FailureConfiguration FailureKind = "configuration"
	FailureNetwork       FailureKind = "network"
	FailureProvider      FailureKind = "provider"
	FailureParse         FailureKind = "parse"
)

// GenerationError is a failed generation attempt.
type GenerationError struct {
	Kind FailureKind
	Err  error
}

func NewGenerationError(kind FailureKind, err error) *GenerationError {
	return &GenerationError{Kind: kind, Err: err}
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// FailureKindOf returns the kind of a GenerationError in err's chain, or
// FailureProvider for unclassified errors.
func FailureKindOf(err error) FailureKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return FailureProvider
}
