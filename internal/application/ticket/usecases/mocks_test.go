package usecases

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/orris-inc/triage/internal/domain/ticket"
	vo "github.com/orris-inc/triage/internal/domain/ticket/valueobjects"
)

type mockTicketRepository struct {
	CreateFunc func(ctx context.Context, title, description string) (*ticket.Ticket, error)
	GetFunc    func(ctx context.Context, ticketID string) (*ticket.Ticket, error)
	ListFunc   func(ctx context.Context) ([]*ticket.Ticket, error)
	UpdateFunc func(ctx context.Context, ticketID string, patch ticket.Patch) error
}

func (m *mockTicketRepository) Create(ctx context.Context, title, description string) (*ticket.Ticket, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, title, description)
	}
	return nil, nil
}

func (m *mockTicketRepository) Get(ctx context.Context, ticketID string) (*ticket.Ticket, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, ticketID)
	}
	return nil, ticket.ErrTicketNotFound
}

func (m *mockTicketRepository) List(ctx context.Context) ([]*ticket.Ticket, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *mockTicketRepository) Update(ctx context.Context, ticketID string, patch ticket.Patch) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, ticketID, patch)
	}
	return nil
}

type mockGenerator struct {
	configured bool
	StreamFunc func(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error)
}

func (m *mockGenerator) Configured() bool {
	return m.configured
}

func (m *mockGenerator) Stream(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	return &sliceStream{}, nil
}

// fragmentGenerator returns a configured generator that streams fragments
// and then ends with finalErr (io.EOF when nil).
func fragmentGenerator(finalErr error, fragments ...string) *mockGenerator {
	return &mockGenerator{
		configured: true,
		StreamFunc: func(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error) {
			return &sliceStream{fragments: fragments, finalErr: finalErr}, nil
		},
	}
}

type sliceStream struct {
	fragments []string
	finalErr  error
	closed    bool
	// beforeNext runs before every Next call when set.
	beforeNext func(i int)
	calls      int
}

func (s *sliceStream) Next() (string, error) {
	if s.beforeNext != nil {
		s.beforeNext(s.calls)
	}
	s.calls++
	if len(s.fragments) > 0 {
		next := s.fragments[0]
		s.fragments = s.fragments[1:]
		return next, nil
	}
	if s.finalErr != nil {
		return "", s.finalErr
	}
	return "", io.EOF
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type publishedEvent struct {
	TicketID string
	Frame    []byte
}

// recordingPublisher captures events in publish order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ticketID string, event any) {
	frame, _ := json.Marshal(event)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{TicketID: ticketID, Frame: frame})
}

func (p *recordingPublisher) PublishStatus(ctx context.Context, ticketID string, status vo.TicketStatus, errMsg *string) {
	p.Publish(ctx, ticketID, map[string]any{
		"type":     "status",
		"ticketId": ticketID,
		"status":   status.String(),
		"error":    errMsg,
	})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		var h struct {
			Type   string `json:"type"`
			Status string `json:"status"`
		}
		_ = json.Unmarshal(e.Frame, &h)
		if h.Type == "status" {
			out = append(out, "status:"+h.Status)
			continue
		}
		out = append(out, h.Type)
	}
	return out
}

func (p *recordingPublisher) frames() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Frame)
	}
	return out
}

// inlineLauncher runs tasks synchronously.
type inlineLauncher struct {
	names []string
}

func (l *inlineLauncher) Go(name string, fn func()) {
	l.names = append(l.names, name)
	fn()
}
