package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/triage/internal/domain/ticket"
	vo "github.com/orris-inc/triage/internal/domain/ticket/valueobjects"
	"github.com/orris-inc/triage/internal/infrastructure/repository"
	proto "github.com/orris-inc/triage/internal/shared/hubprotocol/ticket"
	"github.com/orris-inc/triage/internal/shared/logger"
)

func newWorkerFixture(t *testing.T, gen *mockGenerator) (*GenerationWorker, *repository.TicketRepository, *recordingPublisher, *ticket.Ticket) {
	t.Helper()
	repo := repository.NewTicketRepository()
	pub := &recordingPublisher{}
	created, err := repo.Create(context.Background(), "Login broken", "Cannot log in since this morning")
	require.NoError(t, err)

	w := NewGenerationWorker(repo, gen, pub, GenerationSettings{
		Model:       "test-model",
		Temperature: 0.3,
		Timeout:     time.Second,
	}, logger.NewNop())
	return w, repo, pub, created
}

func mustGet(t *testing.T, repo ticket.Repository, ticketID string) *ticket.Ticket {
	t.Helper()
	got, err := repo.Get(context.Background(), ticketID)
	require.NoError(t, err)
	return got
}

func TestGenerationWorker_Success(t *testing.T) {
	var captured ticket.GenerationRequest
	gen := fragmentGenerator(nil, `{"summary": "User cannot log in.",`, "", ` "suggested_reply": "Please reset your password."}`)
	inner := gen.StreamFunc
	gen.StreamFunc = func(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error) {
		captured = req
		return inner(ctx, req)
	}
	w, repo, pub, created := newWorkerFixture(t, gen)

	w.Run(context.Background(), created.ID())

	assert.Equal(t, []string{"status:processing", "token", "token", "complete", "status:done"}, pub.types())

	done := mustGet(t, repo, created.ID())
	assert.Equal(t, vo.StatusDone, done.Status())
	require.NotNil(t, done.Summary())
	assert.Equal(t, "User cannot log in.", *done.Summary())
	require.NotNil(t, done.SuggestedReply())
	assert.Equal(t, "Please reset your password.", *done.SuggestedReply())
	assert.Nil(t, done.Error())
	assert.True(t, done.UpdatedAt().After(created.UpdatedAt()))

	frames := pub.frames()
	var complete proto.CompleteEvent
	require.NoError(t, json.Unmarshal(frames[3], &complete))
	assert.Equal(t, created.ID(), complete.TicketID)
	assert.Equal(t, "User cannot log in.", complete.Summary)
	assert.Equal(t, "Please reset your password.", complete.SuggestedReply)

	assert.Equal(t, "test-model", captured.Model)
	assert.InDelta(t, 0.3, captured.Temperature, 1e-9)
	assert.True(t, captured.JSONOutput)
	assert.Contains(t, captured.SystemPrompt, `"summary"`)
	assert.Contains(t, captured.SystemPrompt, `"suggested_reply"`)
	assert.Equal(t, "Title: Login broken\nDescription: Cannot log in since this morning", captured.UserPrompt)
}

func TestGenerationWorker_TokensReproduceParsedBuffer(t *testing.T) {
	fragments := []string{"{", `"summary"`, `: "s", `, `"reply": "r"`, "}"}
	w, _, pub, created := newWorkerFixture(t, fragmentGenerator(nil, fragments...))

	w.Run(context.Background(), created.ID())

	var buf strings.Builder
	for _, frame := range pub.frames() {
		var ev proto.TokenEvent
		require.NoError(t, json.Unmarshal(frame, &ev))
		if ev.Type == proto.MsgTypeToken {
			buf.WriteString(ev.Token)
		}
	}
	assert.Equal(t, strings.Join(fragments, ""), buf.String())
}

func TestGenerationWorker_ReplyKeyFallback(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		wantSummary string
		wantReply   string
	}{
		{"primary key", `{"summary":"a","suggested_reply":"b"}`, "a", "b"},
		{"alternate key", `{"summary":"a","reply":"c"}`, "a", "c"},
		{"primary wins", `{"summary":"a","suggested_reply":"b","reply":"c"}`, "a", "b"},
		{"empty primary falls back", `{"summary":"a","suggested_reply":"","reply":"c"}`, "a", "c"},
		{"neither key", `{"summary":"a"}`, "a", ""},
		{"missing summary", `{"reply":"c"}`, "", "c"},
		{"non-string values", `{"summary":1,"suggested_reply":null}`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, repo, _, created := newWorkerFixture(t, fragmentGenerator(nil, tt.output))

			w.Run(context.Background(), created.ID())

			done := mustGet(t, repo, created.ID())
			require.Equal(t, vo.StatusDone, done.Status())
			assert.Equal(t, tt.wantSummary, *done.Summary())
			assert.Equal(t, tt.wantReply, *done.SuggestedReply())
		})
	}
}

func TestGenerationWorker_ParseFailure(t *testing.T) {
	tests := []struct {
		name   string
		output []string
	}{
		{"not json", []string{"Sure! Here is", " your summary"}},
		{"json array", []string{`["summary"]`}},
		{"json null", []string{"null"}},
		{"empty stream", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, repo, pub, created := newWorkerFixture(t, fragmentGenerator(nil, tt.output...))

			w.Run(context.Background(), created.ID())

			failed := mustGet(t, repo, created.ID())
			assert.Equal(t, vo.StatusError, failed.Status())
			require.NotNil(t, failed.Error())
			assert.Equal(t, "Could not parse LLM JSON response", *failed.Error())
			assert.Nil(t, failed.Summary())

			types := pub.types()
			assert.Equal(t, "status:error", types[len(types)-1])
			assert.NotContains(t, types, "complete")
		})
	}
}

func TestParseResult_FailuresAreParseKind(t *testing.T) {
	for _, content := range []string{"", "Sure!", "null", `["summary"]`, `{"summary":`} {
		_, _, err := parseResult(content)
		require.Error(t, err, content)
		assert.Equal(t, ticket.FailureParse, ticket.FailureKindOf(err), content)
	}

	summary, reply, err := parseResult(`{"summary":"s","reply":"r"}`)
	require.NoError(t, err)
	assert.Equal(t, "s", summary)
	assert.Equal(t, "r", reply)
}

func TestGenerationWorker_StreamFailsMidGeneration(t *testing.T) {
	streamErr := ticket.NewGenerationError(ticket.FailureNetwork, errors.New("connection reset by peer"))
	w, repo, pub, created := newWorkerFixture(t, fragmentGenerator(streamErr, `{"summ`, `ary": "x"`))

	w.Run(context.Background(), created.ID())

	failed := mustGet(t, repo, created.ID())
	assert.Equal(t, vo.StatusError, failed.Status())
	require.NotNil(t, failed.Error())
	assert.Equal(t, "LLM error: connection reset by peer", *failed.Error())

	assert.Equal(t, []string{"status:processing", "token", "token", "status:error"}, pub.types())

	var status proto.StatusEvent
	frames := pub.frames()
	require.NoError(t, json.Unmarshal(frames[len(frames)-1], &status))
	require.NotNil(t, status.Error)
	assert.Equal(t, "LLM error: connection reset by peer", *status.Error)
}

func TestGenerationWorker_StreamOpenFails(t *testing.T) {
	gen := &mockGenerator{
		configured: true,
		StreamFunc: func(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error) {
			return nil, ticket.NewGenerationError(ticket.FailureProvider, errors.New("api error (status 429): rate limited"))
		},
	}
	w, repo, pub, created := newWorkerFixture(t, gen)

	w.Run(context.Background(), created.ID())

	failed := mustGet(t, repo, created.ID())
	assert.Equal(t, "LLM error: api error (status 429): rate limited", *failed.Error())
	assert.Equal(t, []string{"status:processing", "status:error"}, pub.types())
}

func TestGenerationWorker_UnclassifiedError(t *testing.T) {
	w, repo, _, created := newWorkerFixture(t, fragmentGenerator(errors.New("boom")))

	w.Run(context.Background(), created.ID())

	assert.Equal(t, "LLM error: boom", *mustGet(t, repo, created.ID()).Error())
}

func TestGenerationWorker_MissingCredential(t *testing.T) {
	gen := &mockGenerator{
		configured: false,
		StreamFunc: func(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error) {
			t.Fatal("stream must not be called without a credential")
			return nil, nil
		},
	}
	w, repo, pub, created := newWorkerFixture(t, gen)

	w.Run(context.Background(), created.ID())

	failed := mustGet(t, repo, created.ID())
	assert.Equal(t, vo.StatusError, failed.Status())
	assert.Equal(t, "Missing OPENAI_API_KEY", *failed.Error())
	assert.Equal(t, []string{"status:error"}, pub.types())
}

func TestGenerationWorker_ConfigurationErrorFromGenerator(t *testing.T) {
	gen := &mockGenerator{
		configured: true,
		StreamFunc: func(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error) {
			return nil, ticket.NewGenerationError(ticket.FailureConfiguration, errors.New("missing OPENAI_API_KEY"))
		},
	}
	w, repo, _, created := newWorkerFixture(t, gen)

	w.Run(context.Background(), created.ID())

	assert.Equal(t, "Missing OPENAI_API_KEY", *mustGet(t, repo, created.ID()).Error())
}

func TestGenerationWorker_MissingTicketExitsSilently(t *testing.T) {
	gen := fragmentGenerator(nil, `{"summary":"x"}`)
	repo := &mockTicketRepository{
		UpdateFunc: func(ctx context.Context, ticketID string, patch ticket.Patch) error {
			t.Fatal("update must not be called for a missing ticket")
			return nil
		},
	}
	pub := &recordingPublisher{}
	w := NewGenerationWorker(repo, gen, pub, GenerationSettings{}, logger.NewNop())

	w.Run(context.Background(), "tkt_missing")

	assert.Empty(t, pub.types())
}

func TestGenerationWorker_AppliesTimeout(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	gen := &mockGenerator{
		configured: true,
		StreamFunc: func(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error) {
			deadline, hasDeadline = ctx.Deadline()
			return &sliceStream{fragments: []string{`{}`}}, nil
		},
	}
	w, _, _, created := newWorkerFixture(t, gen)

	start := time.Now()
	w.Run(context.Background(), created.ID())

	require.True(t, hasDeadline)
	assert.WithinDuration(t, start.Add(time.Second), deadline, 500*time.Millisecond)
}

func TestGenerationWorker_NoTimeoutWhenDisabled(t *testing.T) {
	var hasDeadline bool
	gen := &mockGenerator{
		configured: true,
		StreamFunc: func(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error) {
			_, hasDeadline = ctx.Deadline()
			return &sliceStream{fragments: []string{`{}`}}, nil
		},
	}
	repo := repository.NewTicketRepository()
	created, err := repo.Create(context.Background(), "t", "d")
	require.NoError(t, err)
	w := NewGenerationWorker(repo, gen, &recordingPublisher{}, GenerationSettings{}, logger.NewNop())

	w.Run(context.Background(), created.ID())

	assert.False(t, hasDeadline)
}

func TestGenerationWorker_ClosesStream(t *testing.T) {
	stream := &sliceStream{fragments: []string{`{}`}}
	gen := &mockGenerator{
		configured: true,
		StreamFunc: func(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error) {
			return stream, nil
		},
	}
	w, _, _, created := newWorkerFixture(t, gen)

	w.Run(context.Background(), created.ID())

	assert.True(t, stream.closed)
}

func TestGenerationWorker_AlreadyTerminalTicketIsLeftAlone(t *testing.T) {
	w, repo, pub, created := newWorkerFixture(t, fragmentGenerator(nil, `{"summary":"late"}`))
	require.NoError(t, repo.Update(context.Background(), created.ID(), ticket.FailedPatch("first")))

	w.Run(context.Background(), created.ID())

	got := mustGet(t, repo, created.ID())
	assert.Equal(t, vo.StatusError, got.Status())
	assert.Equal(t, "first", *got.Error())
	assert.Empty(t, pub.types())
}
