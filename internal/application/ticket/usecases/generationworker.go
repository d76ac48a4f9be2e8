package usecases

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/orris-inc/triage/internal/domain/ticket"
	vo "github.com/orris-inc/triage/internal/domain/ticket/valueobjects"
	proto "github.com/orris-inc/triage/internal/shared/hubprotocol/ticket"
	"github.com/orris-inc/triage/internal/shared/logger"
	"github.com/orris-inc/triage/internal/shared/utils/logutil"
)

const (
	missingKeySubmitMessage = "OPENAI_API_KEY is not set"
	missingKeyWorkerMessage = "Missing OPENAI_API_KEY"
	parseFailureMessage     = "Could not parse LLM JSON response"

	triageSystemPrompt = "You are a concise support assistant. Given a support ticket, return JSON with keys " +
		`"summary" (one sentence) and "suggested_reply" (short, actionable response).`
)

// GenerationSettings are the request parameters shared by every ticket.
type GenerationSettings struct {
	Model       string
	Temperature float64
	// Timeout bounds a whole generation attempt. Zero disables it.
	Timeout time.Duration
}

// GenerationWorker drives one ticket from processing to done or error.
// Each ticket gets exactly one attempt.
type GenerationWorker struct {
	ticketRepo ticket.Repository
	generator  TextGenerator
	publisher  EventPublisher
	settings   GenerationSettings
	logger     logger.Interface
}

func NewGenerationWorker(
	ticketRepo ticket.Repository,
	generator TextGenerator,
	publisher EventPublisher,
	settings GenerationSettings,
	logger logger.Interface,
) *GenerationWorker {
	return &GenerationWorker{
		ticketRepo: ticketRepo,
		generator:  generator,
		publisher:  publisher,
		settings:   settings,
		logger:     logger,
	}
}

// Run generates the summary and reply for ticketID and publishes every step.
// Events reach listeners in this order: status processing, tokens, then
// complete and status done, or a single status error.
func (w *GenerationWorker) Run(ctx context.Context, ticketID string) {
	log := w.logger.With("ticket_id", ticketID)

	if !w.generator.Configured() {
		w.fail(ctx, ticketID, missingKeyWorkerMessage)
		return
	}

	t, err := w.ticketRepo.Get(ctx, ticketID)
	if err != nil {
		log.Debugw("ticket vanished before generation started", "error", err)
		return
	}
	if t.Status().IsTerminal() {
		log.Debugw("ticket already finished, skipping generation", "status", t.Status())
		return
	}

	w.publisher.PublishStatus(ctx, ticketID, vo.StatusProcessing, nil)

	content, err := w.stream(ctx, t)
	if err != nil {
		log.Warnw("ticket generation failed",
			"kind", ticket.FailureKindOf(err),
			"error", err,
		)
		w.fail(ctx, ticketID, failureMessage(err))
		return
	}

	summary, reply, err := parseResult(content)
	if err != nil {
		log.Warnw("ticket generation returned unparsable output",
			"kind", ticket.FailureKindOf(err),
			"error", err,
			"output", logutil.TruncateForLog(content, 200),
		)
		w.fail(ctx, ticketID, parseFailureMessage)
		return
	}

	if err := w.ticketRepo.Update(ctx, ticketID, ticket.CompletedPatch(summary, reply)); err != nil {
		log.Errorw("failed to store generation result", "error", err)
		return
	}

	w.publisher.Publish(ctx, ticketID, proto.NewCompleteEvent(ticketID, summary, reply))
	w.publisher.PublishStatus(ctx, ticketID, vo.StatusDone, nil)

	log.Infow("ticket generation completed")
}

// stream relays every non-empty fragment and returns their concatenation.
func (w *GenerationWorker) stream(ctx context.Context, t *ticket.Ticket) (string, error) {
	genCtx := ctx
	if w.settings.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, w.settings.Timeout)
		defer cancel()
	}

	fragments, err := w.generator.Stream(genCtx, ticket.GenerationRequest{
		Model:        w.settings.Model,
		SystemPrompt: triageSystemPrompt,
		UserPrompt:   fmt.Sprintf("Title: %s\nDescription: %s", t.Title(), t.Description()),
		Temperature:  w.settings.Temperature,
		JSONOutput:   true,
	})
	if err != nil {
		return "", err
	}
	defer fragments.Close()

	var buf strings.Builder
	for {
		piece, err := fragments.Next()
		if err == io.EOF {
			return buf.String(), nil
		}
		if err != nil {
			return "", err
		}
		if piece == "" {
			continue
		}
		buf.WriteString(piece)
		w.publisher.Publish(ctx, t.ID(), proto.NewTokenEvent(t.ID(), piece))
	}
}

func (w *GenerationWorker) fail(ctx context.Context, ticketID, message string) {
	if err := w.ticketRepo.Update(ctx, ticketID, ticket.FailedPatch(message)); err != nil {
		w.logger.Errorw("failed to mark ticket as failed",
			"ticket_id", ticketID,
			"error", err,
		)
		return
	}
	w.publisher.PublishStatus(ctx, ticketID, vo.StatusError, &message)
}

func failureMessage(err error) string {
	var genErr *ticket.GenerationError
	if stderrors.As(err, &genErr) {
		if genErr.Kind == ticket.FailureConfiguration {
			return missingKeyWorkerMessage
		}
		return "LLM error: " + genErr.Err.Error()
	}
	return "LLM error: " + err.Error()
}

// parseResult decodes the generated JSON object. A missing or non-string
// summary becomes "". The reply falls back from suggested_reply to reply.
// Failures are GenerationErrors of kind FailureParse.
func parseResult(content string) (summary, reply string, err error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return "", "", ticket.NewGenerationError(ticket.FailureParse, fmt.Errorf("decode generation output: %w", err))
	}
	if fields == nil {
		return "", "", ticket.NewGenerationError(ticket.FailureParse, stderrors.New("generation output is not a JSON object"))
	}

	summary = stringField(fields, "summary")
	reply = stringField(fields, "suggested_reply")
	if reply == "" {
		reply = stringField(fields, "reply")
	}
	return summary, reply, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
