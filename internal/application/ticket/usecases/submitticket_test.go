package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/triage/internal/domain/ticket"
	"github.com/orris-inc/triage/internal/infrastructure/repository"
	apperrors "github.com/orris-inc/triage/internal/shared/errors"
	"github.com/orris-inc/triage/internal/shared/logger"
)

func newSubmitFixture(gen *mockGenerator) (*SubmitTicketUseCase, *repository.TicketRepository, *recordingPublisher, *inlineLauncher) {
	repo := repository.NewTicketRepository()
	pub := &recordingPublisher{}
	launcher := &inlineLauncher{}
	worker := NewGenerationWorker(repo, gen, pub, GenerationSettings{}, logger.NewNop())
	uc := NewSubmitTicketUseCase(repo, gen, worker, launcher, logger.NewNop())
	return uc, repo, pub, launcher
}

func TestSubmitTicketUseCase_Execute(t *testing.T) {
	gen := fragmentGenerator(nil, `{"summary":"s","suggested_reply":"r"}`)
	uc, repo, pub, launcher := newSubmitFixture(gen)

	result, err := uc.Execute(context.Background(), SubmitTicketCommand{
		Title:       "Login broken",
		Description: "Cannot log in since this morning",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "processing", result.Status)
	assert.Equal(t, result.CreatedAt, result.UpdatedAt)
	assert.Nil(t, result.Summary)
	assert.Nil(t, result.SuggestedReply)
	assert.Nil(t, result.Error)

	require.Len(t, launcher.names, 1)
	assert.Equal(t, "ticket-generation-"+result.ID, launcher.names[0])

	stored, err := repo.Get(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, "done", stored.Status().String())
	assert.Equal(t, []string{"status:processing", "token", "complete", "status:done"}, pub.types())
}

func TestSubmitTicketUseCase_Validation(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
	}{
		{"empty title", "", "desc"},
		{"title too long", strings.Repeat("a", 201), "desc"},
		{"empty description", "title", ""},
		{"description too long", "title", strings.Repeat("d", 4001)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, repo, _, launcher := newSubmitFixture(fragmentGenerator(nil))

			result, err := uc.Execute(context.Background(), SubmitTicketCommand{
				Title:       tt.title,
				Description: tt.description,
			})

			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidationError(err))
			assert.Equal(t, 0, repo.Count())
			assert.Empty(t, launcher.names)
		})
	}
}

func TestSubmitTicketUseCase_BoundariesAccepted(t *testing.T) {
	uc, repo, _, _ := newSubmitFixture(fragmentGenerator(nil, `{}`))

	_, err := uc.Execute(context.Background(), SubmitTicketCommand{
		Title:       strings.Repeat("é", 200),
		Description: strings.Repeat("d", 4000),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, repo.Count())
}

func TestSubmitTicketUseCase_MissingCredential(t *testing.T) {
	uc, repo, pub, launcher := newSubmitFixture(&mockGenerator{configured: false})

	result, err := uc.Execute(context.Background(), SubmitTicketCommand{Title: "t", Description: "d"})

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfigurationError(err))
	assert.Equal(t, "OPENAI_API_KEY is not set", apperrors.GetAppError(err).Message)
	assert.Equal(t, 0, repo.Count())
	assert.Empty(t, launcher.names)
	assert.Empty(t, pub.types())
}

func TestSubmitTicketUseCase_RepositoryFailure(t *testing.T) {
	gen := fragmentGenerator(nil)
	repo := &mockTicketRepository{
		CreateFunc: func(ctx context.Context, title, description string) (*ticket.Ticket, error) {
			return nil, errors.New("store unavailable")
		},
	}
	launcher := &inlineLauncher{}
	worker := NewGenerationWorker(repo, gen, &recordingPublisher{}, GenerationSettings{}, logger.NewNop())
	uc := NewSubmitTicketUseCase(repo, gen, worker, launcher, logger.NewNop())

	_, err := uc.Execute(context.Background(), SubmitTicketCommand{Title: "t", Description: "d"})

	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrorTypeInternal, appErr.Type)
	assert.Empty(t, launcher.names)
}
