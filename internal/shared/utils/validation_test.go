package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/triage/internal/shared/errors"
)

type sampleRequest struct {
	Title string `json:"title" validate:"required,max=5"`
	Body  string `json:"body" validate:"min=2"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name        string
		input       sampleRequest
		wantErr     bool
		wantDetails []string
	}{
		{"valid", sampleRequest{Title: "abc", Body: "xy"}, false, nil},
		{"multi-byte counts characters", sampleRequest{Title: "ééééé", Body: "xy"}, false, nil},
		{"missing title", sampleRequest{Body: "xy"}, true, []string{"title is required"}},
		{"title too long", sampleRequest{Title: "abcdef", Body: "xy"}, true, []string{"title must be at most 5 characters long"}},
		{"both invalid", sampleRequest{Body: "x"}, true, []string{"title is required", "body must be at least 2 characters long"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			appErr := errors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, errors.ErrorTypeValidation, appErr.Type)
			assert.Equal(t, strings.Join(tt.wantDetails, "; "), appErr.Details)
		})
	}
}
