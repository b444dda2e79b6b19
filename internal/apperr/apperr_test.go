package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
	"github.com/mamadbah2/milkmatrix/pkg/clients/supabase"
)

type stringer struct{}

func (stringer) String() string { return "stringer message" }

func TestNormalize(t *testing.T) {
	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	var nilAPIErr *supabase.APIError

	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: FallbackMessage},
		{name: "string passes through", in: "  raw text  ", want: "  raw text  "},
		{name: "auth error msg", in: &supabase.AuthError{Msg: "Invalid login credentials"}, want: "Invalid login credentials"},
		{name: "auth error legacy", in: &supabase.AuthError{ErrorDescription: "Email not confirmed"}, want: "Email not confirmed"},
		{name: "plain error", in: errors.New("boom"), want: "boom"},
		{name: "api error", in: &supabase.APIError{Message: "permission denied"}, want: "permission denied"},
		{name: "typed nil error", in: error(nilAPIErr), want: FallbackMessage},
		{name: "map message", in: map[string]any{"message": "from message", "error": "ignored"}, want: "from message"},
		{name: "map nested error", in: map[string]any{"error": "nested"}, want: "nested"},
		{name: "map details", in: map[string]any{"details": "detail text"}, want: "detail text"},
		{name: "map structured details", in: map[string]any{"details": map[string]any{"column": "amount"}}, want: `{"column":"amount"}`},
		{name: "string map", in: map[string]string{"details": "d"}, want: "d"},
		{name: "serialized", in: map[string]any{"code": 42}, want: `{"code":42}`},
		{name: "stringer", in: stringer{}, want: "stringer message"},
		{name: "circular", in: cyclic, want: FallbackMessage},
		{name: "unsupported value", in: make(chan int), want: FallbackMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, Normalize(tt.in))
			})
		})
	}
}

func TestFrom(t *testing.T) {
	require.Nil(t, From(nil))

	original := NotFound("No milk record found with ID: %s", "x")
	assert.Same(t, original, From(fmt.Errorf("wrapped: %w", original)))

	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("update: %w", repository.ErrNotFound)))
	assert.Equal(t, KindDuplicateRecord, KindOf(repository.ErrConflict))
	assert.Equal(t, KindNetwork, KindOf(fmt.Errorf("find: %w", repository.ErrUnavailable)))
	assert.Equal(t, KindNetwork, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindNetwork, KindOf(&url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}))
	assert.Equal(t, KindUnauthorized, KindOf(&supabase.AuthError{Msg: "bad jwt"}))
	assert.Equal(t, KindUnknown, KindOf(errors.New("strange")))
	assert.Equal(t, Kind(""), KindOf(nil))

	unknown := From(&supabase.APIError{Message: "column does not exist"})
	assert.Equal(t, KindUnknown, unknown.Kind)
	assert.Equal(t, "column does not exist", unknown.Message)
}

func TestValidationMessageIsStable(t *testing.T) {
	err := Validation(map[string]string{
		"shift":  "Shift must be Morning or Evening",
		"amount": "Please enter a valid quantity",
	})

	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, "Please enter a valid quantity; Shift must be Morning or Evening", err.Error())
	assert.True(t, Is(err, KindValidation))
}

func TestDuplicateCarriesExisting(t *testing.T) {
	existing := &models.ExistingRecord{ID: "m1", Amount: 12.5, Shift: models.ShiftMorning, Date: "2024-05-01"}
	err := Duplicate(existing, nil)

	assert.Equal(t, KindDuplicateRecord, err.Kind)
	assert.Equal(t, 12.5, err.Existing.Amount)
	assert.Contains(t, err.Error(), "2024-05-01 during Morning shift")
}

func TestLookupFailedKeepsCause(t *testing.T) {
	cause := errors.New("relation milk_production does not exist")
	err := LookupFailed(cause)

	assert.Equal(t, KindLookupFailed, err.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), cause.Error())
}
