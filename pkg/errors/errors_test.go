package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrInsufficientBalance, "only 3 days left")

	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.False(t, errors.Is(err, ErrOverlap))
	assert.Equal(t, "only 3 days left", err.Message)
	assert.Equal(t, "insufficient vacation balance", ErrInsufficientBalance.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)

	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
	assert.Nil(t, FromError(nil))
}

func TestValidationCollectsFields(t *testing.T) {
	type payload struct {
		StartDate string `validate:"required"`
		Email     string `validate:"required,email"`
	}
	err := validator.New().Struct(payload{Email: "nope"})
	require.Error(t, err)

	appErr := Validation(err, "invalid payload")
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "is required", appErr.Fields["startDate"])
	assert.Equal(t, "must be a valid email", appErr.Fields["email"])
}

func TestWithField(t *testing.T) {
	err := WithField("endDate", "end date must not be before start date")
	assert.Equal(t, ErrValidation.Code, err.Code)
	assert.Equal(t, map[string]string{"endDate": "end date must not be before start date"}, err.Fields)
}
