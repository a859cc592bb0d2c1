package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneMatchesTemplate(t *testing.T) {
	err := Clone(ErrValidation, "bursar note is required")
	require.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, "bursar note is required", err.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)

	wrapped := fmt.Errorf("load: %w", ErrNotFound)
	assert.Equal(t, ErrNotFound, FromError(wrapped))
	assert.Nil(t, FromError(nil))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(errors.New("connection refused"), ErrInternal.Code, ErrInternal.Status, "failed to load request")
	assert.Equal(t, "failed to load request: connection refused", err.Error())
	assert.True(t, errors.Is(err, ErrInternal))
}
