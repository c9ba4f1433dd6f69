package query

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Matching(t *testing.T) {
	t.Run("decode error", func(t *testing.T) {
		cause := errors.New("bad base64")
		err := NewDecodeError(cause)
		assert.ErrorIs(t, err, ErrInvalidCursor)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	})

	t.Run("validation error", func(t *testing.T) {
		err := NewValidationError("limit", "must be at least 1")
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "'limit' must be at least 1")
		assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(err))
	})

	t.Run("not found error", func(t *testing.T) {
		err := NewNotFoundError("user", "_id:1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "No user record was found for _id:1", err.Error())
		assert.Equal(t, http.StatusNotFound, StatusCode(fmt.Errorf("wrapped: %w", err)))
	})

	t.Run("execution error", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewExecutionError("find", cause)
		assert.ErrorIs(t, err, ErrExecutionFailed)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, http.StatusInternalServerError, StatusCode(err))

		var execErr *ExecutionError
		assert.True(t, errors.As(err, &execErr))
		assert.Equal(t, "find", execErr.Operation)
	})

	t.Run("nil execution error", func(t *testing.T) {
		assert.NoError(t, NewExecutionError("find", nil))
	})

	t.Run("field errors", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, StatusCode(FieldNotAllowedError("password")))
		assert.ErrorIs(t, InvalidFieldNameError("$where"), ErrInvalidFieldName)
	})

	t.Run("nil is ok", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, StatusCode(nil))
	})
}

func TestCoerceObjectID(t *testing.T) {
	id, err := CoerceObjectID("5f4004f85bd077009689e35d")
	assert.NoError(t, err)
	assert.Equal(t, "5f4004f85bd077009689e35d", id.Hex())

	again, err := CoerceObjectID(id)
	assert.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = CoerceObjectID("not-an-id")
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.Equal(t, "field 'id': invalid query: unable to coerce 'not-an-id' into an object ID", err.Error())

	_, err = CoerceObjectID(42)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}
