package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	t.Run("sentinels match errors of the same kind", func(t *testing.T) {
		err := NewDuplicateUser("a@b.com")
		assert.ErrorIs(t, err, ErrDuplicateUser)
		assert.NotErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("matching survives wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("creating user: %w", NewMissingFields("email"))
		assert.ErrorIs(t, wrapped, ErrMissingFields)

		var domainErr *Error
		require.True(t, errors.As(wrapped, &domainErr))
		assert.Equal(t, KindMissingFields, domainErr.Kind)
		assert.Contains(t, domainErr.Message, "email")
	})

	t.Run("plain errors never match", func(t *testing.T) {
		assert.NotErrorIs(t, errors.New("boom"), ErrDuplicateUser)
	})
}

func TestNewDuplicateUser(t *testing.T) {
	err := NewDuplicateUser("taken@example.com")
	assert.Equal(t, KindDuplicateUser, err.Kind)
	assert.Equal(t, "taken@example.com", err.Data["email"])
}

func TestStatusForKind(t *testing.T) {
	cases := map[Kind]int{
		KindDuplicateUser:       http.StatusConflict,
		KindSelfDeleteForbidden: http.StatusForbidden,
		KindUnauthenticated:     http.StatusUnauthorized,
		KindMissingFields:       http.StatusBadRequest,
		KindUserNotFound:        http.StatusNotFound,
		KindStorageUnavailable:  http.StatusServiceUnavailable,
		Kind("SomethingElse"):   http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusForKind(kind), string(kind))
	}
}
