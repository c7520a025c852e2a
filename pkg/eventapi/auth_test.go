package eventapi_test

import (
	"testing"
	"time"

	"github.com/illmade-knight/go-scoutsync/pkg/eventapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager(t *testing.T) {
	secret := []byte("test-secret")

	t.Run("Issue then Verify round-trips claims", func(t *testing.T) {
		// Arrange
		manager, err := eventapi.NewTokenManager(secret, nil)
		require.NoError(t, err)

		// Act
		token, err := manager.Issue(eventapi.User{Username: "faffanis", Role: eventapi.RoleScout})
		require.NoError(t, err)
		claims, err := manager.Verify(token)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "faffanis", claims.Username)
		assert.Equal(t, eventapi.RoleScout, claims.Role)
	})

	t.Run("Token expires after the 12 hour window", func(t *testing.T) {
		// Arrange: a clock the test can move forward.
		current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		manager, err := eventapi.NewTokenManager(secret, func() time.Time { return current })
		require.NoError(t, err)
		token, err := manager.Issue(eventapi.User{Username: "faffanis", Role: eventapi.RoleScout})
		require.NoError(t, err)

		// Act 1: still valid just inside the window.
		current = current.Add(eventapi.TokenValidity - time.Minute)
		_, errInside := manager.Verify(token)

		// Act 2: expired just past the window.
		current = current.Add(2 * time.Minute)
		_, errOutside := manager.Verify(token)

		// Assert
		assert.NoError(t, errInside)
		assert.Error(t, errOutside)
	})

	t.Run("Tampered token is rejected", func(t *testing.T) {
		// Arrange
		manager, err := eventapi.NewTokenManager(secret, nil)
		require.NoError(t, err)
		other, err := eventapi.NewTokenManager([]byte("other-secret"), nil)
		require.NoError(t, err)
		token, err := other.Issue(eventapi.User{Username: "faffanis", Role: eventapi.RoleAdmin})
		require.NoError(t, err)

		// Act
		_, err = manager.Verify(token)

		// Assert
		assert.Error(t, err)
	})

	t.Run("Empty secret is refused", func(t *testing.T) {
		_, err := eventapi.NewTokenManager(nil, nil)
		assert.Error(t, err)
	})
}
