package eventapi_test

import (
	"testing"

	"github.com/illmade-knight/go-scoutsync/pkg/eventapi"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("Authenticates trimmed credentials", func(t *testing.T) {
		// Arrange
		store, err := eventapi.NewUserStore([]eventapi.SeedUser{
			{Username: " faffanis ", Password: "faffanis", Role: eventapi.RoleScout, FullName: "Fesar Affanis"},
		}, logger)
		require.NoError(t, err)

		// Act
		user, ok := store.Authenticate("faffanis", " faffanis ")

		// Assert
		require.True(t, ok)
		assert.Equal(t, "Fesar Affanis", user.FullName)
	})

	t.Run("Rejects wrong password and unknown user identically", func(t *testing.T) {
		// Arrange
		store, err := eventapi.NewUserStore([]eventapi.SeedUser{
			{Username: "faffanis", Password: "faffanis", Role: eventapi.RoleScout},
		}, logger)
		require.NoError(t, err)

		// Act
		_, wrongPassword := store.Authenticate("faffanis", "nope")
		_, unknownUser := store.Authenticate("ghost", "ghost")

		// Assert
		assert.False(t, wrongPassword)
		assert.False(t, unknownUser)
	})

	t.Run("Duplicate usernames keep the admin entry", func(t *testing.T) {
		// Arrange: the same username provisioned as scout and admin.
		store, err := eventapi.NewUserStore([]eventapi.SeedUser{
			{Username: "jfitzpatrick", Password: "jfitzpatrick", Role: eventapi.RoleScout, FullName: "John Fitzpatrick"},
			{Username: "jfitzpatrick", Password: "jfitzpatrick", Role: eventapi.RoleAdmin, FullName: "John Fitzpatrick"},
		}, logger)
		require.NoError(t, err)

		// Act
		user, ok := store.Authenticate("jfitzpatrick", "jfitzpatrick")

		// Assert
		require.True(t, ok)
		assert.Equal(t, eventapi.RoleAdmin, user.Role)
		assert.Equal(t, 1, store.Count())
	})

	t.Run("Admin first then scout still keeps admin", func(t *testing.T) {
		store, err := eventapi.NewUserStore([]eventapi.SeedUser{
			{Username: "x", Password: "x", Role: eventapi.RoleAdmin},
			{Username: "x", Password: "x", Role: eventapi.RoleScout},
		}, logger)
		require.NoError(t, err)

		user, ok := store.Authenticate("x", "x")
		require.True(t, ok)
		assert.Equal(t, eventapi.RoleAdmin, user.Role)
	})
}
