package scoutstore_test

import (
	"testing"

	"github.com/illmade-knight/go-scoutsync/pkg/scoutstore"
	"github.com/stretchr/testify/assert"
)

func TestListenerSet(t *testing.T) {
	t.Run("Delivers each key to every listener", func(t *testing.T) {
		// Arrange
		set := scoutstore.NewListenerSet()
		var first, second []string
		set.Subscribe(func(key string) { first = append(first, key) })
		set.Subscribe(func(key string) { second = append(second, key) })

		// Act
		set.Notify("events_a")
		set.Notify("events_b")

		// Assert
		assert.ElementsMatch(t, []string{"events_a", "events_b"}, first)
		assert.ElementsMatch(t, []string{"events_a", "events_b"}, second)
	})

	t.Run("Unsubscribed listeners stop receiving", func(t *testing.T) {
		// Arrange
		set := scoutstore.NewListenerSet()
		var calls int
		id := set.Subscribe(func(string) { calls++ })

		// Act
		set.Notify("players_x")
		set.Unsubscribe(id)
		set.Notify("players_y")

		// Assert
		assert.Equal(t, 1, calls)
	})

	t.Run("Unknown unsubscribe is a no-op", func(t *testing.T) {
		set := scoutstore.NewListenerSet()
		set.Unsubscribe("not-a-subscription")
		set.Notify("events_x")
	})
}
