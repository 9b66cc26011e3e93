//go:build unit

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEqual(t *testing.T) {
	t.Run("two byte slices are equal in length and values", func(t *testing.T) {
		// Prepare
		a := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		b := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

		// Execute
		isEqual := IsEqual(a, b)

		// Check
		assert.True(t, isEqual, "slices equal in length and values")
	})

	t.Run("two byte slices are unequal in length", func(t *testing.T) {
		// Prepare
		a := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		b := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

		// Execute
		isEqual := IsEqual(a, b)

		// Check
		assert.False(t, isEqual, "slices unequal in length")
	})

	t.Run("two byte slices are unequal in values", func(t *testing.T) {
		// Prepare
		a := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		b := []byte{0, 1, 5, 3, 4, 5, 6, 7, 8, 9}

		// Execute
		isEqual := IsEqual(a, b)

		// Check
		assert.False(t, isEqual, "slices unequal in values")
	})
}
