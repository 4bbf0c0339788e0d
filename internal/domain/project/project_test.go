package project

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("creates project with normalized tags", func(t *testing.T) {
		p, err := New(uuid.New(), "  Sneaker Shoot  ", "spring drop", []string{"Shoes", "shoes", " SALE ", ""})

		require.NoError(t, err)
		assert.Equal(t, "Sneaker Shoot", p.Name)
		assert.Equal(t, []string{"shoes", "sale"}, p.Tags)
		assert.NotEqual(t, uuid.Nil, p.ID)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := New(uuid.New(), "   ", "", nil)
		assert.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("rejects oversized name", func(t *testing.T) {
		_, err := New(uuid.New(), strings.Repeat("x", 121), "", nil)
		assert.ErrorIs(t, err, ErrInvalidName)
	})
}

func TestProject_Rename(t *testing.T) {
	p, err := New(uuid.New(), "old", "", nil)
	require.NoError(t, err)

	require.NoError(t, p.Rename("new name"))
	assert.Equal(t, "new name", p.Name)

	assert.ErrorIs(t, p.Rename(""), ErrInvalidName)
}
