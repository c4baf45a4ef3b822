package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID_MonotonicWithinSameInstant(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	a := NewULID(now)
	b := NewULID(now)

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
}

func TestNewTownID(t *testing.T) {
	id, err := NewTownID()
	require.NoError(t, err)
	assert.Len(t, id, 7)
	for _, r := range id {
		assert.True(t, strings.ContainsRune(idChars, r), "unexpected rune %q", r)
	}
}

func TestNewUpdatePassword(t *testing.T) {
	a, err := NewUpdatePassword()
	require.NoError(t, err)
	b, err := NewUpdatePassword()
	require.NoError(t, err)
	assert.Len(t, a, 24)
	assert.NotEqual(t, a, b)
}

func TestNewPlayerIDAndToken_AreUUIDs(t *testing.T) {
	_, err := uuid.Parse(NewPlayerID())
	assert.NoError(t, err)
	_, err = uuid.Parse(NewSessionToken())
	assert.NoError(t, err)
}
