package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmail_Normalizes(t *testing.T) {
	e, err := NewEmail("  User@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, Email("user@example.com"), e)
}

func TestNewEmail_Empty(t *testing.T) {
	_, err := NewEmail("   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadRequest))
}

func TestNewEmail_InvalidFormat(t *testing.T) {
	_, err := NewEmail("not-an-email")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadRequest))
}

func TestNormalizeEmail_Idempotent(t *testing.T) {
	once := NormalizeEmail(" A@B.com")
	assert.Equal(t, once, NormalizeEmail(once))
}

func TestNewVerificationCode(t *testing.T) {
	c, err := NewVerificationCode("0420")
	require.NoError(t, err)
	assert.Equal(t, "0420", c.String())

	for _, bad := range []string{"", "123", "12345", "12a4"} {
		_, err := NewVerificationCode(bad)
		assert.True(t, errors.Is(err, ErrBadRequest), bad)
	}
}

func TestGenerateVerificationCode_FourDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		c, err := GenerateVerificationCode()
		require.NoError(t, err)
		_, err = NewVerificationCode(c.String())
		require.NoError(t, err)
	}
}

func TestVerificationCode_Matches(t *testing.T) {
	c := VerificationCode("1234")
	assert.True(t, c.Matches("1234"))
	assert.False(t, c.Matches("1235"))
	assert.False(t, c.Matches("123"))
}

func TestNewUser_RecordsRegistered(t *testing.T) {
	u := NewUser("alice@example.com", "hash")

	_, err := uuid.Parse(u.UserID)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	events := u.CollectEvents()
	require.Len(t, events, 1)
	reg, ok := events[0].(UserRegistered)
	require.True(t, ok)
	assert.Equal(t, u.UserID, reg.UserID)
	assert.Equal(t, Email("alice@example.com"), reg.Email)
	assert.NotEmpty(t, reg.EventID())
	assert.False(t, reg.OccurredAt().IsZero())

	assert.Empty(t, u.CollectEvents(), "events are drained on collect")
}

func TestUser_Activate(t *testing.T) {
	u := NewUser("alice@example.com", "hash")
	u.CollectEvents()

	require.NoError(t, u.Activate())
	assert.True(t, u.IsActive)

	events := u.CollectEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventUserActivated, events[0].EventType())
}

func TestUser_Activate_AlreadyActive(t *testing.T) {
	u := &User{UserID: "u1", Email: "a@b.com", IsActive: true}
	err := u.Activate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Empty(t, u.CollectEvents())
}

func TestEvents_UniqueIDs(t *testing.T) {
	a := NewUserActivated("u1", "a@b.com")
	b := NewUserActivated("u1", "a@b.com")
	assert.NotEqual(t, a.EventID(), b.EventID())
}
