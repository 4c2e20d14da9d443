package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" operator ")
	require.NoError(t, err)
	assert.Equal(t, RoleOperator, r)
	assert.True(t, r.IsStaff())
	assert.False(t, RoleUser.IsStaff())

	for _, bad := range []string{"", "root", "MANAGER"} {
		_, err := ParseRole(bad)
		assert.Error(t, err, bad)
	}
}

func TestBookingTransitions(t *testing.T) {
	assert.True(t, BookingActive.CanTransitionTo(BookingCancelled))
	assert.True(t, BookingActive.CanTransitionTo(BookingCompleted))
	assert.False(t, BookingActive.CanTransitionTo(BookingActive))
	assert.False(t, BookingCancelled.CanTransitionTo(BookingActive))
	assert.False(t, BookingCompleted.CanTransitionTo(BookingCancelled))
	assert.True(t, BookingCancelled.IsTerminal())
	assert.False(t, BookingActive.IsTerminal())
}

func TestParseEnums(t *testing.T) {
	st, err := ParseSpaceStatus("out_of_service")
	require.NoError(t, err)
	assert.Equal(t, SpaceOutOfService, st)
	_, err = ParseSpaceStatus("FREE")
	assert.Error(t, err)

	typ, err := ParseSpaceType("Electric")
	require.NoError(t, err)
	assert.Equal(t, SpaceElectric, typ)

	ps, err := ParsePaymentStatus("refunded")
	require.NoError(t, err)
	assert.Equal(t, PaymentRefunded, ps)

	_, err = ParsePaymentMethod("CHEQUE")
	assert.Error(t, err)
}
