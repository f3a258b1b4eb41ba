package appointment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_FullGraph(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
		to   Status
	}{
		{StatusPending, EventCancel, StatusCancelled},
		{StatusPendingDoctorConfirmation, EventDoctorConfirm, StatusScheduled},
		{StatusPendingDoctorConfirmation, EventDoctorReject, StatusCancelled},
		{StatusPendingDoctorConfirmation, EventCancel, StatusCancelled},
		{StatusScheduled, EventCheckIn, StatusCheckedIn},
		{StatusScheduled, EventNoShow, StatusCancelled},
		{StatusScheduled, EventCancel, StatusCancelled},
		{StatusCheckedIn, EventMarkReady, StatusReadyForConsultation},
		{StatusCheckedIn, EventCancel, StatusCancelled},
		{StatusReadyForConsultation, EventStartConsultation, StatusInConsultation},
		{StatusInConsultation, EventComplete, StatusCompleted},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.ev), func(t *testing.T) {
			next, err := Transition(tc.from, tc.ev)
			require.NoError(t, err)
			assert.Equal(t, tc.to, next)
		})
	}
}

func TestTransition_ConfirmOnlyFromPendingDoctorConfirmation(t *testing.T) {
	for _, st := range AllStatuses {
		if st == StatusPendingDoctorConfirmation {
			continue
		}
		_, err := Transition(st, EventDoctorConfirm)
		assert.ErrorIs(t, err, ErrInvalidTransition, "confirm from %s should be illegal", st)
	}
}

func TestTransition_RejectOnlyFromPendingDoctorConfirmation(t *testing.T) {
	for _, st := range AllStatuses {
		if st == StatusPendingDoctorConfirmation {
			continue
		}
		_, err := Transition(st, EventDoctorReject)
		assert.ErrorIs(t, err, ErrInvalidTransition, "reject from %s should be illegal", st)
	}
}

func TestTransition_TerminalStatusesAllowNothing(t *testing.T) {
	events := []Event{
		EventDoctorConfirm, EventDoctorReject, EventCheckIn, EventMarkReady,
		EventStartConsultation, EventComplete, EventNoShow, EventCancel,
	}

	for _, st := range []Status{StatusCompleted, StatusCancelled} {
		require.True(t, st.Terminal())
		for _, ev := range events {
			_, err := Transition(st, ev)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s should be illegal", ev, st)
		}
	}
}

func TestTransition_ErrorCarriesStateDetail(t *testing.T) {
	_, err := Transition(StatusScheduled, EventDoctorConfirm)
	require.Error(t, err)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusScheduled, te.Current)
	assert.Equal(t, EventDoctorConfirm, te.Event)
	assert.Contains(t, err.Error(), "scheduled")
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusScheduled, EventCheckIn))
	assert.False(t, CanTransition(StatusScheduled, EventComplete))
	assert.False(t, CanTransition(StatusCompleted, EventCancel))
}
