package socket

import (
	"testing"

	"github.com/ovidtrivia/quizroom/internal/v1/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	bindErr  error
	leaveErr error
	leftRoom *room.Room
	leftPart room.Participant
	promoted *room.Participant
	lastBind Binding
}

func (f *fakeEngine) BindSocket(pin, participantID, sid string) error {
	f.lastBind = Binding{Pin: pin, ParticipantID: participantID}
	return f.bindErr
}

func (f *fakeEngine) LeaveRoom(pin, participantID string) (*room.Room, room.Participant, *room.Participant, error) {
	if f.leaveErr != nil {
		return nil, room.Participant{}, nil, f.leaveErr
	}
	return f.leftRoom, f.leftPart, f.promoted, nil
}

func TestBindAndGetBound(t *testing.T) {
	eng := &fakeEngine{}
	b := NewBinder(eng)

	err := b.Bind("ABC123", "p1", "sid-1")
	require.NoError(t, err)

	binding, ok := b.GetBound("sid-1")
	require.True(t, ok)
	assert.Equal(t, "ABC123", binding.Pin)
	assert.Equal(t, "p1", binding.ParticipantID)
}

func TestRebindEvictsOldSocket(t *testing.T) {
	eng := &fakeEngine{}
	b := NewBinder(eng)

	require.NoError(t, b.Bind("ABC123", "p1", "sid-1"))
	require.NoError(t, b.Bind("ABC123", "p1", "sid-2"))

	_, ok := b.GetBound("sid-1")
	assert.False(t, ok)
	binding, ok := b.GetBound("sid-2")
	require.True(t, ok)
	assert.Equal(t, "p1", binding.ParticipantID)
}

func TestUnbind_TriggersLeaveRoom(t *testing.T) {
	eng := &fakeEngine{leftPart: room.Participant{ParticipantID: "p1"}}
	b := NewBinder(eng)
	require.NoError(t, b.Bind("ABC123", "p1", "sid-1"))

	_, removed, _, err := b.Unbind("sid-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", removed.ParticipantID)

	_, ok := b.GetBound("sid-1")
	assert.False(t, ok)
}

func TestUnbindParticipant_RemovesOnlyMatchingEntries(t *testing.T) {
	eng := &fakeEngine{}
	b := NewBinder(eng)
	require.NoError(t, b.Bind("ABC123", "p1", "sid-1"))
	require.NoError(t, b.Bind("ABC123", "p2", "sid-2"))

	b.UnbindParticipant("ABC123", "p1")

	_, ok := b.GetBound("sid-1")
	assert.False(t, ok)
	binding, ok := b.GetBound("sid-2")
	require.True(t, ok)
	assert.Equal(t, "p2", binding.ParticipantID)
}

func TestUnbind_UnknownSidIsNotFound(t *testing.T) {
	eng := &fakeEngine{}
	b := NewBinder(eng)

	_, _, _, err := b.Unbind("sid-ghost")
	assert.ErrorIs(t, err, room.ErrNotFound)
}
