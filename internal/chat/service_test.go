package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vagxrth/charlar/internal/room"
)

func newFixture(t *testing.T) (*Service, string, string) {
	t.Helper()
	rooms := room.NewRegistry(room.DefaultConfig())
	svc := NewService(rooms)
	code, err := rooms.CreateRoom("alice")
	require.NoError(t, err)
	require.NoError(t, rooms.JoinRoom(code, "bob"))
	return svc, code, "alice"
}

func TestProcessMessageValidation(t *testing.T) {
	svc, code, alice := newFixture(t)

	tests := []struct {
		name    string
		code    string
		sender  string
		content string
		want    error
	}{
		{"missing code", "", alice, "hi", ErrInvalidRoomCode},
		{"empty", code, alice, "", ErrEmptyMessage},
		{"whitespace only", code, alice, "   \t\n", ErrEmptyMessage},
		{"too long", code, alice, strings.Repeat("a", 1001), ErrMessageTooLong},
		{"outsider", code, "mallory", "hi", ErrNotParticipant},
		{"absent room", "999999", alice, "hi", ErrNotParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ProcessMessage(tt.code, tt.sender, tt.content)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProcessMessageBuildsMessage(t *testing.T) {
	svc, code, alice := newFixture(t)

	msg, err := svc.ProcessMessage(code, alice, "  hello there  ")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, code, msg.RoomCode)
	assert.Equal(t, alice, msg.SessionID)
	assert.Equal(t, "hello there", msg.Content, "content is trimmed")
	assert.Positive(t, msg.Timestamp)

	again, err := svc.ProcessMessage(code, alice, "second")
	require.NoError(t, err)
	assert.NotEqual(t, msg.ID, again.ID)
}

func TestProcessMessageLengthAfterTrim(t *testing.T) {
	svc, code, alice := newFixture(t)

	// Exactly at the cap once surrounding whitespace is gone.
	content := "  " + strings.Repeat("a", 1000) + "  "
	_, err := svc.ProcessMessage(code, alice, content)
	assert.NoError(t, err)
}

func TestThrottleAdmitsFiveThenBlocks(t *testing.T) {
	svc, code, alice := newFixture(t)

	for i := 0; i < 5; i++ {
		_, err := svc.ProcessMessage(code, alice, "spam")
		require.NoError(t, err)
	}
	_, err := svc.ProcessMessage(code, alice, "spam")
	assert.ErrorIs(t, err, ErrTooFast)

	// Other senders are throttled independently.
	_, err = svc.ProcessMessage(code, "bob", "hi")
	assert.NoError(t, err)
}

func TestRejectedMessagesDoNotCountAgainstThrottle(t *testing.T) {
	svc, code, alice := newFixture(t)

	for i := 0; i < 10; i++ {
		_, err := svc.ProcessMessage(code, alice, "")
		require.ErrorIs(t, err, ErrEmptyMessage)
	}
	_, err := svc.ProcessMessage(code, alice, "still fine")
	assert.NoError(t, err)
}

func TestClearSessionResetsThrottle(t *testing.T) {
	svc, code, alice := newFixture(t)

	for i := 0; i < 5; i++ {
		_, err := svc.ProcessMessage(code, alice, "spam")
		require.NoError(t, err)
	}
	svc.ClearSession(alice)

	_, err := svc.ProcessMessage(code, alice, "fresh window")
	assert.NoError(t, err)
}
