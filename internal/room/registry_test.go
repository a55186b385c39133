package room

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxRoomsPerSession = 2
	return cfg
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("123456"))
	assert.True(t, ValidCode("000000"))
	assert.False(t, ValidCode("12345"))
	assert.False(t, ValidCode("1234567"))
	assert.False(t, ValidCode("12345a"))
	assert.False(t, ValidCode(""))
	assert.False(t, ValidCode("12 456"))
}

func TestCreateRoomAllocatesSixDigitCode(t *testing.T) {
	r := NewRegistry(testConfig())

	code, err := r.CreateRoom("alice")
	require.NoError(t, err)
	assert.True(t, ValidCode(code), "got %q", code)
	assert.Equal(t, 1, r.ParticipantCount(code))
	assert.True(t, r.IsParticipant(code, "alice"))
}

func TestCreateRoomEnforcesPerSessionCap(t *testing.T) {
	r := NewRegistry(testConfig())

	_, err := r.CreateRoom("alice")
	require.NoError(t, err)
	_, err = r.CreateRoom("alice")
	require.NoError(t, err)

	_, err = r.CreateRoom("alice")
	assert.ErrorIs(t, err, ErrRoomLimitReached)

	// The cap binds at creation time only: joins are still allowed.
	code, err := r.CreateRoom("bob")
	require.NoError(t, err)
	assert.NoError(t, r.JoinRoom(code, "alice"))
}

func TestCodeSpaceExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.CodeMin = 100000
	cfg.CodeMax = 100002 // three codes in total
	cfg.MaxRoomsPerSession = 10
	r := NewRegistry(cfg)

	for i := 0; i < 3; i++ {
		_, err := r.CreateRoom(fmt.Sprintf("s%d", i))
		require.NoError(t, err)
	}

	_, err := r.CreateRoom("late")
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted, "saturated space must error, not loop")
}

func TestCodesUniqueAmongLiveRooms(t *testing.T) {
	cfg := testConfig()
	cfg.CodeMin = 100000
	cfg.CodeMax = 100001
	r := NewRegistry(cfg)

	a, err := r.CreateRoom("alice")
	require.NoError(t, err)
	b, err := r.CreateRoom("bob")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// Emptied rooms release their codes for reuse.
	r.LeaveRoom(a, "alice")
	c, err := r.CreateRoom("carol")
	require.NoError(t, err)
	assert.NotEqual(t, b, c)
}

func TestJoinRoom(t *testing.T) {
	r := NewRegistry(testConfig())
	code, err := r.CreateRoom("alice")
	require.NoError(t, err)

	assert.ErrorIs(t, r.JoinRoom("999999", "bob"), ErrRoomNotFound)

	require.NoError(t, r.JoinRoom(code, "bob"))
	assert.Equal(t, 2, r.ParticipantCount(code))

	assert.ErrorIs(t, r.JoinRoom(code, "bob"), ErrAlreadyInRoom)
	assert.ErrorIs(t, r.JoinRoom(code, "carol"), ErrRoomFull)
}

func TestJoinChecksLiveCountNotHistorical(t *testing.T) {
	r := NewRegistry(testConfig())
	code, err := r.CreateRoom("alice")
	require.NoError(t, err)

	require.NoError(t, r.JoinRoom(code, "bob"))
	r.LeaveRoom(code, "bob")

	assert.NoError(t, r.JoinRoom(code, "carol"), "a vacated slot must be joinable")
}

func TestLeaveRoomDeletesEmptyRoom(t *testing.T) {
	r := NewRegistry(testConfig())
	code, err := r.CreateRoom("alice")
	require.NoError(t, err)

	r.LeaveRoom(code, "alice")
	assert.Equal(t, 0, r.ParticipantCount(code))
	assert.Equal(t, 0, r.Size())

	// Idempotent on unknown room/session.
	r.LeaveRoom(code, "alice")
	r.LeaveRoom("000000", "ghost")
}

func TestRemoveFromAll(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRoomsPerSession = 5
	r := NewRegistry(cfg)

	codeA, err := r.CreateRoom("alice")
	require.NoError(t, err)
	codeB, err := r.CreateRoom("alice")
	require.NoError(t, err)
	require.NoError(t, r.JoinRoom(codeA, "bob"))

	left := r.RemoveFromAll("alice")
	assert.ElementsMatch(t, []string{codeA, codeB}, left)

	assert.Empty(t, r.RoomsBySession("alice"))
	assert.False(t, r.IsParticipant(codeA, "alice"))
	assert.Equal(t, 0, r.ParticipantCount(codeB), "solo room must be deleted")
	assert.Equal(t, 1, r.ParticipantCount(codeA), "bob stays behind")
}

func TestReverseIndexStaysConsistent(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRoomsPerSession = 5
	r := NewRegistry(cfg)

	codeA, err := r.CreateRoom("alice")
	require.NoError(t, err)
	codeB, err := r.CreateRoom("alice")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{codeA, codeB}, r.RoomsBySession("alice"))

	r.LeaveRoom(codeA, "alice")
	assert.ElementsMatch(t, []string{codeB}, r.RoomsBySession("alice"))

	require.NoError(t, r.JoinRoom(codeB, "bob"))
	assert.ElementsMatch(t, []string{codeB}, r.RoomsBySession("bob"))

	// Errored mutations must not touch the index.
	assert.Error(t, r.JoinRoom(codeB, "carol"))
	assert.Empty(t, r.RoomsBySession("carol"))
}

func TestReapStale(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRoomsPerSession = 5
	r := NewRegistry(cfg)

	codeA, err := r.CreateRoom("alive")
	require.NoError(t, err)
	require.NoError(t, r.JoinRoom(codeA, "dead"))
	codeB, err := r.CreateRoom("dead")
	require.NoError(t, err)

	alive := func(id string) bool { return id == "alive" }
	reaped := r.ReapStale(alive)

	assert.Equal(t, 2, reaped)
	assert.False(t, r.IsParticipant(codeA, "dead"))
	assert.Equal(t, 1, r.ParticipantCount(codeA))
	assert.Equal(t, 0, r.ParticipantCount(codeB), "room of only dead sessions is deleted")
	assert.Empty(t, r.RoomsBySession("dead"))
}

func TestParticipantsSnapshot(t *testing.T) {
	r := NewRegistry(testConfig())
	code, err := r.CreateRoom("alice")
	require.NoError(t, err)
	require.NoError(t, r.JoinRoom(code, "bob"))

	members, err := r.Participants(code)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, members)

	_, err = r.Participants("000000")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
