package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vagxrth/charlar/internal/room"
)

// expiryRecorder captures auto-expire callbacks for assertions.
type expiryRecorder struct {
	mu    sync.Mutex
	fired []string
	done  chan struct{}
}

func newExpiryRecorder() *expiryRecorder {
	return &expiryRecorder{done: make(chan struct{}, 8)}
}

func (r *expiryRecorder) record(roomCode, sessionID string) {
	r.mu.Lock()
	r.fired = append(r.fired, roomCode+"/"+sessionID)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *expiryRecorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func newFixture(t *testing.T) (*Service, *expiryRecorder, string) {
	t.Helper()
	rooms := room.NewRegistry(room.DefaultConfig())
	rec := newExpiryRecorder()
	svc := NewService(rooms, rec.record)
	svc.expire = 20 * time.Millisecond

	code, err := rooms.CreateRoom("alice")
	require.NoError(t, err)
	require.NoError(t, rooms.JoinRoom(code, "bob"))
	return svc, rec, code
}

func TestStartRequiresMembership(t *testing.T) {
	svc, _, code := newFixture(t)

	assert.ErrorIs(t, svc.Start(code, "mallory"), ErrNotParticipant)
	assert.ErrorIs(t, svc.Start("999999", "alice"), ErrNotParticipant)
	assert.NoError(t, svc.Start(code, "alice"))
}

func TestStopBeforeExpiry(t *testing.T) {
	svc, rec, code := newFixture(t)

	require.NoError(t, svc.Start(code, "alice"))
	assert.True(t, svc.Stop(code, "alice"))
	assert.False(t, svc.Stop(code, "alice"), "second stop is a no-op")

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.events(), "stopped indicator must not auto-expire")
}

func TestStopWhenNotTyping(t *testing.T) {
	svc, _, code := newFixture(t)
	assert.False(t, svc.Stop(code, "alice"))
}

func TestAutoExpireFiresCallback(t *testing.T) {
	svc, rec, code := newFixture(t)

	require.NoError(t, svc.Start(code, "alice"))

	select {
	case <-rec.done:
	case <-time.After(time.Second):
		t.Fatal("auto-expire did not fire")
	}
	assert.Equal(t, []string{code + "/alice"}, rec.events())
	assert.False(t, svc.Stop(code, "alice"), "expired indicator is already gone")
}

func TestStartResetsTimer(t *testing.T) {
	svc, rec, code := newFixture(t)

	require.NoError(t, svc.Start(code, "alice"))
	time.Sleep(12 * time.Millisecond)
	require.NoError(t, svc.Start(code, "alice"))
	time.Sleep(12 * time.Millisecond)

	assert.Empty(t, rec.events(), "restart extends the window")

	select {
	case <-rec.done:
	case <-time.After(time.Second):
		t.Fatal("auto-expire did not fire after reset")
	}
	assert.Len(t, rec.events(), 1, "reset indicator expires exactly once")
}

func TestStaleExpiryTimerIsIgnored(t *testing.T) {
	svc, rec, code := newFixture(t)
	svc.expire = time.Minute // timers never fire on their own here

	require.NoError(t, svc.Start(code, "alice"))
	svc.mu.Lock()
	first := svc.typing[code]["alice"]
	svc.mu.Unlock()

	// A restart replaces the timer. A callback from the replaced one,
	// delivered late, must not cancel the fresh window.
	require.NoError(t, svc.Start(code, "alice"))
	svc.autoExpire(code, "alice", first)

	assert.Empty(t, rec.events())
	assert.True(t, svc.Stop(code, "alice"), "indicator must survive the stale callback")

	// The currently stored timer's callback is still honored.
	require.NoError(t, svc.Start(code, "alice"))
	svc.mu.Lock()
	second := svc.typing[code]["alice"]
	svc.mu.Unlock()
	svc.autoExpire(code, "alice", second)
	assert.Equal(t, []string{code + "/alice"}, rec.events())
}

func TestStoppedTimerCallbackIsIgnored(t *testing.T) {
	svc, rec, code := newFixture(t)
	svc.expire = time.Minute

	require.NoError(t, svc.Start(code, "alice"))
	svc.mu.Lock()
	timer := svc.typing[code]["alice"]
	svc.mu.Unlock()

	require.True(t, svc.Stop(code, "alice"))
	svc.autoExpire(code, "alice", timer)
	assert.Empty(t, rec.events())
}

func TestClearSessionReturnsRooms(t *testing.T) {
	svc, rec, code := newFixture(t)

	require.NoError(t, svc.Start(code, "alice"))
	require.NoError(t, svc.Start(code, "bob"))

	codes := svc.ClearSession("alice")
	assert.Equal(t, []string{code}, codes)
	assert.Empty(t, svc.ClearSession("alice"), "already cleared")

	assert.True(t, svc.Stop(code, "bob"), "other sessions keep their indicators")

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.events())
}
