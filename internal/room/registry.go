// Package room owns room membership and code allocation. Rooms are
// ephemeral meeting points keyed by a 6-digit numeric code; a room holds
// at most two participants and is deleted eagerly when it empties.
package room

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrAlreadyInRoom      = errors.New("already in this room")
	ErrRoomFull           = errors.New("room is full")
	ErrRoomLimitReached   = errors.New("room limit reached")
	ErrCodeSpaceExhausted = errors.New("failed to generate a unique room code")
)

const codeLength = 6

// Room is a bounded meeting point. Codes are unique among live rooms but
// recycled once a room empties.
type Room struct {
	Code         string
	Participants map[string]struct{} // session ids
	CreatedAt    time.Time
}

// Config bounds code generation and membership. The code range is
// injectable so tests can saturate the space.
type Config struct {
	CodeMin            int
	CodeMax            int
	MaxAttempts        int
	MaxParticipants    int
	MaxRoomsPerSession int
}

// DefaultConfig matches the production code space and caps.
func DefaultConfig() Config {
	return Config{
		CodeMin:            100_000,
		CodeMax:            999_999,
		MaxAttempts:        100,
		MaxParticipants:    2,
		MaxRoomsPerSession: 4,
	}
}

// Registry is the authoritative room table plus a session→codes reverse
// index. Every mutation updates both under one lock, so the index never
// diverges from the table.
type Registry struct {
	mu        sync.Mutex
	rooms     map[string]*Room
	bySession map[string]map[string]struct{}
	cfg       Config
}

func NewRegistry(cfg Config) *Registry {
	if cfg.CodeMin > cfg.CodeMax || cfg.MaxAttempts <= 0 || cfg.MaxParticipants <= 0 {
		panic("room: invalid registry config")
	}
	return &Registry{
		rooms:     make(map[string]*Room),
		bySession: make(map[string]map[string]struct{}),
		cfg:       cfg,
	}
}

// ValidCode reports whether code has the fixed 6-digit numeric format.
// Callers check this before touching registry state so malformed input
// never reaches a lookup.
func ValidCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// CreateRoom allocates a fresh code and a room holding only sessionID.
// The per-session cap is enforced here, at creation time only; joins are
// bounded by the participant cap instead.
func (r *Registry) CreateRoom(sessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.bySession[sessionID]) >= r.cfg.MaxRoomsPerSession {
		return "", ErrRoomLimitReached
	}

	code, err := r.generateUniqueCode()
	if err != nil {
		return "", err
	}

	r.rooms[code] = &Room{
		Code:         code,
		Participants: map[string]struct{}{sessionID: {}},
		CreatedAt:    time.Now(),
	}
	r.index(sessionID, code)
	return code, nil
}

// JoinRoom adds sessionID to the room. Capacity is checked against the
// live participant count.
func (r *Registry) JoinRoom(code, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	if _, in := room.Participants[sessionID]; in {
		return ErrAlreadyInRoom
	}
	if len(room.Participants) >= r.cfg.MaxParticipants {
		return ErrRoomFull
	}

	room.Participants[sessionID] = struct{}{}
	r.index(sessionID, code)
	return nil
}

// LeaveRoom removes sessionID from the room, deleting the room if it
// empties. Unknown rooms and non-members are a no-op.
func (r *Registry) LeaveRoom(code, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(code, sessionID)
}

// RemoveFromAll evicts a session from every room it belongs to and
// returns the affected codes for notification fan-out. Walks the reverse
// index, not the whole room table.
func (r *Registry) RemoveFromAll(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes := make([]string, 0, len(r.bySession[sessionID]))
	for code := range r.bySession[sessionID] {
		codes = append(codes, code)
	}
	for _, code := range codes {
		r.remove(code, sessionID)
	}
	return codes
}

// RoomsBySession returns the codes of every room the session is in.
func (r *Registry) RoomsBySession(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes := make([]string, 0, len(r.bySession[sessionID]))
	for code := range r.bySession[sessionID] {
		codes = append(codes, code)
	}
	return codes
}

// IsParticipant reports current membership.
func (r *Registry) IsParticipant(code, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return false
	}
	_, in := room.Participants[sessionID]
	return in
}

// Participants returns a snapshot of the room's member session ids, or
// ErrRoomNotFound.
func (r *Registry) Participants(code string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	members := make([]string, 0, len(room.Participants))
	for id := range room.Participants {
		members = append(members, id)
	}
	return members, nil
}

// ParticipantCount returns the live member count, 0 for absent rooms.
func (r *Registry) ParticipantCount(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return 0
	}
	return len(room.Participants)
}

// Size returns the number of live rooms.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// ReapStale removes participants whose backing session no longer exists,
// deleting rooms that empty out. A safety net behind the synchronous
// cleanup paths, run periodically. Returns the number of evictions.
func (r *Registry) ReapStale(alive func(sessionID string) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for code, room := range r.rooms {
		for sessionID := range room.Participants {
			if alive(sessionID) {
				continue
			}
			r.remove(code, sessionID)
			reaped++
			logrus.WithFields(logrus.Fields{
				"component": "room",
				"room":      code,
				"session":   sessionID,
			}).Warn("Reaped participant with no backing session")
		}
	}
	return reaped
}

// remove deletes one membership edge from both the room table and the
// reverse index. Caller must hold r.mu.
func (r *Registry) remove(code, sessionID string) {
	room, ok := r.rooms[code]
	if !ok {
		return
	}
	delete(room.Participants, sessionID)

	if set := r.bySession[sessionID]; set != nil {
		delete(set, code)
		if len(set) == 0 {
			delete(r.bySession, sessionID)
		}
	}

	if len(room.Participants) == 0 {
		delete(r.rooms, code)
	}
}

// index records one membership edge in the reverse index. Caller must
// hold r.mu.
func (r *Registry) index(sessionID, code string) {
	set := r.bySession[sessionID]
	if set == nil {
		set = make(map[string]struct{})
		r.bySession[sessionID] = set
	}
	set[code] = struct{}{}
}

// generateUniqueCode draws uniformly from the configured range, rejecting
// collisions with live codes, up to MaxAttempts. Caller must hold r.mu.
func (r *Registry) generateUniqueCode() (string, error) {
	span := big.NewInt(int64(r.cfg.CodeMax - r.cfg.CodeMin + 1))
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			return "", err
		}
		code := strconv.Itoa(r.cfg.CodeMin + int(n.Int64()))
		if _, exists := r.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
