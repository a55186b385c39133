package session

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	nicknameMinLength = 2
	nicknameMaxLength = 20
)

var nicknamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// NormalizeNickname trims and validates a requested display name.
// Anything unusable is replaced by a generated guest name, so room entry
// never fails on a bad nickname.
func NormalizeNickname(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < nicknameMinLength || len(trimmed) > nicknameMaxLength {
		return guestName()
	}
	if !nicknamePattern.MatchString(trimmed) {
		return guestName()
	}
	return trimmed
}

func guestName() string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "Guest-" + hex[:4]
}
