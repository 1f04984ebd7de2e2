package session

import (
	"strings"
	"unicode/utf8"
)

const (
	RoomCodeLength    = 6
	MaxUsernameLength = 20
)

// NormalizeRoomCode trims and upper-cases client input.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether code is exactly six uppercase letters or digits.
func ValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// ValidUsername reports whether name has 1 to 20 characters.
func ValidUsername(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= 1 && n <= MaxUsernameLength
}

// Topic is the broadcast topic of a room.
func Topic(code string) string {
	return "room:" + code
}
