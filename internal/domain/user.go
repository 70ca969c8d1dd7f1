// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen      = 128
	MaxDisplayNameLen = 64
	DefaultName       = "Guest"
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

type (
	UserID    string
	SessionID string
)

// NewUserID is used when the identity provider didn't hand us one.
func NewUserID() UserID { return UserID(uuid.NewString()) }

func NewSessionID() SessionID { return SessionID(uuid.NewString()) }

func ValidateUserID(id UserID) error {
	if len(strings.TrimSpace(string(id))) == 0 {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}

// NormalizeDisplayName trims whitespace, falls back to DefaultName and caps
// the result at MaxDisplayNameLen runes.
func NormalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName
	}
	if utf8.RuneCountInString(name) <= MaxDisplayNameLen {
		return name
	}
	runes := []rune(name)
	return strings.TrimSpace(string(runes[:MaxDisplayNameLen]))
}
