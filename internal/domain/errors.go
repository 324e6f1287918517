package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotAuthenticated is returned when no live game session backs the request.
	ErrNotAuthenticated = errors.New("game user not authenticated")
	// ErrSessionNotFound is returned when a session id is unknown or expired.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrQuestNotFound indicates the quest header could not be loaded.
	ErrQuestNotFound = errors.New("quest not found")
	// ErrRegistrantNotFound indicates no registrant matched a lookup.
	ErrRegistrantNotFound = errors.New("registrant not found")
	// ErrInvalidQuest is returned when a quest definition fails schema checks.
	ErrInvalidQuest = errors.New("invalid quest definition")
	// ErrDuplicateEmail is returned when a registration reuses an email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUIDExhausted is returned when no free UID was found within the retry budget.
	ErrUIDExhausted = errors.New("could not generate a unique uid")
)

// FieldErrors maps input field names to user-facing messages.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}
