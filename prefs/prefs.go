// Package prefs persists per-user coinwatch preferences: the watch list,
// portfolio holdings and display currency.
//
// A [Store] loads and saves whole documents keyed by user id. Three
// backends are provided: [FileStore] for single-host deployments,
// [RedisStore] and [PostgresStore] for shared ones. [Writer] sits in front
// of any Store and coalesces bursts of edits into a single save.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrNotFound is returned by Load when no preferences exist for a user.
	ErrNotFound = errors.New("preferences not found")

	// ErrInvalidUser is returned for empty or malformed user ids.
	ErrInvalidUser = errors.New("invalid user id")
)

var userPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@-]*$`)

// Preferences is the persisted document for one user.
type Preferences struct {
	WatchList []string          `json:"watchList"`
	Holdings  map[string]string `json:"holdings,omitempty"`
	Currency  string            `json:"currency,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Store loads and saves preferences by user id.
//
// Save replaces the whole document; concurrent writers resolve last write
// wins. Delete is a no-op when nothing is stored.
type Store interface {
	Load(ctx context.Context, userID string) (Preferences, error)
	Save(ctx context.Context, userID string, p Preferences) error
	Delete(ctx context.Context, userID string) error
}

// ValidateUser reports whether userID can be used as a storage key.
func ValidateUser(userID string) error {
	if userID == "" || len(userID) > 128 || !userPattern.MatchString(userID) {
		return fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return nil
}
