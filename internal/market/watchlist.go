package market

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrDuplicate is returned when adding an id that is already tracked.
	ErrDuplicate = errors.New("already in watch list")

	// ErrNotFound is returned when removing an id that is not tracked.
	ErrNotFound = errors.New("not in watch list")

	// ErrInvalidID is returned for ids that cannot be an upstream identifier.
	ErrInvalidID = errors.New("invalid coin id")
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// WatchList is an ordered set of normalized coin identifiers.
//
// Add and Remove return a new WatchList and never modify the receiver, so
// a WatchList handed to another component cannot change underneath it.
type WatchList []string

// NewWatchList normalizes inputs through aliases and builds a WatchList,
// rejecting invalid and duplicate ids.
func NewWatchList(aliases Aliases, inputs ...string) (WatchList, error) {
	wl := make(WatchList, 0, len(inputs))
	for _, in := range inputs {
		next, err := wl.Add(aliases.Normalize(in))
		if err != nil {
			return nil, err
		}
		wl = next
	}
	return wl, nil
}

// ValidID reports whether id looks like an upstream identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Contains reports whether id is tracked.
func (w WatchList) Contains(id string) bool {
	for _, v := range w {
		if v == id {
			return true
		}
	}
	return false
}

// Add returns a copy of w with id appended.
func (w WatchList) Add(id string) (WatchList, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if w.Contains(id) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicate, id)
	}
	out := make(WatchList, len(w), len(w)+1)
	copy(out, w)
	return append(out, id), nil
}

// Remove returns a copy of w without id.
func (w WatchList) Remove(id string) (WatchList, error) {
	out := make(WatchList, 0, len(w))
	for _, v := range w {
		if v != id {
			out = append(out, v)
		}
	}
	if len(out) == len(w) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return out, nil
}

// Clone returns an independent copy of w.
func (w WatchList) Clone() WatchList {
	if w == nil {
		return nil
	}
	out := make(WatchList, len(w))
	copy(out, w)
	return out
}

// Set returns the ids as a lookup set.
func (w WatchList) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(w))
	for _, v := range w {
		set[v] = struct{}{}
	}
	return set
}
