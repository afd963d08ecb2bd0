// Package chatstate keeps per-player chat preferences in memory.
package chatstate

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Mode is a player's chat scope.
type Mode int

const (
	// Local is the default: lines reach players within the local radius.
	Local Mode = iota
	// Global lines reach everyone online.
	Global
)

func (m Mode) String() string {
	if m == Global {
		return "GLOBAL"
	}
	return "LOCAL"
}

// Tag is the short prefix shown in front of a chat line.
func (m Mode) Tag() string {
	if m == Global {
		return "[G]"
	}
	return "[L]"
}

// ParseMode accepts "global"/"g" and "local"/"l" in any case.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global", "g":
		return Global, true
	case "local", "l":
		return Local, true
	}
	return Local, false
}

// Store maps player UUIDs to chat mode and debug flag. Entries are only
// written by explicit calls; an absent entry reads as the default. The
// zero value is ready to use.
type Store struct {
	modes sync.Map // uuid.UUID -> Mode
	debug sync.Map // uuid.UUID -> bool
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Mode returns the player's chat mode, Local if never set.
func (s *Store) Mode(id uuid.UUID) Mode {
	if v, ok := s.modes.Load(id); ok {
		return v.(Mode)
	}
	return Local
}

// SetMode records an explicit mode switch.
func (s *Store) SetMode(id uuid.UUID, m Mode) {
	s.modes.Store(id, m)
}

// ResetMode puts the player back on Local, e.g. on rejoin.
func (s *Store) ResetMode(id uuid.UUID) {
	s.modes.Delete(id)
}

// Debug reports whether the player has debug output enabled.
func (s *Store) Debug(id uuid.UUID) bool {
	v, ok := s.debug.Load(id)
	return ok && v.(bool)
}

// ToggleDebug flips the player's debug flag and returns the new value.
func (s *Store) ToggleDebug(id uuid.UUID) bool {
	for {
		cur, loaded := s.debug.LoadOrStore(id, true)
		if !loaded {
			return true
		}
		next := !cur.(bool)
		if s.debug.CompareAndSwap(id, cur, next) {
			return next
		}
	}
}

// Forget drops everything stored for a player.
func (s *Store) Forget(id uuid.UUID) {
	s.modes.Delete(id)
	s.debug.Delete(id)
}
