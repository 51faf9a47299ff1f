package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Roster size bounds for starting a game
const (
	MinPlayers = 5
	MaxPlayers = 10
)

// Roster is the pending list of players registered before the game starts
type Roster struct {
	entries []RosterEntry
}

// NewRoster creates an empty roster
func NewRoster() *Roster {
	return &Roster{entries: make([]RosterEntry, 0, MaxPlayers)}
}

// NewRosterFrom creates a roster from preloaded entries, e.g. a roster file.
// The entries are not checked until Validate.
func NewRosterFrom(entries []RosterEntry) *Roster {
	return &Roster{entries: slices.Clone(entries)}
}

// Add registers a player. AI entries without an engine get the default one.
func (r *Roster) Add(name string, isAI bool, engine string) (RosterEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RosterEntry{}, ErrEmptyName
	}

	if r.Contains(name) {
		return RosterEntry{}, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	if len(r.entries) >= MaxPlayers {
		return RosterEntry{}, ErrRosterFull
	}

	entry := RosterEntry{Name: name, IsAI: isAI}
	if isAI {
		if engine == "" {
			engine = DefaultEngine
		}
		if !slices.Contains(Engines, engine) {
			return RosterEntry{}, fmt.Errorf("%w: %s", ErrUnknownEngine, engine)
		}
		entry.AIEngine = engine
	}

	r.entries = append(r.entries, entry)
	return entry, nil
}

// Remove drops the entry at index
func (r *Roster) Remove(index int) (RosterEntry, error) {
	if index < 0 || index >= len(r.entries) {
		return RosterEntry{}, ErrRosterIndex
	}

	entry := r.entries[index]
	r.entries = slices.Delete(r.entries, index, index+1)
	return entry, nil
}

// Contains checks if a name is already registered
func (r *Roster) Contains(name string) bool {
	for _, e := range r.entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Len returns the number of registered players
func (r *Roster) Len() int {
	return len(r.entries)
}

// Entries returns a copy of the registered players in order
func (r *Roster) Entries() []RosterEntry {
	return slices.Clone(r.entries)
}

// AINames returns the names of the AI entries in roster order
func (r *Roster) AINames() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if e.IsAI {
			names = append(names, e.Name)
		}
	}
	return names
}

// CanStart reports whether Validate would accept the roster
func (r *Roster) CanStart() bool {
	return r.Validate() == nil
}

// Validate checks the roster is startable: size in bounds, names unique and
// non-empty. Rosters from NewRosterFrom skip Add, so the name rules are
// checked again here.
func (r *Roster) Validate() error {
	if n := len(r.entries); n < MinPlayers || n > MaxPlayers {
		return fmt.Errorf("%w: have %d", ErrRosterSize, n)
	}

	seen := make(map[string]bool, len(r.entries))
	for _, e := range r.entries {
		if strings.TrimSpace(e.Name) == "" {
			return ErrEmptyName
		}
		if seen[e.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// Reset empties the roster
func (r *Roster) Reset() {
	r.entries = r.entries[:0]
}
