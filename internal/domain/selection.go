package domain

import "slices"

// SelectionSet is the set of identities chosen on the active panel.
// Member order is kept for display only; membership is what counts.
type SelectionSet struct {
	members      []string
	requiredSize int
}

// NewSelectionSet creates an empty selection needing requiredSize members
func NewSelectionSet(requiredSize int) *SelectionSet {
	return &SelectionSet{requiredSize: requiredSize}
}

// Toggle adds the identity if absent and removes it if present.
// Returns true if the identity is a member afterwards.
func (s *SelectionSet) Toggle(id string) bool {
	if i := slices.Index(s.members, id); i >= 0 {
		s.members = slices.Delete(s.members, i, i+1)
		return false
	}
	s.members = append(s.members, id)
	return true
}

// Select replaces the whole selection with a single identity
func (s *SelectionSet) Select(id string) {
	s.members = append(s.members[:0], id)
}

// Contains checks if the identity is selected
func (s *SelectionSet) Contains(id string) bool {
	return slices.Contains(s.members, id)
}

// Members returns a copy of the selected identities
func (s *SelectionSet) Members() []string {
	return slices.Clone(s.members)
}

// Len returns the number of selected identities
func (s *SelectionSet) Len() int {
	return len(s.members)
}

// RequiredSize returns the cardinality needed to confirm
func (s *SelectionSet) RequiredSize() int {
	return s.requiredSize
}

// CanConfirm reports whether the panel's confirm action is enabled
func (s *SelectionSet) CanConfirm() bool {
	return s.requiredSize > 0 && len(s.members) == s.requiredSize
}

// Clear empties the selection
func (s *SelectionSet) Clear() {
	s.members = nil
}

// Rebind clears the selection and sets a new required size, used when a
// different panel takes ownership of the set
func (s *SelectionSet) Rebind(requiredSize int) {
	s.members = nil
	s.requiredSize = requiredSize
}

// SetRequiredSize changes the required size without touching membership,
// used when the mission configuration arrives after the panel opened
func (s *SelectionSet) SetRequiredSize(requiredSize int) {
	s.requiredSize = requiredSize
}
