package domain

import "errors"

// Validation errors, reported before any request reaches the server
var (
	ErrEmptyName      = errors.New("player name cannot be empty")
	ErrDuplicateName  = errors.New("player name already exists")
	ErrRosterSize     = errors.New("roster must have between 5 and 10 players")
	ErrRosterFull     = errors.New("roster is full")
	ErrUnknownEngine  = errors.New("unknown ai engine")
	ErrRosterIndex    = errors.New("roster index out of range")
	ErrSelectionSize  = errors.New("selection does not match the required team size")
	ErrNoTarget       = errors.New("exactly one assassination target must be selected")
	ErrNoActingPlayer = errors.New("no acting player designated")
	ErrUnknownPlayer  = errors.New("player not found")
	ErrInvalidVote    = errors.New("invalid vote")
	ErrInvalidPhase   = errors.New("invalid action for current phase")
	ErrEmptyMessage   = errors.New("message cannot be empty")
)
