package app

import "avalon/internal/domain"

// View is everything a renderer needs to draw the client at one instant
type View struct {
	Phase        domain.Phase         `json:"phase"`
	GameActive   bool                 `json:"gameActive"`
	Snapshot     *domain.GameSnapshot `json:"snapshot,omitempty"`
	Missions     []domain.MissionSlot `json:"missions,omitempty"`
	Roster       []domain.RosterEntry `json:"roster"`
	CanStart     bool                 `json:"canStart"`
	ActingPlayer string               `json:"actingPlayer,omitempty"`
	Options      []string             `json:"options,omitempty"`
	Selection    []string             `json:"selection"`
	RequiredSize int                  `json:"requiredSize"`
	CanConfirm   bool                 `json:"canConfirm"`
	ProposedTeam []string             `json:"proposedTeam,omitempty"`
	Outcome      *domain.Outcome      `json:"outcome,omitempty"`
	Chat         []domain.ChatEntry   `json:"chat"`
}

// Renderer draws the client. It is only called from the session loop.
type Renderer interface {
	// Render redraws panels from a full view
	Render(view View)

	// Chat appends one line to the chat log
	Chat(entry domain.ChatEntry)

	// Alert shows a user-visible failure
	Alert(message string)
}

// NopRenderer discards everything
type NopRenderer struct{}

func (NopRenderer) Render(View)           {}
func (NopRenderer) Chat(domain.ChatEntry) {}
func (NopRenderer) Alert(string)          {}

// Renderers fans output out to several renderers in order
type Renderers []Renderer

func (rs Renderers) Render(view View) {
	for _, r := range rs {
		r.Render(view)
	}
}

func (rs Renderers) Chat(entry domain.ChatEntry) {
	for _, r := range rs {
		r.Chat(entry)
	}
}

func (rs Renderers) Alert(message string) {
	for _, r := range rs {
		r.Alert(message)
	}
}
