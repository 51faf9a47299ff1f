package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// EventType represents the kind of an inbound server event
type EventType string

const (
	EventCurrentState        EventType = "current_state"
	EventGameStarted         EventType = "game_started"
	EventTeamSelected        EventType = "team_selected"
	EventTeamVoteRecorded    EventType = "team_vote_recorded"
	EventMissionVoteRecorded EventType = "mission_vote_recorded"
	EventPlayerSpeaking      EventType = "player_speaking"
	EventAssassinationResult EventType = "assassination_result"
	EventGameReset           EventType = "game_reset"
)

// Envelope is the wire shape of every pushed event
type Envelope struct {
	Event     EventType       `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp float64         `json:"timestamp,omitempty"`
}

// Event is one of the inbound event variants below. The set is closed:
// anything the client does not recognise decodes to UnknownEvent.
type Event interface {
	Type() EventType
	isEvent()
}

// CurrentState carries a full snapshot
type CurrentState struct {
	Snapshot GameSnapshot
}

// GameStarted carries each player's secret role message
type GameStarted struct {
	SecretMessages map[string]string `json:"secret_messages"`
}

// TeamSelected announces the leader's proposed team
type TeamSelected struct {
	Team []string `json:"team"`
}

// TeamVoteStatus is the outcome reported after a team ballot
type TeamVoteStatus string

const (
	TeamVotePending TeamVoteStatus = "vote_recorded"
	TeamApproved    TeamVoteStatus = "team_approved"
	TeamRejected    TeamVoteStatus = "team_rejected"
	TeamVoteEvilWin TeamVoteStatus = "evil_win"
)

// TeamVoteRecorded reports a team ballot and, once everyone voted, the outcome
type TeamVoteRecorded struct {
	Status         TeamVoteStatus `json:"status"`
	RemainingVotes int            `json:"remaining_votes"`
	ApproveCount   int            `json:"approve_count,omitempty"`
	FailedVotes    int            `json:"failed_votes,omitempty"`
	NextLeader     string         `json:"next_leader,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// MissionVoteStatus is the outcome reported after a mission card
type MissionVoteStatus string

const (
	MissionVotePending MissionVoteStatus = "vote_recorded"
	MissionCompleted   MissionVoteStatus = "mission_completed"
	GoodMissionWin     MissionVoteStatus = "good_mission_win"
	MissionVoteEvilWin MissionVoteStatus = "evil_win"
)

// MissionVoteRecorded reports a mission card and, once the team played, the outcome
type MissionVoteRecorded struct {
	Status         MissionVoteStatus `json:"status"`
	MissionResult  *bool             `json:"mission_result,omitempty"`
	GoodWins       int               `json:"good_wins,omitempty"`
	EvilWins       int               `json:"evil_wins,omitempty"`
	RemainingVotes int               `json:"remaining_votes,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// PlayerSpeaking carries one utterance by a player
type PlayerSpeaking struct {
	Speaker string `json:"speaker"`
	Message string `json:"message"`
	Role    Role   `json:"role,omitempty"`
	IsAI    bool   `json:"is_ai"`
}

// AssassinationStatus is the final outcome after the assassin names a target
type AssassinationStatus string

const (
	AssassinationEvilWin AssassinationStatus = "evil_win"
	AssassinationGoodWin AssassinationStatus = "good_win"
)

// AssassinationResult ends the game
type AssassinationResult struct {
	Status AssassinationStatus `json:"status"`
	Target string              `json:"target,omitempty"`
	Reason string              `json:"reason"`
}

// GameReset tells every client the server dropped its game
type GameReset struct{}

// UnknownEvent is any event kind this client does not handle
type UnknownEvent struct {
	Kind EventType
	Data json.RawMessage
}

func (CurrentState) Type() EventType        { return EventCurrentState }
func (GameStarted) Type() EventType         { return EventGameStarted }
func (TeamSelected) Type() EventType        { return EventTeamSelected }
func (TeamVoteRecorded) Type() EventType    { return EventTeamVoteRecorded }
func (MissionVoteRecorded) Type() EventType { return EventMissionVoteRecorded }
func (PlayerSpeaking) Type() EventType      { return EventPlayerSpeaking }
func (AssassinationResult) Type() EventType { return EventAssassinationResult }
func (GameReset) Type() EventType           { return EventGameReset }
func (e UnknownEvent) Type() EventType      { return e.Kind }

func (CurrentState) isEvent()        {}
func (GameStarted) isEvent()         {}
func (TeamSelected) isEvent()        {}
func (TeamVoteRecorded) isEvent()    {}
func (MissionVoteRecorded) isEvent() {}
func (PlayerSpeaking) isEvent()      {}
func (AssassinationResult) isEvent() {}
func (GameReset) isEvent()           {}
func (UnknownEvent) isEvent()        {}

// SortedSecrets returns the secret messages ordered by player name
func (e GameStarted) SortedSecrets() []string {
	var names []string
	for name := range e.SecretMessages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DecodeEvent parses a raw frame into its event variant
func DecodeEvent(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env.Decode()
}

// Decode parses the envelope's payload into its event variant
func (env Envelope) Decode() (Event, error) {
	var (
		event Event
		err   error
	)

	switch env.Event {
	case EventCurrentState:
		var e CurrentState
		err = unmarshalData(env.Data, &e.Snapshot)
		event = e
	case EventGameStarted:
		var e GameStarted
		err = unmarshalData(env.Data, &e)
		event = e
	case EventTeamSelected:
		var e TeamSelected
		err = unmarshalData(env.Data, &e)
		event = e
	case EventTeamVoteRecorded:
		var e TeamVoteRecorded
		err = unmarshalData(env.Data, &e)
		event = e
	case EventMissionVoteRecorded:
		var e MissionVoteRecorded
		err = unmarshalData(env.Data, &e)
		event = e
	case EventPlayerSpeaking:
		var e PlayerSpeaking
		err = unmarshalData(env.Data, &e)
		event = e
	case EventAssassinationResult:
		var e AssassinationResult
		err = unmarshalData(env.Data, &e)
		event = e
	case EventGameReset:
		event = GameReset{}
	default:
		event = UnknownEvent{Kind: env.Event, Data: env.Data}
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return event, nil
}

// unmarshalData treats a missing or null payload as the zero value
func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
