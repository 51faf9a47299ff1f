package domain

import (
	"reflect"
	"slices"
)

// MissionCount is the number of missions in a game
const MissionCount = 5

// GameStatus is the overall lifecycle state of the server's game
type GameStatus string

const (
	StatusWaiting  GameStatus = "waiting"
	StatusPlaying  GameStatus = "playing"
	StatusFinished GameStatus = "finished"
)

// MissionResult is the tally of one completed mission
type MissionResult struct {
	Mission      int      `json:"mission"`
	Success      bool     `json:"success"`
	SuccessCount int      `json:"success_count"`
	FailCount    int      `json:"fail_count"`
	Team         []string `json:"team,omitempty"`
}

// MissionConfig describes the mission currently being staffed
type MissionConfig struct {
	MissionNumber int `json:"mission_number"`
	TeamSize      int `json:"team_size"`
	FailsNeeded   int `json:"fails_needed"`
}

// GameSnapshot is the authoritative state of the game at one instant.
// It is always replaced wholesale, never patched from event payloads.
type GameSnapshot struct {
	Status          GameStatus      `json:"state"`
	Phase           ServerPhase     `json:"phase"`
	CurrentRound    int             `json:"current_round"`
	CurrentMission  int             `json:"current_mission"`
	MissionResults  []MissionResult `json:"mission_results"`
	CurrentLeader   string          `json:"current_leader,omitempty"`
	CurrentTeam     []string        `json:"current_team"`
	FailedTeamVotes int             `json:"failed_team_votes"`
	Players         []Player        `json:"players"`
	MissionConfig   *MissionConfig  `json:"mission_config,omitempty"`
	Winner          Side            `json:"winner,omitempty"`
}

// IsActive reports whether the game view (rather than setup) should be shown
func (s *GameSnapshot) IsActive() bool {
	return s != nil && (s.Status == StatusPlaying || s.Status == StatusFinished)
}

// DerivePhase returns the local phase this snapshot calls for
func (s *GameSnapshot) DerivePhase() Phase {
	if s == nil {
		return PhaseSetup
	}

	switch s.Status {
	case StatusPlaying:
		return s.Phase.LocalPhase()
	case StatusFinished:
		return PhaseResult
	default:
		return PhaseSetup
	}
}

// Equal reports whether two snapshots carry identical content
func (s *GameSnapshot) Equal(other *GameSnapshot) bool {
	return reflect.DeepEqual(s, other)
}

// HasPlayer checks if the identity belongs to a seated player
func (s *GameSnapshot) HasPlayer(name string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}

// PlayerNames returns the seated player identities in seat order
func (s *GameSnapshot) PlayerNames() []string {
	if s == nil {
		return nil
	}
	return PlayerNames(s.Players)
}

// TeamSize returns the required team size for the current mission, or zero
// when the snapshot does not carry the mission configuration
func (s *GameSnapshot) TeamSize() int {
	if s == nil || s.MissionConfig == nil {
		return 0
	}
	return s.MissionConfig.TeamSize
}

// Valid checks the snapshot's internal invariants: unique identities, and
// a current team drawn from the seated players
func (s *GameSnapshot) Valid() bool {
	seen := make(map[string]bool, len(s.Players))
	for _, p := range s.Players {
		if p.Name == "" || seen[p.Name] {
			return false
		}
		seen[p.Name] = true
	}
	for _, name := range s.CurrentTeam {
		if !seen[name] {
			return false
		}
	}
	return true
}

// AssassinationTargets lists the players an assassin may name. Once roles
// are revealed only good-side players qualify; otherwise every seat does.
func (s *GameSnapshot) AssassinationTargets() []string {
	if s == nil {
		return nil
	}

	targets := make([]string, 0, len(s.Players))
	revealed := false
	for _, p := range s.Players {
		if p.Role.IsRevealed() {
			revealed = true
		}
		if p.Role.Side() == SideGood {
			targets = append(targets, p.Name)
		}
	}
	if !revealed {
		return s.PlayerNames()
	}
	return targets
}

// MissionState is the display status of one mission slot
type MissionState string

const (
	MissionPending MissionState = "pending"
	MissionCurrent MissionState = "current"
	MissionSuccess MissionState = "success"
	MissionFailed  MissionState = "fail"
)

// MissionSlot is one entry of the mission progress track
type MissionSlot struct {
	Mission      int          `json:"mission"`
	State        MissionState `json:"state"`
	SuccessCount int          `json:"successCount,omitempty"`
	FailCount    int          `json:"failCount,omitempty"`
}

// MissionProgress lays out all five missions with their results so far
func (s *GameSnapshot) MissionProgress() []MissionSlot {
	slots := make([]MissionSlot, 0, MissionCount)
	for i := 1; i <= MissionCount; i++ {
		slot := MissionSlot{Mission: i, State: MissionPending}
		if s != nil {
			idx := slices.IndexFunc(s.MissionResults, func(r MissionResult) bool { return r.Mission == i })
			switch {
			case idx >= 0:
				r := s.MissionResults[idx]
				slot.State = MissionFailed
				if r.Success {
					slot.State = MissionSuccess
				}
				slot.SuccessCount = r.SuccessCount
				slot.FailCount = r.FailCount
			case i == s.CurrentMission:
				slot.State = MissionCurrent
			}
		}
		slots = append(slots, slot)
	}
	return slots
}
