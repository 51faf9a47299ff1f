package domain

// Phase represents the interaction panel the local client is driving
type Phase string

const (
	PhaseSetup         Phase = "SETUP"          // Building the roster, no game on the server
	PhaseTeamSelection Phase = "TEAM_SELECTION" // Leader picks the mission team
	PhaseTeamVoting    Phase = "TEAM_VOTING"    // Everyone approves or rejects the proposed team
	PhaseMissionVoting Phase = "MISSION_VOTING" // Team members play success or fail
	PhaseAssassination Phase = "ASSASSINATION"  // Assassin names a target after three good missions
	PhaseResult        Phase = "RESULT"         // Game over, only reset leaves this phase
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true for the phase that only a reset can leave
func (p Phase) IsTerminal() bool {
	return p == PhaseResult
}

// CanTransitionTo checks if a transition from current phase to target phase is valid
func (p Phase) CanTransitionTo(target Phase) bool {
	// Reset is always allowed
	if target == PhaseSetup {
		return true
	}

	validTransitions := map[Phase][]Phase{
		PhaseSetup:         {PhaseTeamSelection, PhaseTeamVoting, PhaseMissionVoting, PhaseAssassination, PhaseResult},
		PhaseTeamSelection: {PhaseTeamVoting, PhaseMissionVoting, PhaseAssassination, PhaseResult},
		PhaseTeamVoting:    {PhaseTeamSelection, PhaseMissionVoting, PhaseAssassination, PhaseResult},
		PhaseMissionVoting: {PhaseTeamSelection, PhaseTeamVoting, PhaseAssassination, PhaseResult},
		PhaseAssassination: {PhaseTeamSelection, PhaseTeamVoting, PhaseMissionVoting, PhaseResult},
		PhaseResult:        {},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}

// ServerPhase is the phase tag carried in a server snapshot
type ServerPhase string

const (
	ServerPhaseInit           ServerPhase = "init"
	ServerPhaseRoleAssignment ServerPhase = "role_assignment"
	ServerPhaseSecretInfo     ServerPhase = "secret_info"
	ServerPhaseTeamSelection  ServerPhase = "team_selection"
	ServerPhaseTeamVote       ServerPhase = "team_vote"
	ServerPhaseMissionVote    ServerPhase = "mission_vote"
	ServerPhaseMissionResult  ServerPhase = "mission_result"
	ServerPhaseAssassination  ServerPhase = "assassination"
	ServerPhaseGameEnd        ServerPhase = "game_end"
)

// LocalPhase maps a server phase tag onto the panel that serves it.
// Tags without a panel of their own (role reveal, mission tally) land on
// team selection, which is what the server moves to next.
func (sp ServerPhase) LocalPhase() Phase {
	switch sp {
	case ServerPhaseTeamVote:
		return PhaseTeamVoting
	case ServerPhaseMissionVote:
		return PhaseMissionVoting
	case ServerPhaseAssassination:
		return PhaseAssassination
	case ServerPhaseGameEnd:
		return PhaseResult
	default:
		return PhaseTeamSelection
	}
}
