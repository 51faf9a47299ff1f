package domain

// AI engines the server knows how to drive
const (
	EngineGPT35  = "gpt-3.5"
	EngineGPT4   = "gpt-4"
	EngineClaude = "claude"

	DefaultEngine = EngineGPT35
)

// Engines lists the accepted AI engine tags
var Engines = []string{EngineGPT35, EngineGPT4, EngineClaude}

// Player is a seat in a running game as reported by the server
type Player struct {
	Name     string `json:"name"`
	IsAI     bool   `json:"is_ai"`
	Role     Role   `json:"role,omitempty"`
	AIEngine string `json:"ai_engine,omitempty"`
}

// RosterEntry is a pre-game registration record sent with the start request
type RosterEntry struct {
	Name     string `json:"name"`
	IsAI     bool   `json:"is_ai"`
	AIEngine string `json:"ai_engine,omitempty"`
}

// PlayerNames returns the identities of the given players in order
func PlayerNames(players []Player) []string {
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Name)
	}
	return names
}

// AINames returns the identities of the AI players in order
func AINames(players []Player) []string {
	names := make([]string, 0, len(players))
	for _, p := range players {
		if p.IsAI {
			names = append(names, p.Name)
		}
	}
	return names
}
