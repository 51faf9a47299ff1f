package domain

// TeamVote is a ballot on a proposed team
type TeamVote string

const (
	VoteApprove TeamVote = "approve"
	VoteReject  TeamVote = "reject"
)

// Valid reports whether the ballot is one the server accepts
func (v TeamVote) Valid() bool {
	return v == VoteApprove || v == VoteReject
}

// MissionVote is a card played by a team member on a mission
type MissionVote string

const (
	VoteSuccess MissionVote = "success"
	VoteFail    MissionVote = "fail"
)

// Valid reports whether the card is one the server accepts
func (v MissionVote) Valid() bool {
	return v == VoteSuccess || v == VoteFail
}

// Outcome is the final result shown on the result panel
type Outcome struct {
	Winner Side   `json:"winner"`
	Reason string `json:"reason,omitempty"`
}
