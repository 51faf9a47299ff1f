package domain

// Role represents a player's secret role, revealed by the server
type Role string

const (
	RoleMerlin       Role = "merlin"
	RolePercival     Role = "percival"
	RoleLoyalServant Role = "loyal_servant"
	RoleMorgana      Role = "morgana"
	RoleAssassin     Role = "assassin"
	RoleOberon       Role = "oberon"
	RoleMordred      Role = "mordred"
	RoleMinion       Role = "minion"
)

// Side is the team a role plays for
type Side string

const (
	SideGood Side = "good"
	SideEvil Side = "evil"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// Side returns the team the role belongs to. Unrevealed roles have no side.
func (r Role) Side() Side {
	switch r {
	case RoleMerlin, RolePercival, RoleLoyalServant:
		return SideGood
	case RoleMorgana, RoleAssassin, RoleOberon, RoleMordred, RoleMinion:
		return SideEvil
	default:
		return ""
	}
}

// IsRevealed returns true once the server has disclosed the role
func (r Role) IsRevealed() bool {
	return r != ""
}
