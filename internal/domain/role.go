package domain

// Role represents how a connection participates in a room
type Role string

const (
	RolePlayer     Role = "PLAYER"
	RoleSpectator  Role = "SPECTATOR"
	RoleGameMaster Role = "GAME_MASTER"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// CanAnswer returns true if the role submits answers
func (r Role) CanAnswer() bool {
	return r == RolePlayer
}
