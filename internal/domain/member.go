package domain

import "time"

// MemberRole is a member's role within a team.
type MemberRole string

const (
	MemberRoleLeader MemberRole = "leader"
	MemberRoleMember MemberRole = "member"
)

// Member is an authenticated participant of exactly one team.
type Member struct {
	ID        string
	TeamID    string
	Name      string
	Role      MemberRole
	Token     string
	IsActive  bool
	CreatedAt time.Time
}

// IsLeader returns true if the member may create and change tasks.
func (m *Member) IsLeader() bool {
	return m.Role == MemberRoleLeader
}

// Team groups members and their tasks.
type Team struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
