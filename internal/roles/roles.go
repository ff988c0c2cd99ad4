// Package roles decides what a community member may do based on their
// membership role.
package roles

type Role string
type Action string

const (
	RoleLeader Role = "LEADER"
	RoleMember Role = "MEMBER"
)

const (
	ActionReadFeed    Action = "read_feed"
	ActionPost        Action = "post"
	ActionAcknowledge Action = "acknowledge"
	ActionCreateEvent Action = "create_event"
	ActionInvite      Action = "invite"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleLeader:
		return true
	case RoleMember:
		return action == ActionReadFeed || action == ActionAcknowledge
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleLeader, RoleMember:
		return Role(role)
	default:
		return RoleMember
	}
}
