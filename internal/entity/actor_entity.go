package entity

type Role string

const (
	RoleUser  Role = "user"
	RolePro   Role = "pro"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated party whose perspective drives unread
// counts and visibility rules.
type Actor struct {
	Id   string `json:"id"`
	Role Role   `json:"role"`
}

// SenderRole maps an actor role onto the role names messages are
// stamped with on the wire. Admins never author chat messages.
func (r Role) SenderRole() SenderRole {
	if r == RolePro {
		return SenderRolePro
	}
	return SenderRoleUser
}

type Participant struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName"`
	Photo       string `json:"photo,omitempty"`
}
