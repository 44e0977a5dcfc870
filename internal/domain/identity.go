package domain

// Role is the operator role resolved by the upstream auth layer. The hub
// itself never checks roles; the write path has already been authorized
// before an announce happens.
type Role string

const (
	RoleCheckIn   Role = "checkin"
	RoleTechnical Role = "technical"
	RoleWeight    Role = "weight"
	RoleOfficial  Role = "official"
	RoleAdmin     Role = "admin"
)

// Identity is the caller identity supplied by the external auth collaborator.
type Identity struct {
	UserID string
	Name   string
	Role   Role
}

// Can reports whether the identity's role grants the required role.
// Officials and admins can perform every station role.
func (i Identity) Can(required Role) bool {
	if i.Role == RoleAdmin || i.Role == RoleOfficial {
		return true
	}
	return i.Role == required
}
