package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAgent      = "agent"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// CanActForAnyLine reports whether the role may operate consoles other than its own line.
func CanActForAnyLine(role string) bool { return role == RoleSupervisor || role == RoleAdmin }
