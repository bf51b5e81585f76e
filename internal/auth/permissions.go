package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermRoomRead         Permission = "room:read"
	PermRoomUpdateStatus Permission = "room:update_status"
	PermRoomManage       Permission = "room:manage"
	PermBreakerRead      Permission = "breaker:read"
	PermBreakerControl   Permission = "breaker:control"
	PermBreakerManage    Permission = "breaker:manage"
	PermHubConfigure     Permission = "hub:configure"
	PermAuditRead        Permission = "audit:read"
	PermUserManage       Permission = "user:manage"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermRoomRead,
		PermRoomUpdateStatus,
		PermRoomManage,
		PermBreakerRead,
		PermBreakerControl,
		PermBreakerManage,
		PermHubConfigure,
		PermAuditRead,
		PermUserManage,
	},
	RoleManager: {
		PermRoomRead,
		PermRoomUpdateStatus,
		PermRoomManage,
		PermBreakerRead,
		PermBreakerControl,
		PermBreakerManage,
		PermAuditRead,
	},
	RoleReceptionist: {
		PermRoomRead,
		PermRoomUpdateStatus,
		PermBreakerRead,
	},
	RoleHousekeeping: {
		PermRoomRead,
		PermRoomUpdateStatus,
	},
	RoleMaintenance: {
		PermRoomRead,
		PermBreakerRead,
		PermBreakerControl,
	},
}

// HasPermission reports whether role grants perm. Unknown roles get nothing.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to role.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
