package usercontext

// Locals keys set by the auth middleware
const (
	LocalsKey   = "USER_CONTEXT"
	KeyUserID   = "user_id"
	KeyRole     = "role"
	KeyFullName = "full_name"
)

// Roles carried in access tokens
const (
	RoleCitizen    = "citizen"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)
