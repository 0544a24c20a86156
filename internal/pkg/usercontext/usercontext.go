package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext represents the authenticated caller of a request
type UserContext struct {
	UserID       string `json:"user_id"`
	FullName     string `json:"full_name"`
	MobileNumber string `json:"mobile_number"`
	Role         string `json:"role"`
	IsLoggedIn   bool   `json:"is_logged_in"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(LocalsKey).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// SetUserContext stores ctx on the request
func SetUserContext(c *fiber.Ctx, ctx UserContext) {
	c.Locals(LocalsKey, ctx)
	c.Locals(KeyUserID, ctx.UserID)
	c.Locals(KeyRole, ctx.Role)
	c.Locals(KeyFullName, ctx.FullName)
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin()
}

// GetUserID returns the current user's ID, or "" if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}

// IsAdmin reports whether the role may act on other users' records
func (u UserContext) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// HasRole reports whether the caller holds one of roles
func (u UserContext) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
