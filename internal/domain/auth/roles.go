package auth

import "github.com/google/uuid"

const (
	RoleEmployee  = "employee"
	RoleManager   = "manager"
	RoleHRAdmin   = "hr_admin"
	RoleSuperuser = "superuser"
)

// UserContext is the per-request identity resolved from the bearer token
// plus a fresh user-row read (single-session check included).
type UserContext struct {
	UserID        uuid.UUID
	Username      string
	FullName      string
	Role          string
	SeniorManager bool
	SessionID     string
}

func ValidRole(role string) bool {
	switch role {
	case RoleEmployee, RoleManager, RoleHRAdmin, RoleSuperuser:
		return true
	}
	return false
}

// IsApprover reports whether the role may act on requests assigned to it.
func (u UserContext) IsApprover() bool {
	switch u.Role {
	case RoleManager, RoleHRAdmin, RoleSuperuser:
		return true
	}
	return false
}

// IsAdmin covers HR administration surfaces (policy, settings, users).
func (u UserContext) IsAdmin() bool {
	return u.Role == RoleHRAdmin || u.Role == RoleSuperuser
}

func (u UserContext) IsSuperuser() bool {
	return u.Role == RoleSuperuser
}

// CanActFor reports whether the identity may operate on records owned by
// the given employee: the owner themselves or a superuser.
func (u UserContext) CanActFor(employeeID uuid.UUID) bool {
	return u.UserID == employeeID || u.IsSuperuser()
}
