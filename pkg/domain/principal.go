package domain

import "slices"

// Role is the coarse-grained role carried by an authenticated principal.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Permission names a fine-grained capability granted on top of the role.
type Permission string

const (
	PermissionBroadcast         Permission = "notifications:broadcast"
	PermissionManageRules       Permission = "distribution:manage"
	PermissionPurgeDocuments    Permission = "documents:purge"
	PermissionViewDeletedRecord Permission = "documents:view_deleted"
)

// Principal is the resolved caller identity. It is passed explicitly into every
// core operation instead of being looked up from ambient session state.
//
// A zero Principal means "no authenticated user"; services reject it with
// CodeUnauthorized before touching any store.
type Principal struct {
	UserID      UserID       `json:"user_id"`
	TenantID    TenantID     `json:"tenant_id"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Authenticated reports whether the principal identifies a user inside a tenant.
func (p Principal) Authenticated() bool {
	return !p.UserID.IsNil() && !p.TenantID.IsNil()
}

// IsAdmin reports whether the principal carries the tenant admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Can reports whether the principal holds perm, either explicitly or through
// the admin role.
func (p Principal) Can(perm Permission) bool {
	return p.IsAdmin() || slices.Contains(p.Permissions, perm)
}
