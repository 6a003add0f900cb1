package testutil

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	id "doccontrol/pkg/domain"
	"doccontrol/pkg/requestcontext"
)

// NewPrincipal builds a member principal with fresh ids.
func NewPrincipal() id.Principal {
	return id.Principal{
		UserID:   id.UserID(uuid.New()),
		TenantID: id.TenantID(uuid.New()),
		Role:     id.RoleMember,
	}
}

// NewAdmin builds an admin principal in the given tenant.
func NewAdmin(tenantID id.TenantID) id.Principal {
	return id.Principal{
		UserID:   id.UserID(uuid.New()),
		TenantID: tenantID,
		Role:     id.RoleAdmin,
	}
}

// MemberOf builds a member principal in the given tenant.
func MemberOf(tenantID id.TenantID, perms ...id.Permission) id.Principal {
	return id.Principal{
		UserID:      id.UserID(uuid.New()),
		TenantID:    tenantID,
		Role:        id.RoleMember,
		Permissions: perms,
	}
}

// WithPrincipal simulates the auth middleware for handler tests.
func WithPrincipal(req *http.Request, p id.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
