// Package auth resolves the bearer token on each request into a
// domain.Principal and stores it in the request context.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/httputil"
	"doccontrol/pkg/requestcontext"
)

// JWTValidator validates a raw bearer token and returns its claims.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is the transport-neutral view of an access token.
type JWTClaims struct {
	UserID      string
	TenantID    string
	Role        string
	Permissions []string
}

// Principal converts claims into a domain principal. Malformed ids are
// rejected rather than defaulted.
func (c *JWTClaims) Principal() (id.Principal, error) {
	userID, err := id.ParseUserID(c.UserID)
	if err != nil {
		return id.Principal{}, err
	}
	tenantID, err := id.ParseTenantID(c.TenantID)
	if err != nil {
		return id.Principal{}, err
	}
	perms := make([]id.Permission, 0, len(c.Permissions))
	for _, p := range c.Permissions {
		perms = append(perms, id.Permission(p))
	}
	role := id.Role(c.Role)
	if role == "" {
		role = id.RoleMember
	}
	return id.Principal{
		UserID:      userID,
		TenantID:    tenantID,
		Role:        role,
		Permissions: perms,
	}, nil
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			principal, err := claims.Principal()
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed claims",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims"))
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
