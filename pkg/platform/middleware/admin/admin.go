// Package admin gates routes on a principal's role or permission.
package admin

import (
	"log/slog"
	"net/http"

	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/httputil"
	"doccontrol/pkg/requestcontext"
)

// RequirePermission rejects requests whose principal lacks perm. Admins hold
// every permission. Must run after auth.RequireAuth.
func RequirePermission(perm id.Permission, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := requestcontext.Principal(ctx)
			if !principal.Authenticated() {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !principal.Can(perm) {
				logger.WarnContext(ctx, "forbidden - missing permission",
					"permission", string(perm),
					"user_id", principal.UserID.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "operation requires "+string(perm)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
