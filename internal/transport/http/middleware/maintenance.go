package middleware

import (
	"context"
	"net/http"
	"strings"

	"leavedesk/internal/transport/http/api"
)

type MaintenanceChecker interface {
	MaintenanceEnabled(ctx context.Context) bool
}

// Maintenance locks the API for everyone but superusers while maintenance
// mode is on. Login stays open so an admin can get in to turn it off.
func Maintenance(checker MaintenanceChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.MaintenanceEnabled(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			if strings.HasSuffix(r.URL.Path, "/auth/login") {
				next.ServeHTTP(w, r)
				return
			}
			if user, ok := GetUser(r.Context()); ok && user.IsSuperuser() {
				next.ServeHTTP(w, r)
				return
			}
			api.Fail(w, http.StatusServiceUnavailable, "maintenance", "system is under maintenance", GetRequestID(r.Context()))
		})
	}
}
