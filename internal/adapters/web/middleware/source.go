package middleware

import (
	"net/http"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/audit"
)

// AuditSourceMiddleware tags audit entries written while serving a request.
func AuditSourceMiddleware(source domain.AuditSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(audit.WithSource(r.Context(), source)))
		})
	}
}
