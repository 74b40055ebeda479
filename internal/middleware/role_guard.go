package middleware

import (
	"fmt"
	"net/http"
)

// RequireRole refuses requests whose authenticated account does not
// hold one of the given roles. Must run after APIKeyAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc := AccountFromCtx(r.Context())
			if acc == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if !allowed[acc.Role] {
				http.Error(w, fmt.Sprintf(`{"error":"role %q may not perform this action"}`, acc.Role), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
