package middleware

import (
	stderrors "errors"
	"net/http"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/http/response"
)

// Authenticate resolves the bearer token into a Principal on the request
// context. Admin checks are left to the services.
func Authenticate(v *auth.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := v.FromHeader(r.Header.Get("Authorization"))
			if err != nil {
				details := "invalid token"
				if stderrors.Is(err, auth.ErrMissingToken) {
					details = "missing bearer token"
				}
				response.Error(w, errors.NewUnauthenticatedError(details))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}
