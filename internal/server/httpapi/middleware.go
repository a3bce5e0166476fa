package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/server/auth"
)

// Authenticator turns an Authorization header into an auth.Outcome.
type Authenticator interface {
	Authenticate(header string) auth.Outcome
}

// Authenticate records the request's auth.Outcome in its context. It never
// rejects: a missing or bad token just yields auth.Anonymous.
func Authenticate(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome := a.Authenticate(r.Header.Get(common.AuthorizationHeaderName))
			next.ServeHTTP(w, r.WithContext(auth.WithOutcome(r.Context(), outcome)))
		})
	}
}

// RequireAuthenticated answers 401 unless Authenticate stored an
// auth.Authenticated outcome.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.SubjectFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
