package middleware

import (
	"net/http"

	"attendance/internal/session"
)

// RequireAuth lets authenticated requests through. Anyone else is sent to
// loginURL, and the page they asked for is remembered so that a successful
// login can return them there.
//
// It expects session.Store.Middleware to have run first.
func RequireAuth(store *session.Store, loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session.FromContext(r.Context()).IsAuthenticated() {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodGet {
				store.RememberRedirect(w, r, r.URL.RequestURI())
			}
			http.Redirect(w, r, loginURL, http.StatusSeeOther)
		})
	}
}

// RequireSession is RequireAuth for routes that are not pages of their own,
// such as fragments loaded by a page. Nothing is remembered, so a login
// never returns to them.
func RequireSession(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !session.FromContext(r.Context()).IsAuthenticated() {
				http.Redirect(w, r, loginURL, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
