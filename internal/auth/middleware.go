package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/jwtauth/v5"
)

// Route targets for the guards.
const (
	LoginPath = "/login"
	HomePath  = "/gifticon"
	APIPrefix = "/api"
)

type subjectKey struct{}

// WithSubject returns ctx carrying the authenticated subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the subject stored by RequireAuth.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey{}).(string)
	return subject, ok && subject != ""
}

func tokenFromRequest(r *http.Request) string {
	if token := jwtauth.TokenFromHeader(r); token != "" {
		return token
	}
	return jwtauth.TokenFromCookie(r)
}

func isAPIRequest(r *http.Request) bool {
	return r.URL.Path == APIPrefix || strings.HasPrefix(r.URL.Path, APIPrefix+"/")
}

// RequireAuth lets authenticated requests through with their subject in the
// context. API calls without a valid token get a JSON 401 and the client
// redirects; page requests are redirected to the login page, remembering
// where they were going.
func RequireAuth(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := m.Authenticate(r.Context(), tokenFromRequest(r))
			if err != nil {
				if isAPIRequest(r) {
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("WWW-Authenticate", "Bearer")
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"error":"authentication required"}`))
					return
				}
				target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

// RedirectIfAuthenticated sends signed-in users away from the login and
// registration pages.
func RedirectIfAuthenticated(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := tokenFromRequest(r); token != "" {
				if _, err := m.Authenticate(r.Context(), token); err == nil {
					http.Redirect(w, r, HomePath, http.StatusSeeOther)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
