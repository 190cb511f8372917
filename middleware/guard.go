package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/oroscan/oroauth"
)

// SessionFromContext returns the session attached by a guard.
func SessionFromContext(r *http.Request) (*oroauth.Session, bool) {
	return oroauth.SessionFromContext(r.Context())
}

// RequireSession guards page routes: a request without a valid session is
// redirected (303) to the engine's login path. The token is read from the
// session cookie first, then from an Authorization bearer header.
func RequireSession(engine *oroauth.Engine) func(http.Handler) http.Handler {
	cookieName := ""
	if engine != nil {
		cookieName = engine.Config().Guard.CookieName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}

			token, _ := TokenFromRequest(r, cookieName)
			sess, err := engine.RequireSession(r.Context(), token)
			if err != nil {
				location := "/"
				if redirect, ok := oroauth.AsRedirect(err); ok {
					location = redirect.Location
				}
				http.Redirect(w, r, location, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(oroauth.WithSession(r.Context(), sess)))
		})
	}
}

// RequireBearer guards API routes: a request without a valid bearer token
// gets 401.
func RequireBearer(engine *oroauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := engine.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(oroauth.WithSession(r.Context(), sess)))
		})
	}
}

// ClientIP attaches the request's remote address to the context so audit
// events carry it.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(oroauth.WithClientIP(r.Context(), host)))
	})
}

// TokenFromRequest extracts a session token from the named cookie or, failing
// that, from an Authorization bearer header.
func TokenFromRequest(r *http.Request, cookieName string) (string, bool) {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, true
		}
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
