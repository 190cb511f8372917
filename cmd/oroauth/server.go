package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/oroscan/oroauth"
	"github.com/oroscan/oroauth/metrics/export/prometheus"
	"github.com/oroscan/oroauth/middleware"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// newServer wires the HTTP routes.
//
//	POST /login   JSON or form {identifier, password}; sets the session cookie
//	POST /logout  revokes the presented session and clears the cookie
//	GET  /home    guarded; redirects to the login path without a session
//	GET  /metrics Prometheus exposition
func newServer(engine *oroauth.Engine, logger *slog.Logger) (http.Handler, error) {
	metrics, err := prometheus.Handler(engine)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(engine, logger))
	mux.HandleFunc("POST /logout", logoutHandler(engine, logger))
	mux.Handle("GET /home", middleware.RequireSession(engine)(http.HandlerFunc(homeHandler)))
	mux.Handle("GET /metrics", metrics)

	return middleware.ClientIP(mux), nil
}

func loginHandler(engine *oroauth.Engine, logger *slog.Logger) http.HandlerFunc {
	cfg := engine.Config()
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeLogin(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "BadRequest", Message: "malformed request body"})
			return
		}

		sess, err := engine.Authenticate(r.Context(), oroauth.Credentials{
			Identifier: req.Identifier,
			Password:   req.Password,
		})
		if err != nil {
			writeLoginError(w, r, logger, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cfg.Guard.CookieName,
			Value:    sess.Token,
			Path:     "/",
			Expires:  sess.ExpiresAt,
			HttpOnly: true,
			Secure:   cfg.Environment != oroauth.EnvDevelopment,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, loginResponse{
			UserID:    sess.UserID,
			Username:  sess.Username,
			ExpiresAt: sess.ExpiresAt,
		})
	}
}

func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			return loginRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return loginRequest{}, err
	}
	req.Identifier = r.PostForm.Get("identifier")
	req.Password = r.PostForm.Get("password")
	return req, nil
}

func writeLoginError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if authErr, ok := oroauth.AsAuthError(err); ok {
		status := http.StatusUnauthorized
		if authErr.Kind == oroauth.KindMissingCredentials {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Kind: string(authErr.Kind), Message: authErr.Message})
		return
	}

	if errors.Is(err, oroauth.ErrLoginThrottled) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Kind: "Throttled", Message: "Too many failed attempts, try again later"})
		return
	}

	if errors.Is(err, oroauth.ErrIdentityStoreUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "Unavailable", Message: "Sign-in is temporarily unavailable"})
		return
	}

	logger.ErrorContext(r.Context(), "login failed", slog.Any("error", err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "Internal", Message: "internal error"})
}

func logoutHandler(engine *oroauth.Engine, logger *slog.Logger) http.HandlerFunc {
	cfg := engine.Config()
	return func(w http.ResponseWriter, r *http.Request) {
		if token, ok := middleware.TokenFromRequest(r, cfg.Guard.CookieName); ok {
			if err := engine.Logout(r.Context(), token); err != nil {
				logger.ErrorContext(r.Context(), "logout failed", slog.Any("error", err))
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "Unavailable", Message: "logout could not be recorded"})
				return
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cfg.Guard.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Environment != oroauth.EnvDevelopment,
			SameSite: http.SameSiteLaxMode,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":  sess.UserID,
		"username": sess.Username,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
