package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockwise/stockwise-core/internal/audit"
	"github.com/stockwise/stockwise-core/internal/auth"
)

// signInRequest is the request body for POST /auth/sign-in.
type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleSignIn authenticates a username/password pair and returns a token pair.
//
// Unknown usernames and wrong passwords produce the same 401 body; the real
// reason never leaves the server.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, auth.ErrInvalidRequest.Error())
		return
	}

	pair, err := s.auth.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidRequest):
			writeBadRequest(w, auth.ErrInvalidRequest.Error())
		case errors.Is(err, auth.ErrAuthenticationFailed):
			s.recordAuthEvent(audit.ActionDenied, req.Username, map[string]any{"operation": "sign_in"})
			writeUnauthorized(w, auth.ErrAuthenticationFailed.Error())
		default:
			s.logger.Error("sign-in failed", "error", err)
			writeInternalError(w, "sign-in failed")
		}
		return
	}

	s.recordAuthEvent(audit.ActionSignIn, pair.Username, nil)
	writeJSON(w, http.StatusOK, pair)
}

// handleRefreshToken exchanges a refresh token for a brand-new token pair.
//
// The refresh token travels in the Authorization header (with or without the
// Bearer prefix); the username is bound in the path and must match the token
// subject.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	rawToken := r.Header.Get("Authorization")

	pair, err := s.auth.Refresh(r.Context(), username, rawToken, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidRequest):
			writeBadRequest(w, auth.ErrInvalidRequest.Error())
		case errors.Is(err, auth.ErrWrongTokenKind):
			s.recordAuthEvent(audit.ActionDenied, username, map[string]any{"operation": "refresh", "reason": "wrong token kind"})
			writeUnauthorized(w, "refresh token required")
		case errors.Is(err, auth.ErrTokenExpired):
			s.recordAuthEvent(audit.ActionDenied, username, map[string]any{"operation": "refresh", "reason": "token expired"})
			writeUnauthorized(w, "token expired")
		case errors.Is(err, auth.ErrAuthenticationFailed):
			s.recordAuthEvent(audit.ActionDenied, username, map[string]any{"operation": "refresh"})
			writeUnauthorized(w, auth.ErrAuthenticationFailed.Error())
		default:
			s.logger.Error("refresh failed", "username", username, "error", err)
			writeInternalError(w, "refresh failed")
		}
		return
	}

	s.recordAuthEvent(audit.ActionRefresh, pair.Username, nil)
	writeJSON(w, http.StatusOK, pair)
}

// handleMe returns the verified identity bound to the request.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeUnauthorized(w, "authorization required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username":    identity.Subject,
		"authorities": identity.Authorities,
	})
}

// recordAuthEvent writes an authentication event to the audit trail and, when
// connected, to the time-series store.
func (s *Server) recordAuthEvent(action, username string, details map[string]any) {
	s.auditLog(action, "token", "", username, details)
	if s.influx != nil {
		s.influx.WriteAuthEvent(action, username)
	}
}
