package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockwise/stockwise-core/internal/audit"
	"github.com/stockwise/stockwise-core/internal/auth"
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

type createUserRequest struct {
	Username    string   `json:"username"`
	FullName    string   `json:"full_name"`
	Password    string   `json:"password"`
	Authorities []string `json:"authorities,omitempty"`
}

type updateUserRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Enabled  *bool   `json:"enabled,omitempty"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

type grantAuthorityRequest struct {
	Authority string `json:"authority"`
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userRepo.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleCreateUser creates a new user account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) { //nolint:gocognit // user creation: validation + password hashing + authority grants
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}
	if !auth.IsValidUsername(req.Username) {
		writeBadRequest(w, "username may only contain letters, digits, dots, underscores, and hyphens")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	identity := identityFromContext(r.Context())

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	user := &auth.User{
		Username:     req.Username,
		FullName:     req.FullName,
		PasswordHash: hash,
		Enabled:      true,
		CreatedBy:    identity.Subject,
	}

	if err := s.userRepo.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrUsernameExists) {
			writeConflict(w, "username already exists")
			return
		}
		s.logger.Error("create user failed", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	for _, authority := range req.Authorities {
		if err := s.userRepo.Grant(r.Context(), user.ID, authority); err != nil {
			s.logger.Error("grant authority failed", "user_id", user.ID, "authority", authority, "error", err)
			writeInternalError(w, "user created but granting authorities failed")
			return
		}
	}
	user.Authorities = req.Authorities
	if user.Authorities == nil {
		user.Authorities = []string{}
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "created_by", identity.Subject)
	s.auditLog(audit.ActionCreate, "user", user.ID, identity.Subject, map[string]any{
		"username": user.Username,
	})

	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser returns a single user by ID, with current authorities.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := s.userRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user failed", "error", err)
		writeInternalError(w, "failed to get user")
		return
	}

	authorities, err := s.userRepo.AuthoritiesByUsername(r.Context(), user.Username)
	if err != nil {
		s.logger.Error("get user authorities failed", "error", err)
		writeInternalError(w, "failed to get user")
		return
	}
	user.Authorities = authorities

	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser modifies a user's mutable fields.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	identity := identityFromContext(r.Context())

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.userRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user for update failed", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	// Self-protection: cannot disable yourself
	if req.Enabled != nil && !*req.Enabled && user.Username == identity.Subject {
		writeForbidden(w, "cannot disable your own account")
		return
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Enabled != nil {
		user.Enabled = *req.Enabled
	}

	if err := s.userRepo.Update(r.Context(), user); err != nil {
		s.logger.Error("update user failed", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	s.logger.Info("user updated", "user_id", id, "updated_by", identity.Subject)
	s.auditLog(audit.ActionUpdate, "user", id, identity.Subject, nil)

	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes a user account.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	identity := identityFromContext(r.Context())

	user, err := s.userRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user for delete failed", "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	// Cannot delete yourself
	if user.Username == identity.Subject {
		writeForbidden(w, "cannot delete your own account")
		return
	}

	if err := s.userRepo.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete user failed", "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	s.logger.Info("user deleted", "user_id", id, "deleted_by", identity.Subject)
	s.auditLog(audit.ActionDelete, "user", id, identity.Subject, map[string]any{
		"username": user.Username,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleSetUserPassword replaces a user's password.
//
// Tokens already issued remain valid until expiry; a password change takes
// effect at the next sign-in.
func (s *Server) handleSetUserPassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	identity := identityFromContext(r.Context())

	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to set password")
		return
	}

	if err := s.userRepo.UpdatePassword(r.Context(), id, hash); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("set password failed", "error", err)
		writeInternalError(w, "failed to set password")
		return
	}

	s.logger.Info("user password changed", "user_id", id, "changed_by", identity.Subject)
	s.auditLog(audit.ActionUpdate, "user", id, identity.Subject, map[string]any{
		"field": "password",
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

// handleGrantAuthority attaches an authority to a user. The grant is visible
// in newly issued tokens and at the gate on the next request.
func (s *Server) handleGrantAuthority(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	identity := identityFromContext(r.Context())

	var req grantAuthorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Authority == "" {
		writeBadRequest(w, "authority is required")
		return
	}

	if err := s.userRepo.Grant(r.Context(), id, req.Authority); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("grant authority failed", "error", err)
		writeInternalError(w, "failed to grant authority")
		return
	}

	s.logger.Info("authority granted", "user_id", id, "authority", req.Authority, "granted_by", identity.Subject)
	s.auditLog(audit.ActionUpdate, "user", id, identity.Subject, map[string]any{
		"granted": req.Authority,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "authority_granted"})
}

// handleRevokeAuthority removes an authority from a user.
func (s *Server) handleRevokeAuthority(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	authority := chi.URLParam(r, "authority")
	identity := identityFromContext(r.Context())

	// Self-protection: an admin cannot revoke their own admin authority.
	if authority == auth.AdminAuthority {
		user, err := s.userRepo.GetByID(r.Context(), id)
		if err == nil && user.Username == identity.Subject {
			writeForbidden(w, "cannot revoke your own admin authority")
			return
		}
	}

	if err := s.userRepo.Revoke(r.Context(), id, authority); err != nil {
		if errors.Is(err, auth.ErrAuthorityNotGranted) {
			writeNotFound(w, "authority not granted to this user")
			return
		}
		s.logger.Error("revoke authority failed", "error", err)
		writeInternalError(w, "failed to revoke authority")
		return
	}

	s.logger.Info("authority revoked", "user_id", id, "authority", authority, "revoked_by", identity.Subject)
	s.auditLog(audit.ActionUpdate, "user", id, identity.Subject, map[string]any{
		"revoked": authority,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleListAuthorities returns all known authority names.
func (s *Server) handleListAuthorities(w http.ResponseWriter, r *http.Request) {
	authorities, err := s.userRepo.ListAuthorities(r.Context())
	if err != nil {
		s.logger.Error("list authorities failed", "error", err)
		writeInternalError(w, "failed to list authorities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authorities": authorities,
		"count":       len(authorities),
	})
}
