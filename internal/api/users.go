package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hotel/internal/audit"
	"github.com/nerrad567/gray-logic-hotel/internal/auth"
)

// ─── Request/Response Types ────────────────────────────────────────

type createUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

type updateUserRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Role        *string `json:"role,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListUsers returns all staff accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "user management not configured")
		return
	}

	users, err := s.users.List(r.Context())
	if err != nil {
		s.writeServiceError(w, "list users", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleCreateUser creates a staff account. Role defaults to receptionist.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "user management not configured")
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" || req.DisplayName == "" {
		writeBadRequest(w, "username, password, and display_name are required")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		s.writeServiceError(w, "create user", err)
		return
	}

	role := auth.RoleReceptionist
	if req.Role != "" {
		var err error
		if role, err = auth.ParseRole(req.Role); err != nil {
			s.writeServiceError(w, "create user", err)
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeServiceError(w, "create user", err)
		return
	}

	user := &auth.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedBy:    callerID(r),
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		s.writeServiceError(w, "create user", err)
		return
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "role", user.Role, "created_by", user.CreatedBy)
	s.auditLog(r, audit.ActionCreate, audit.EntityUser, user.ID, map[string]any{
		"username": user.Username,
		"role":     user.Role,
	})

	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "user management not configured")
		return
	}

	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser patches a user's mutable fields. Callers cannot
// deactivate themselves or change their own role.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "user management not configured")
		return
	}

	id := chi.URLParam(r, "id")
	self := id == callerID(r)

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "update user", err)
		return
	}

	if req.IsActive != nil && !*req.IsActive && self {
		writeForbidden(w, "cannot deactivate your own account")
		return
	}

	details := map[string]any{}
	if req.Role != nil {
		role, err := auth.ParseRole(*req.Role)
		if err != nil {
			s.writeServiceError(w, "update user", err)
			return
		}
		if self && role != user.Role {
			writeForbidden(w, "cannot change your own role")
			return
		}
		user.Role = role
		details["role"] = role
	}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
		details["is_active"] = *req.IsActive
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		s.writeServiceError(w, "update user", err)
		return
	}

	s.logger.Info("user updated", "user_id", id, "updated_by", callerID(r))
	s.auditLog(r, audit.ActionUpdate, audit.EntityUser, id, details)

	writeJSON(w, http.StatusOK, user)
}

// handleChangePassword lets any authenticated user replace their own password.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeBadRequest(w, "current_password and new_password are required")
		return
	}

	userID := callerID(r)
	err := s.auth.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeForbidden(w, "current password is incorrect")
		return
	}
	if err != nil {
		s.writeServiceError(w, "change password", err)
		return
	}

	s.auditLog(r, audit.ActionPassword, audit.EntityUser, userID, nil)
	w.WriteHeader(http.StatusNoContent)
}
