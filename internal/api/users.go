package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kirillfir/user-service/internal/audit"
	"github.com/kirillfir/user-service/internal/auth"
)

// Pagination bounds for GET /api/users.
const (
	defaultUserListLimit = 20
	maxUserListLimit     = 100
)

type changeRoleRequest struct {
	Role auth.Role `json:"role"`
}

// blockRequest only accepts is_active=false: accounts can be blocked
// through the API but never re-activated.
type blockRequest struct {
	IsActive *bool `json:"is_active"`
}

// handleGetUser returns a single account. Callers may read their own
// account; admins may read any.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	id, ok := parseAccountID(w, r)
	if !ok {
		return
	}

	if err := auth.Authorize(identity, auth.PermAccountRead, id); err != nil {
		writeForbidden(w, "access denied")
		return
	}

	account, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user failed", "error", err, "user_id", id)
		writeInternalError(w, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

// handleListUsers returns a page of accounts ordered by id.
//
// Query parameters:
//   - limit: page size (default 20, max 100; non-positive or invalid means default)
//   - offset: rows to skip (default 0; negative or invalid means 0)
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultUserListLimit
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, maxUserListLimit)
	}
	offset := 0
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		offset = n
	}

	accounts, err := s.users.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	items := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, newAccountResponse(&accounts[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// handleChangeRole sets the role of any account. Admin only: the router
// rejects non-admins before the id or body are looked at.
func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	id, ok := parseAccountID(w, r)
	if !ok {
		return
	}

	var req changeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !auth.IsValidRole(req.Role) {
		writeBadRequest(w, "role must be admin or user")
		return
	}

	account, err := s.users.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("change role failed", "error", err, "user_id", id)
		writeInternalError(w, "failed to change role")
		return
	}

	s.logger.Info("account role changed", "user_id", id, "role", req.Role, "changed_by", identity.ID)
	s.audit.Record(audit.ActionRoleChange, strconv.FormatInt(id, 10), strconv.FormatInt(identity.ID, 10),
		map[string]any{"role": req.Role})

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

// handleBlockUser deactivates an account. Callers may block their own
// account; admins may block any.
func (s *Server) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	id, ok := parseAccountID(w, r)
	if !ok {
		return
	}

	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.IsActive == nil {
		writeBadRequest(w, "is_active (boolean) is required")
		return
	}
	if *req.IsActive {
		writeBadRequest(w, "only blocking is supported: is_active must be false")
		return
	}

	if err := auth.Authorize(identity, auth.PermAccountBlock, id); err != nil {
		writeForbidden(w, "access denied")
		return
	}

	account, err := s.users.Deactivate(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("block user failed", "error", err, "user_id", id)
		writeInternalError(w, "failed to block user")
		return
	}

	s.logger.Info("account blocked", "user_id", id, "blocked_by", identity.ID)
	s.audit.Record(audit.ActionBlock, strconv.FormatInt(id, 10), strconv.FormatInt(identity.ID, 10), nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User blocked",
		"user":    newAccountResponse(account),
	})
}

// parseAccountID reads the {id} URL parameter. It writes a 400 and returns
// false unless the id is a positive integer.
func parseAccountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid user id")
		return 0, false
	}
	return id, true
}
