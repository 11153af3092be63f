package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/kirillfir/user-service/internal/audit"
	"github.com/kirillfir/user-service/internal/auth"
	"github.com/kirillfir/user-service/internal/infrastructure/influxdb"
)

// Payload constraints.
const (
	// dateLayout is the wire format of birth dates.
	dateLayout = "2006-01-02"

	// maxPasswordLength keeps passwords within the bcrypt input limit.
	maxPasswordLength = 72

	maxFullNameLength = 200
)

// registerRequest is the request body for POST /api/auth/register.
type registerRequest struct {
	FullName  string `json:"fullName"`
	BirthDate string `json:"birthDate"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate checks required fields and formats.
func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, maxFullNameLength)),
		validation.Field(&r.BirthDate, validation.Required, validation.Date(dateLayout)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, maxPasswordLength)),
	)
}

// loginRequest is the request body for POST /api/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// loginResponse is the response body for POST /api/auth/login.
type loginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
}

// accountResponse is the public view of an account. The password hash is
// never part of it.
type accountResponse struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	BirthDate string    `json:"birth_date"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newAccountResponse(a *auth.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		FullName:  a.FullName,
		BirthDate: a.BirthDate.Format(dateLayout),
		Email:     a.Email,
		Role:      a.Role,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// handleRegister creates an active account with the user role.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.Email = auth.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	birthDate, err := time.Parse(dateLayout, req.BirthDate)
	if err != nil {
		writeValidationError(w, "birthDate: must be a valid date")
		return
	}

	account, err := s.auth.Register(r.Context(), auth.RegisterInput{
		FullName:  req.FullName,
		BirthDate: birthDate,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			writeConflict(w, "email already in use")
			return
		}
		s.logger.Error("register failed", "error", err)
		writeInternalError(w, "failed to register account")
		return
	}

	id := strconv.FormatInt(account.ID, 10)
	s.logger.Info("account registered", "user_id", account.ID)
	s.audit.Record(audit.ActionRegister, id, id, map[string]any{"email": account.Email})

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    account.ID,
		"email": account.Email,
	})
}

// handleLogin checks credentials and issues a bearer token.
//
// Unknown email and wrong password share one response. A blocked account
// with the correct password gets 403 and no token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	email := auth.NormalizeEmail(req.Email)
	result, err := s.auth.Login(r.Context(), email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			s.audit.Record(audit.ActionLoginFailed, "", "", map[string]any{"email": email, "reason": "invalid_credentials"})
			s.recordAuthOutcome(influxdb.OutcomeBadPassword, http.StatusUnauthorized, stageLogin, start)
			writeUnauthorized(w, "invalid email or password")
		case errors.Is(err, auth.ErrAccountBlocked):
			s.audit.Record(audit.ActionLoginFailed, "", "", map[string]any{"email": email, "reason": "blocked"})
			s.recordAuthOutcome(influxdb.OutcomeBlocked, http.StatusForbidden, stageLogin, start)
			writeForbidden(w, "account blocked")
		default:
			s.logger.Error("login failed", "error", err)
			s.recordAuthOutcome(influxdb.OutcomeError, http.StatusInternalServerError, stageLogin, start)
			writeInternalError(w, "internal server error")
		}
		return
	}

	id := strconv.FormatInt(result.Account.ID, 10)
	s.audit.Record(audit.ActionLogin, id, id, nil)
	s.recordAuthOutcome(influxdb.OutcomeSuccess, http.StatusOK, stageLogin, start)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresIn: int(result.ExpiresIn.Seconds()),
	})
}

// handleMe returns the account of the authenticated caller.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "token required")
		return
	}

	account, err := s.users.GetByID(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			writeUnauthorized(w, "account not found")
			return
		}
		s.logger.Error("get current account failed", "error", err)
		writeInternalError(w, "failed to get account")
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}
