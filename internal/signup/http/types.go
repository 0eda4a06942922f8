package http

import (
	"time"

	"github.com/pixelgrid/signupmill/internal/signup/domain"
)

// ErrorResponse is the error envelope every handler returns.
type ErrorResponse struct {
	// Error is a short machine-readable code (e.g. "invalid_request").
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error.
	ErrorDescription string `json:"error_description"`
}

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	Database string `json:"database"`
}

// StartSignupsRequest asks for a batch of signup attempts.
type StartSignupsRequest struct {
	Count int `json:"count"`
}

// StartSignupsResponse acknowledges a scheduled batch.
type StartSignupsResponse struct {
	Requested int   `json:"requested"`
	InFlight  int64 `json:"in_flight"`
}

// AccountResponse is one account in a listing. Tokens are deliberately not
// included here; they have their own endpoint.
type AccountResponse struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name"`
	Status           string     `json:"status"`
	VerificationLink *string    `json:"verification_link,omitempty"`
	ErrorLog         *string    `json:"error_log,omitempty"`
	TokenExpiresAt   *time.Time `json:"token_expires_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AccountListResponse is the full listing plus a status breakdown.
type AccountListResponse struct {
	Accounts []AccountResponse `json:"accounts"`
	Counts   map[string]int64  `json:"counts"`
}

// TokensResponse carries a verified account's captured session tokens.
type TokensResponse struct {
	AccessToken    string     `json:"access_token"`
	RefreshToken   string     `json:"refresh_token"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

func accountResponse(a domain.Account) AccountResponse {
	return AccountResponse{
		ID:               a.ID,
		Email:            a.Email,
		FullName:         a.FullName,
		Status:           string(a.Status),
		VerificationLink: a.VerificationLink,
		ErrorLog:         a.ErrorLog,
		TokenExpiresAt:   a.TokenExpiresAt,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}
