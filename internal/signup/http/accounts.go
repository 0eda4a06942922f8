package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pixelgrid/signupmill/internal/signup/store"
	"github.com/pixelgrid/signupmill/pkg/httpx"
)

// AccountsHandler serves persisted signup outcomes.
type AccountsHandler struct {
	Store  store.Store
	Logger *slog.Logger
}

// HandleList godoc
//
//	@Summary		List Accounts
//	@Description	Returns every account the workers have produced, newest first,
//	@Description	with a per-status breakdown. Tokens are not included here.
//	@Tags			Accounts
//	@Produce		json
//	@Success		200	{object}	AccountListResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/v1/accounts [get].
func (h *AccountsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.Accounts().ListAccounts(r.Context())
	if err != nil {
		h.Logger.Error("failed to list accounts", slog.Any("error", err))
		httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "failed to list accounts",
		})
		return
	}

	counts, err := h.Store.Accounts().CountByStatus(r.Context())
	if err != nil {
		h.Logger.Error("failed to count accounts", slog.Any("error", err))
		httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "failed to count accounts",
		})
		return
	}

	resp := AccountListResponse{
		Accounts: make([]AccountResponse, 0, len(accounts)),
		Counts:   make(map[string]int64, len(counts)),
	}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, accountResponse(a))
	}
	for status, n := range counts {
		resp.Counts[string(status)] = n
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleTokens godoc
//
//	@Summary		Get Account Tokens
//	@Description	Returns the captured session token pair for a verified account.
//	@Tags			Accounts
//	@Produce		json
//	@Param			id	path		int	true	"account id"
//	@Success		200	{object}	TokensResponse
//	@Failure		400	{object}	ErrorResponse	"invalid id"
//	@Failure		404	{object}	ErrorResponse	"unknown account"
//	@Failure		409	{object}	ErrorResponse	"account not verified"
//	@Router			/v1/accounts/{id}/tokens [get].
func (h *AccountsHandler) HandleTokens(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "account id must be an integer",
		})
		return
	}

	account, err := h.Store.Accounts().GetAccountByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteJSON(w, http.StatusNotFound, ErrorResponse{
			Error:            "not_found",
			ErrorDescription: "no account with that id",
		})
		return
	}
	if err != nil {
		h.Logger.Error("failed to load account", slog.Int64("account_id", id), slog.Any("error", err))
		httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "failed to load account",
		})
		return
	}

	if !account.Verified() {
		httpx.WriteJSON(w, http.StatusConflict, ErrorResponse{
			Error:            "not_verified",
			ErrorDescription: "account has not completed verification",
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, TokensResponse{
		AccessToken:    *account.AccessToken,
		RefreshToken:   *account.RefreshToken,
		TokenExpiresAt: account.TokenExpiresAt,
	})
}
