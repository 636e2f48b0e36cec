package handler

import (
	"errors"
	"net/http"

	"github.com/leyden/paysandbox/internal/api/request"
	"github.com/leyden/paysandbox/internal/api/response"
	"github.com/leyden/paysandbox/internal/core"
)

type PasswordReset struct {
	accounts *core.AccountService
	resets   *core.PasswordResetService
}

func NewPasswordReset(accounts *core.AccountService, resets *core.PasswordResetService) *PasswordReset {
	return &PasswordReset{accounts: accounts, resets: resets}
}

// Request godoc
//
//	@Summary		Request a password reset
//	@Description	Acknowledges the request without revealing whether the email maps to an account. Reset tokens are handed out by an operator (see the reset-token subcommand), never through this endpoint.
//	@Tags			Password Reset
//	@Param			body	body		request.RequestPasswordReset	true	"Account email"
//	@Success		202		{object}	map[string]string
//	@Failure		400		{object}	response.ErrorResponse
//	@Router			/password-reset/request [post]
func (h *PasswordReset) Request(w http.ResponseWriter, r *http.Request) {
	var req request.RequestPasswordReset
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The same 202 regardless of whether the account exists.
	response.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Confirm godoc
//
//	@Summary		Confirm a password reset
//	@Description	Consumes a reset token and replaces the account password. An unknown email fails exactly like a bad token.
//	@Tags			Password Reset
//	@Param			body	body	request.ConfirmPasswordReset	true	"Email, token, and new password"
//	@Success		204
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/password-reset/confirm [post]
func (h *PasswordReset) Confirm(w http.ResponseWriter, r *http.Request) {
	var req request.ConfirmPasswordReset
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	acct, err := h.accounts.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			response.WriteServiceError(w, core.ErrResetTokenInvalid)
			return
		}
		response.WriteServiceError(w, err)
		return
	}

	// Check the token before paying for the argon2 hash of the new
	// password.
	if err := h.resets.VerifyToken(r.Context(), acct.ID, req.Token); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	hash, err := h.accounts.HashPassword(r.Context(), req.NewPassword)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	if err := h.resets.Consume(r.Context(), acct.ID, req.Token, hash); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
