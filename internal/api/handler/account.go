package handler

import (
	"errors"
	"net/http"

	mw "github.com/leyden/paysandbox/internal/api/middleware"
	"github.com/leyden/paysandbox/internal/api/request"
	"github.com/leyden/paysandbox/internal/api/response"
	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/model"
)

type Account struct {
	svc      *core.AccountService
	sessions *core.SessionService
}

func NewAccount(svc *core.AccountService, sessions *core.SessionService) *Account {
	return &Account{svc: svc, sessions: sessions}
}

// Signup godoc
//
//	@Summary		Register a dashboard account
//	@Description	Creates an account from an email and password. Passwords are hashed with argon2id and never stored or returned in plaintext.
//	@Tags			Accounts
//	@Param			body	body		request.Signup	true	"Account details"
//	@Success		201		{object}	model.Account
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		409		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/signup [post]
func (h *Account) Signup(w http.ResponseWriter, r *http.Request) {
	var req request.Signup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err := h.svc.GetByEmail(r.Context(), req.Email)
	if err == nil {
		response.WriteError(w, http.StatusConflict, "email already registered")
		return
	}
	if !errors.Is(err, core.ErrNotFound) {
		response.WriteServiceError(w, err)
		return
	}

	acct, err := h.svc.Create(r.Context(), req.Email, req.Password)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, acct)
}

// Login godoc
//
//	@Summary		Log in to the dashboard
//	@Description	Verifies an email/password pair and returns a session token. Unknown email and wrong password produce the same error.
//	@Tags			Accounts
//	@Param			body	body		request.Login	true	"Credentials"
//	@Success		200		{object}	handler.loginResponse
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		401		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/login [post]
func (h *Account) Login(w http.ResponseWriter, r *http.Request) {
	var req request.Login
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	acct, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	token, err := h.sessions.Issue(acct)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, loginResponse{Token: token, Account: acct})
}

type loginResponse struct {
	Token   string         `json:"token"`
	Account *model.Account `json:"account"`
}

// Me godoc
//
//	@Summary		Get the authenticated account
//	@Tags			Accounts
//	@Security		SessionAuth
//	@Success		200	{object}	model.Account
//	@Failure		401	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/me [get]
func (h *Account) Me(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetSession(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	acct, err := h.svc.GetByID(r.Context(), claims.Subject)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, acct)
}

// ChangePassword godoc
//
//	@Summary		Change the account password
//	@Description	Requires the current password; the new password replaces it immediately. Existing sessions stay valid until they expire.
//	@Tags			Accounts
//	@Security		SessionAuth
//	@Param			body	body	request.ChangePassword	true	"Current and new password"
//	@Success		204
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		401	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/me/password [put]
func (h *Account) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetSession(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	var req request.ChangePassword
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.svc.Authenticate(r.Context(), claims.Email, req.CurrentPassword); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	if err := h.svc.ChangePassword(r.Context(), claims.Subject, req.NewPassword); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
