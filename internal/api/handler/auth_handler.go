package handler

import (
	"errors"
	"net/http"
	"timetrack/internal/api/view"
	"timetrack/internal/app/service"
	"timetrack/internal/common"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type AuthHandler struct {
	authService *service.AuthService
	cookies     *SessionCookies
}

func NewAuthHandler(authService *service.AuthService, cookies *SessionCookies) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Get("/logout", h.logout)
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupRequest
	if err := bind(w, r, &req, map[string]*string{"username": &req.Username, "password": &req.Password}); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrConflict):
			common.RespondWithError(w, http.StatusBadRequest, "User with that username already exists")
		default:
			common.RespondWithDomainError(w, err, "An error occurred during user registration")
		}
		return
	}

	if err := h.cookies.SetSession(w, resp.SessionID); err != nil {
		log.Error().Err(err).Msg("failed to encode session cookie")
	}
	h.respondAuthenticated(w, r, http.StatusCreated, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := bind(w, r, &req, map[string]*string{"username": &req.Username, "password": &req.Password}); err != nil {
		h.loginFailed(w, r, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		code := common.HTTPStatusFromError(err)
		if code >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("login failed")
			common.RespondWithError(w, code, "An error occurred during login")
			return
		}
		h.loginFailed(w, r, code, err.Error())
		return
	}

	if err := h.cookies.SetSession(w, resp.SessionID); err != nil {
		log.Error().Err(err).Msg("failed to encode session cookie")
	}
	h.cookies.SetToken(w, resp.Token)
	h.respondAuthenticated(w, r, http.StatusOK, resp)
}

// loginFailed answers JSON clients with the error and sends browsers back to
// the index page.
func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, code int, message string) {
	if view.WantsJSON(r) {
		common.RespondWithError(w, code, message)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), h.cookies.SessionID(r)); err != nil {
		common.RespondWithDomainError(w, err, "An error occurred during logout")
		return
	}
	h.cookies.Clear(w)

	if view.WantsJSON(r) {
		common.RespondWithJSON(w, http.StatusOK, view.Page{})
		return
	}
	view.RenderIndex(w, http.StatusOK, view.Page{})
}

func (h *AuthHandler) respondAuthenticated(w http.ResponseWriter, r *http.Request, jsonStatus int, resp *service.AuthResponse) {
	if view.WantsJSON(r) {
		common.RespondWithJSON(w, jsonStatus, resp)
		return
	}
	view.RenderIndex(w, http.StatusOK, view.Page{User: resp.User, Token: resp.Token})
}
