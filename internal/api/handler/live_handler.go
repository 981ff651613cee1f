package handler

import (
	"errors"
	"net/http"
	"timetrack/internal/api/live"
	"timetrack/internal/api/view"
	"timetrack/internal/app/service"
	"timetrack/internal/common"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// LiveHandler serves the index page and the live-update websocket. The
// browser client dials the site root, so GET / is both.
type LiveHandler struct {
	authService *service.AuthService
	cookies     *SessionCookies
	hub         *live.Hub
}

func NewLiveHandler(authService *service.AuthService, cookies *SessionCookies, hub *live.Hub) *LiveHandler {
	return &LiveHandler{authService: authService, cookies: cookies, hub: hub}
}

func (h *LiveHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.index)
	r.Get("/ws", h.connect)
}

func (h *LiveHandler) index(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.connect(w, r)
		return
	}

	page := view.Page{}
	if user, err := h.authService.SessionUser(r.Context(), h.cookies.SessionID(r)); err == nil {
		page.User = user
		if p, err := h.authService.VerifyToken(h.cookies.Token(r)); err == nil && p.UserID == user.ID {
			page.Token = h.cookies.Token(r)
		}
	}

	if view.WantsJSON(r) {
		common.RespondWithJSON(w, http.StatusOK, page)
		return
	}
	view.RenderIndex(w, http.StatusOK, page)
}

// connect admits the socket only for a live session; the check happens
// once, at open.
func (h *LiveHandler) connect(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.SessionUser(r.Context(), h.cookies.SessionID(r))
	if err != nil {
		if !errors.Is(err, common.ErrUnauthorized) {
			log.Error().Err(err).Msg("session lookup failed for live connection")
		}
		log.Info().Str("remote", r.RemoteAddr).Msg("unauthorized live connection")
		h.hub.Reject(w, r, "Unauthorized")
		return
	}

	if _, err := h.hub.Accept(w, r, user.ID); err != nil {
		log.Error().Err(err).Msg("failed to open live connection")
		return
	}
	log.Info().Str("username", user.Username).Msg("live connection opened")
}
