package handler

import (
	"net/http"
	"timetrack/internal/api/middleware"
	"timetrack/internal/app/service"
	"timetrack/internal/common"
	"timetrack/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type TimerHandler struct {
	timerService *service.TimerService
}

func NewTimerHandler(timerService *service.TimerService) *TimerHandler {
	return &TimerHandler{timerService: timerService}
}

// RegisterRoutes expects to be mounted under /timer behind the bearer
// Authenticator.
func (h *TimerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.createTimer)
	r.Post("/stop/{timerID}", h.stopTimer)
	r.Get("/update", h.listTimers)
}

func (h *TimerHandler) createTimer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req service.CreateTimerRequest
	if err := bind(w, r, &req, map[string]*string{"description": &req.Description}); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	timer, err := h.timerService.CreateTimer(r.Context(), userID, req.Description)
	if err != nil {
		common.RespondWithDomainError(w, err, "An error occurred while creating timer")
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]any{"timer": timer})
}

func (h *TimerHandler) stopTimer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	timer, err := h.timerService.StopTimer(r.Context(), chi.URLParam(r, "timerID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err, "An error occurred while stopping timer")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, service.StopTimerResponse{
		Message: "Timer stopped successfully",
		Timer:   timer,
	})
}

func (h *TimerHandler) listTimers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	timers, err := h.timerService.ListTimers(r.Context(), userID)
	if err != nil {
		common.RespondWithDomainError(w, err, "An error occurred while fetching timers")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, model.TimerList{Timers: timers})
}
