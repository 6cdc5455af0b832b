package handlers

import (
	"net/http"

	"github.com/mbessolov/tourney-engine/middleware"
	"github.com/mbessolov/tourney-engine/services"
)

type RoundRobinHandler struct {
	roundRobinService services.RoundRobinService
}

func NewRoundRobinHandler(rrs services.RoundRobinService) *RoundRobinHandler {
	return &RoundRobinHandler{roundRobinService: rrs}
}

// ConfigureSettingsHandler обрабатывает PUT /events/{eventID}/round-robin/settings
func (h *RoundRobinHandler) ConfigureSettingsHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.RoundRobinSettingsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	settings, err := h.roundRobinService.ConfigureSettings(r.Context(), eventID, callerID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"settings": settings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerateScheduleHandler обрабатывает POST /events/{eventID}/round-robin/schedule
func (h *RoundRobinHandler) GenerateScheduleHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	created, err := h.roundRobinService.GenerateSchedule(r.Context(), eventID, callerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"matches_created": created}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type submitResultInput struct {
	Team1Score int `json:"team1_score"`
	Team2Score int `json:"team2_score"`
}

// SubmitResultHandler обрабатывает POST /events/{eventID}/round-robin/matches/{matchID}/result
func (h *RoundRobinHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input submitResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.roundRobinService.SubmitResult(r.Context(), eventID, callerID, matchID, input.Team1Score, input.Team2Score)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetScheduleHandler обрабатывает GET /events/{eventID}/round-robin/schedule
func (h *RoundRobinHandler) GetScheduleHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	schedule, err := h.roundRobinService.GetSchedule(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": schedule}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetRankingHandler обрабатывает GET /events/{eventID}/round-robin/ranking
func (h *RoundRobinHandler) GetRankingHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ranking, err := h.roundRobinService.GetRanking(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": ranking}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
