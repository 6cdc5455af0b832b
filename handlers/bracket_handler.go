package handlers

import (
	"net/http"

	"github.com/mbessolov/tourney-engine/middleware"
	"github.com/mbessolov/tourney-engine/services"
)

type BracketHandler struct {
	knockoutService services.KnockoutService
}

func NewBracketHandler(ks services.KnockoutService) *BracketHandler {
	return &BracketHandler{knockoutService: ks}
}

// GenerateBracketHandler обрабатывает POST /events/{eventID}/bracket
func (h *BracketHandler) GenerateBracketHandler(w http.ResponseWriter, r *http.Request) {
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

	created, err := h.knockoutService.GenerateBracket(r.Context(), eventID, callerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	bracket, err := h.knockoutService.GetBracket(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"matches_created": created, "bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitResultHandler обрабатывает POST /events/{eventID}/bracket/matches/{matchID}/result
func (h *BracketHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
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

	match, err := h.knockoutService.SubmitResult(r.Context(), eventID, callerID, matchID, input.Team1Score, input.Team2Score)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBracketHandler обрабатывает GET /events/{eventID}/bracket
func (h *BracketHandler) GetBracketHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.knockoutService.GetBracket(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
