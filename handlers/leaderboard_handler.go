package handlers

import (
	"net/http"

	"github.com/mbessolov/tourney-engine/middleware"
	"github.com/mbessolov/tourney-engine/services"
)

type LeaderboardHandler struct {
	leaderboardService services.LeaderboardService
}

func NewLeaderboardHandler(ls services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: ls}
}

type submitRoundInput struct {
	RoundNumber int                       `json:"round_number"`
	Scores      []services.TeamScoreInput `json:"scores"`
}

// SubmitRoundHandler обрабатывает POST /events/{eventID}/leaderboard/rounds
func (h *LeaderboardHandler) SubmitRoundHandler(w http.ResponseWriter, r *http.Request) {
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

	var input submitRoundInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.leaderboardService.SubmitRound(r.Context(), eventID, callerID, input.RoundNumber, input.Scores); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"round_number": input.RoundNumber}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetRoundsHandler обрабатывает GET /events/{eventID}/leaderboard/rounds
func (h *LeaderboardHandler) GetRoundsHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rounds, err := h.leaderboardService.GetRounds(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": rounds}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetRankingHandler обрабатывает GET /events/{eventID}/leaderboard/ranking
func (h *LeaderboardHandler) GetRankingHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ranking, err := h.leaderboardService.GetRanking(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"ranking": ranking}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
