package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mbessolov/tourney-engine/handlers"
)

// SetupRoutes настраивает маршруты движка. Мутации требуют bearer-токен;
// запросы на чтение (расписание/сетка/рейтинг) публичные.
func SetupRoutes(
	router *chi.Mux,
	allowedOrigins []string,
	authenticate func(http.Handler) http.Handler,
	eventHandler *handlers.EventHandler,
	roundRobinHandler *handlers.RoundRobinHandler,
	bracketHandler *handlers.BracketHandler,
	leaderboardHandler *handlers.LeaderboardHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Route("/events/{eventID}", func(r chi.Router) {
		// Публичные запросы на чтение
		r.Get("/", eventHandler.GetEventHandler)
		r.Get("/round-robin/schedule", roundRobinHandler.GetScheduleHandler)
		r.Get("/round-robin/ranking", roundRobinHandler.GetRankingHandler)
		r.Get("/bracket", bracketHandler.GetBracketHandler)
		r.Get("/leaderboard/rounds", leaderboardHandler.GetRoundsHandler)
		r.Get("/leaderboard/ranking", leaderboardHandler.GetRankingHandler)

		// Мутации только для владельца события
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Put("/round-robin/settings", roundRobinHandler.ConfigureSettingsHandler)
			r.Post("/round-robin/schedule", roundRobinHandler.GenerateScheduleHandler)
			r.Post("/round-robin/matches/{matchID}/result", roundRobinHandler.SubmitResultHandler)

			r.Post("/bracket", bracketHandler.GenerateBracketHandler)
			r.Post("/bracket/matches/{matchID}/result", bracketHandler.SubmitResultHandler)

			r.Post("/leaderboard/rounds", leaderboardHandler.SubmitRoundHandler)

			r.Post("/finish", eventHandler.FinishEventHandler)
		})
	})

	router.Get("/ws/events/{eventID}", webSocketHandler.ServeWs)
}
