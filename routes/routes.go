package routes

import (
	"github.com/arenakit/competition-system/handlers"
	"github.com/arenakit/competition-system/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret []byte,
	matchHandler *handlers.MatchHandler,
	ladderHandler *handlers.LadderHandler,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// The magic link is its own credential: no auth middleware.
	router.Get("/matches/confirm/{hash}", matchHandler.ConfirmByHashHandler)

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetMatchHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Post("/{matchID}/report", matchHandler.ReportMatchHandler)
			r.Post("/{matchID}/confirm", matchHandler.ConfirmMatchHandler)
			r.Post("/{matchID}/dispute", matchHandler.DisputeMatchHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize("admin"))
			r.Post("/{matchID}/clear", matchHandler.ClearMatchHandler)
		})
	})

	router.Route("/ladders", func(r chi.Router) {
		r.Get("/{ladderID}/standings", ladderHandler.StandingsHandler)
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/{tournamentID}/bracket", tournamentHandler.GetBracketHandler)
		r.Get("/{tournamentID}/updates", webSocketHandler.BracketUpdatesHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize("admin", "organizer"))
			r.Post("/{tournamentID}/initialize", tournamentHandler.InitializeTournamentHandler)
		})
	})
}
