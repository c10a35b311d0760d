package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/Dosada05/shared-brackets/handlers"
	"github.com/Dosada05/shared-brackets/middleware"
)

// Лимит на создание новых brackets с одного IP
const (
	createRateLimit  = 10
	createRateWindow = time.Minute
)

type Handlers struct {
	Brackets  *handlers.BracketHandler
	Covers    *handlers.CoverHandler
	WebSocket *handlers.WebSocketHandler
	Health    *handlers.HealthHandler
	Metrics   http.Handler
}

func SetupRoutes(router chi.Router, h Handlers, tickets *middleware.TicketIssuer, allowedOrigins []string) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", h.Health.Healthz)
	router.Method(http.MethodGet, "/metrics", h.Metrics)

	router.Get("/ws", h.WebSocket.ServeWs)

	router.Route("/brackets", func(r chi.Router) {
		r.With(httprate.LimitByIP(createRateLimit, createRateWindow)).Get("/new", h.Brackets.New)
		r.Get("/{bracketID}", h.Brackets.Show)
	})

	router.Route("/api", func(r chi.Router) {
		r.Get("/users/{fbID}/brackets", h.Brackets.ListForUser)

		r.Route("/brackets/{bracketID}", func(r chi.Router) {
			r.Get("/", h.Brackets.GetWithUsers)

			// Загрузка обложки только с билетом этого bracket
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireTicket(tickets))
				r.Put("/cover", h.Covers.Upload)
			})
		})
	})
}
