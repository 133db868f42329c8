package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the handler into a chi router
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", UserHeader},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Healthz)
	r.Get("/prices", h.GetPrices)
	r.Get("/prices/{symbol}", h.GetPrice)
	r.Get("/prices/{symbol}/sources", h.GetPriceSources)

	r.Group(func(r chi.Router) {
		r.Use(h.UserMiddleware)
		r.Post("/trades", h.PlaceTrade)
		r.Get("/trades", h.GetUserTrades)
		r.Get("/wallets", h.GetWallets)
	})

	return r
}
