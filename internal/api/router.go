// Package api assembles the HTTP router over the handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/perkhub/coffee-shop-backend/internal/api/handlers"
	"github.com/perkhub/coffee-shop-backend/internal/api/middleware"
	"github.com/perkhub/coffee-shop-backend/internal/auth"
	"github.com/perkhub/coffee-shop-backend/internal/service"
)

// Deps is everything the router wires together.
type Deps struct {
	Tokens  *auth.TokenService
	Auth    *service.AuthService
	Menu    *service.MenuService
	Orders  *service.OrderService
	Reviews *service.ReviewService
	Rules   *handlers.RulesHandler
}

// NewRouter builds the full route tree: public menu and auth routes,
// authenticated order/review routes, and the admin surface.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)

	authHandler := handlers.NewAuthHandler(deps.Auth)
	coffeeHandler := handlers.NewCoffeeHandler(deps.Menu)
	orderHandler := handlers.NewOrderHandler(deps.Orders)
	reviewHandler := handlers.NewReviewHandler(deps.Reviews)

	requireAuth := middleware.RequireAuth(deps.Tokens)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
			r.With(requireAuth).Get("/me", authHandler.Me)
		})

		r.Route("/coffees", func(r chi.Router) {
			r.Get("/", coffeeHandler.List)
			r.Get("/{id}", coffeeHandler.Get)
			r.Get("/{id}/reviews", reviewHandler.ListForCoffee)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, middleware.RequireAdmin)
				r.Post("/", coffeeHandler.Create)
				r.Put("/{id}", coffeeHandler.Update)
				r.Delete("/{id}", coffeeHandler.Delete)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", orderHandler.Create)
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Patch("/{id}/status", orderHandler.UpdateStatus)
				r.Patch("/{id}/payment", orderHandler.UpdatePayment)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", reviewHandler.Create)
			r.Put("/{id}", reviewHandler.Update)
			r.Delete("/{id}", reviewHandler.Delete)
		})

		r.Route("/business-rules", func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireAdmin)
			r.Post("/availability", deps.Rules.UpdateAvailability)
			r.Get("/availability/{coffeeID}", deps.Rules.GetAvailability)
			r.Post("/pricing", deps.Rules.CreatePricingRule)
			r.Get("/pricing", deps.Rules.ListPricingRules)
			r.Put("/pricing/{ruleID}", deps.Rules.UpdatePricingRule)
			r.Delete("/pricing/{ruleID}", deps.Rules.DeletePricingRule)
			r.Get("/loyalty-config", deps.Rules.GetLoyaltyConfig)
			r.Put("/loyalty-config", deps.Rules.UpdateLoyaltyConfig)
			r.Put("/prep-time/{coffeeID}", deps.Rules.UpsertPrepTime)
			r.Get("/metrics", deps.Rules.Metrics)
			r.Get("/audit/{orderID}", deps.Rules.AuditTrail)
		})
	})

	return r
}
