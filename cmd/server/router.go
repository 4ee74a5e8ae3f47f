package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/detailer-api/internal/api"
	apiMiddleware "github.com/phrazzld/detailer-api/internal/api/middleware"
	"github.com/phrazzld/detailer-api/internal/metrics"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	requestHandler := api.NewRequestHandler(app.requestService, app.logger)
	providerHandler := api.NewProviderHandler(app.directory)
	feedHandler := api.NewFeedHandler(
		app.feeds,
		app.directory,
		time.Duration(app.config.Feed.WebsocketPingSecs)*time.Second,
		app.logger,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/providers", providerHandler.ListProviders)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/requests", requestHandler.CreateRequest)
			r.Get("/requests", requestHandler.ListRequests)
			r.Get("/requests/{id}", requestHandler.GetRequest)
			r.Post("/requests/{id}/accept", requestHandler.AcceptRequest)
			r.Post("/requests/{id}/decline", requestHandler.DeclineRequest)
			r.Post("/requests/{id}/cancel", requestHandler.CancelRequest)

			r.Get("/feed", feedHandler.ServeFeed)
		})
	})

	r.Handle("/metrics", metrics.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
