package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notebot/notebot/config"
	"notebot/notebot/controllers"
	"notebot/notebot/middlewares"
)

func NewRouter(cfg config.Config, notes *controllers.NotesController, health *controllers.HealthController) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Mount("/health", HealthRoutes(health))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/notes", NotesRoutes(notes, cfg))
	return r
}
