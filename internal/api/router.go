package api

import (
	"net/http"
	"time"

	"github.com/athebyme/mms-connector/internal/api/handlers"
	"github.com/athebyme/mms-connector/internal/api/middleware"
	"github.com/athebyme/mms-connector/internal/security"
	"github.com/athebyme/mms-connector/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter настраивает маршрутизатор административного API
func SetupRouter(
	syncHandler *handlers.SyncHandler,
	jwtManager *security.JWTManager,
	logger interfaces.LoggerPort,
	metricsEndpoint string,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if metricsEndpoint != "" {
		r.Method(http.MethodGet, metricsEndpoint, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.JWTAuth(jwtManager, logger))

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", syncHandler.SyncStatus)
			r.Post("/run", syncHandler.RunSync)
		})

		r.Post("/stock/{sku}/push", syncHandler.PushStock)
		r.Post("/orders/{id}/fulfil", syncHandler.FulfilOrder)
	})

	return r
}
