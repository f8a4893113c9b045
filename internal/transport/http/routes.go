package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// Routes builds the API router. /metrics is mounted only when gatherer is
// not nil.
func Routes(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			ErrorLog: zap.NewStdLog(h.log),
		}))
	}
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Group(func(r chi.Router) {
		r.Use(Authenticate)

		r.Post("/assign", h.Assign)
		r.Get("/dispatch-board", h.Board)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/{id}", h.GetJob)
			r.Put("/{id}", h.UpdateJob)
		})

		r.Route("/technicians/{id}", func(r chi.Router) {
			r.Get("/assignments", h.ListAssignments)
			r.Get("/route", h.TechnicianRoute)
			r.Put("/status", h.UpdateTechnicianStatus)
			r.Put("/location", h.RecordLocation)
		})
	})

	return r
}
