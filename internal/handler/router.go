package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/truesoulcoder/dealpig-sub000/internal/controller"
)

// NewRouter wires the admin API.
func NewRouter(campaigns *controller.CampaignController, ops *OpsHandler, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/campaigns", campaigns.ListCampaigns)
	r.Get("/campaigns/{id}/schedule", campaigns.GetCampaignSchedule)

	r.Get("/queue/stats", ops.QueueStatsHandler)
	r.Post("/queue/retry", ops.RetryFailedHandler)
	r.Post("/scheduler/run", ops.RunSchedulerHandler)
	r.Post("/senders/reset", ops.ResetSendersHandler)

	return r
}

// NewWorkerRouter serves health and metrics for a worker process.
func NewWorkerRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", Health)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
