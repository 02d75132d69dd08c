// internal/handler/ops_handler.go
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
	"github.com/truesoulcoder/dealpig-sub000/internal/service"
)

// OpsHandler serves the queue and worker control endpoints.
type OpsHandler struct {
	Service *service.CampaignService
	Log     zerolog.Logger
}

type limitRequest struct {
	Limit int `json:"limit"`
}

// decodeLimit reads an optional {"limit": n} body. An empty body is fine.
func decodeLimit(r *http.Request) (int, error) {
	var body limitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !appErrors.Is(err, io.EOF) {
		return 0, err
	}
	if body.Limit < 0 {
		return 0, appErrors.Newf("limit must not be negative, got %d", body.Limit)
	}
	return body.Limit, nil
}

// QueueStatsHandler returns schedule entry counts per status
func (h *OpsHandler) QueueStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.QueueStats(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("queue stats")
		http.Error(w, "failed to fetch queue stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RetryFailedHandler re-queues failed entries
func (h *OpsHandler) RetryFailedHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := decodeLimit(r)
	if err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	n, err := h.Service.RetryFailed(r.Context(), limit)
	if err != nil {
		h.Log.Error().Err(err).Msg("retry failed entries")
		http.Error(w, "failed to requeue entries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"requeued": n})
}

// RunSchedulerHandler asks the workers for a scheduling cycle now
func (h *OpsHandler) RunSchedulerHandler(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, service.TaskScheduler)
}

// ResetSendersHandler asks the workers to zero the daily sender counters
func (h *OpsHandler) ResetSendersHandler(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, service.TaskResetAll)
}

func (h *OpsHandler) trigger(w http.ResponseWriter, r *http.Request, task string) {
	limit, err := decodeLimit(r)
	if err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.TriggerTask(r.Context(), task, limit); err != nil {
		h.Log.Error().Err(err).Str("task", task).Msg("trigger task")
		http.Error(w, "failed to queue task", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task": task, "status": "queued"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
