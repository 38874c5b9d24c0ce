package api

import (
	"net/http"
	"strconv"
	"time"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Health возвращает состояние сервера.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// GetStatus возвращает снапшот текущего run.
// GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	if h.status == nil {
		NotFound(w, "no run in progress")
		return
	}
	run := h.status.Snapshot()
	if run == nil {
		NotFound(w, "run has not started yet")
		return
	}
	Success(w, RunFromDomain(run))
}

// ListStates возвращает таблицу шагов.
// GET /api/v1/states
func (h *Handler) ListStates(w http.ResponseWriter, _ *http.Request) {
	if h.status == nil || h.status.Table() == nil {
		List(w, []StateResponse{}, 0)
		return
	}
	states := StatesFromTable(h.status.Table())
	List(w, states, len(states))
}

// ListHistory возвращает последние запуски из локальной истории.
// GET /api/v1/history?limit=...
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		NotFound(w, "history is not configured")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.List(r.Context(), limit)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	List(w, entries, len(entries))
}

// Stop запрашивает кооперативную остановку run.
// POST /api/v1/stop
func (h *Handler) Stop(w http.ResponseWriter, _ *http.Request) {
	if h.stop.CompareAndSwap(false, true) {
		h.logger.Warn("stop requested via api")
	}
	w.WriteHeader(http.StatusAccepted)
}
