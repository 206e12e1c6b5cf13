package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ListStreamsHandler возвращает статус всех стримов
func (h *Handlers) ListStreamsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.registry.List())
}

// GetStreamHandler возвращает статус одного стрима
func (h *Handlers) GetStreamHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	streamID := vars["stream_id"]

	status, ok := h.registry.Get(streamID)
	if !ok {
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// GetAlertsHandler возвращает последние алерты, опционально одного стрима
func (h *Handlers) GetAlertsHandler(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		http.Error(w, "Alert log is not configured", http.StatusNotFound)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.db.GetAlerts(r.Context(), r.URL.Query().Get("stream_id"), limit)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
