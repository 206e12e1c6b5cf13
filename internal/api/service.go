package api

import (
	"github.com/Capitan-Parrot/site-safety-monitor/internal/database"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/pipeline"
	"github.com/gorilla/mux"
)

// Handlers serves the operator-facing status API.
type Handlers struct {
	registry *pipeline.Registry
	db       *database.Database // may be nil when no alert log is configured
}

func NewHandlers(registry *pipeline.Registry, db *database.Database) *Handlers {
	return &Handlers{registry: registry, db: db}
}

// Router регистрирует обработчики
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/streams", h.ListStreamsHandler).Methods("GET")
	r.HandleFunc("/streams/{stream_id}", h.GetStreamHandler).Methods("GET")
	r.HandleFunc("/alerts", h.GetAlertsHandler).Methods("GET")
	return r
}
