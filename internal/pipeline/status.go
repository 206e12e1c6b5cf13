package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
)

// Registry держит наблюдаемый статус каждого стрима.
// Every failure path in a stream's loop lands here, so an operator can see
// degraded streams without restarting anything. Written by stream loops,
// read by the status API.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]models.StreamStatus
}

func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]models.StreamStatus)}
}

// Update applies fn to the stream's status entry.
func (r *Registry) Update(streamID string, fn func(*models.StreamStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.streams[streamID]
	if !ok {
		st = models.StreamStatus{StreamID: streamID, State: models.StreamStarting}
	}
	fn(&st)
	st.UpdatedAt = time.Now().UTC()
	r.streams[streamID] = st
}

// Get returns one stream's status.
func (r *Registry) Get(streamID string) (models.StreamStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.streams[streamID]
	return st, ok
}

// List returns all statuses ordered by stream id.
func (r *Registry) List() []models.StreamStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.StreamStatus, 0, len(r.streams))
	for _, st := range r.streams {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StreamID < out[j].StreamID })
	return out
}
