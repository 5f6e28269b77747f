package api

import (
	"sync"
	"time"
)

// Component names reported by the health endpoint.
const (
	ComponentCatalog = "catalog"
	ComponentIndex   = "index"
	ComponentStore   = "store"
)

// HealthStatus represents the health of a component.
type HealthStatus struct {
	Healthy     bool
	Degraded    bool
	LastCheck   time.Time
	LastSuccess time.Time
	LastError   error
	Message     string
}

// Health tracks the health of the components behind the API.
type Health struct {
	mu         sync.RWMutex
	components map[string]*HealthStatus
}

// NewHealth creates a new health tracker.
func NewHealth() *Health {
	return &Health{
		components: make(map[string]*HealthStatus),
	}
}

func (h *Health) status(component string) *HealthStatus {
	s, ok := h.components[component]
	if !ok {
		s = &HealthStatus{}
		h.components[component] = s
	}
	return s
}

// SetHealthy marks a component as healthy.
func (h *Health) SetHealthy(component, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	s := h.status(component)
	s.Healthy = true
	s.Degraded = false
	s.LastCheck = now
	s.LastSuccess = now
	s.LastError = nil
	s.Message = message
}

// SetDegraded records a failure in a component the service can run without.
// The component still counts as healthy.
func (h *Health) SetDegraded(component string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.status(component)
	s.Healthy = true
	s.Degraded = true
	s.LastCheck = time.Now()
	s.LastError = err
	s.Message = err.Error()
}

// SetUnhealthy marks a component as unhealthy.
func (h *Health) SetUnhealthy(component string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.status(component)
	s.Healthy = false
	s.Degraded = false
	s.LastCheck = time.Now()
	s.LastError = err
	s.Message = err.Error()
}

// GetStatus returns a copy of the status of a component, or nil.
func (h *Health) GetStatus(component string) *HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if s, ok := h.components[component]; ok {
		c := *s
		return &c
	}
	return nil
}

// GetAllStatuses returns copies of all component statuses.
func (h *Health) GetAllStatuses() map[string]*HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[string]*HealthStatus, len(h.components))
	for name, s := range h.components {
		c := *s
		result[name] = &c
	}
	return result
}

// IsOverallHealthy returns true if all components are healthy.
func (h *Health) IsOverallHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.components {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// IsDegraded returns true if any component is running degraded.
func (h *Health) IsDegraded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.components {
		if s.Degraded {
			return true
		}
	}
	return false
}
