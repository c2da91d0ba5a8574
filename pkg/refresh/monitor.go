package refresh

import (
	"sync"
	"time"

	"homegraph/pkg/config"
)

// Monitor tracks refresh health and failures.
type Monitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
}

// RecordSuccess records a successful refresh cycle.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSuccess = time.Now()
	m.lastAttempt = time.Now()
	m.consecutiveErrors = 0
	m.lastError = ""
}

// RecordFailure records a failed refresh cycle.
func (m *Monitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = time.Now()
	m.consecutiveErrors++
	if err != nil {
		m.lastError = err.Error()
	}
}

// Status reports refresh health for /v1/health.
type Status struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// IsHealthy returns true if refreshing is working properly.
// Unhealthy conditions:
//   - Never succeeded
//   - No success for several intervals
//   - More than 3 consecutive failures
func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthyLocked()
}

func (m *Monitor) healthyLocked() bool {
	if m.lastSuccess.IsZero() {
		return false
	}
	if time.Since(m.lastSuccess) > 5*config.RefreshInterval {
		return false
	}
	return m.consecutiveErrors <= 3
}

// Status returns the current refresh status for health checks.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		Healthy: m.healthyLocked(),
	}

	if !m.lastSuccess.IsZero() {
		status.LastSuccess = m.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(m.lastSuccess).String()
	}
	if !m.lastAttempt.IsZero() {
		status.LastAttempt = m.lastAttempt.Format(time.RFC3339)
	}
	if m.consecutiveErrors > 0 {
		status.ConsecutiveErrors = m.consecutiveErrors
		status.LastError = m.lastError
	}

	return status
}
