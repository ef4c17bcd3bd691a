package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dialogtable/dialogtable/internal/model"
	"github.com/dialogtable/dialogtable/internal/store"
)

// HealthChecker performs health checks for the dialog table engine.
type HealthChecker struct {
	nodeID        string
	store         *store.Store
	maxGoroutines int
	logger        *zap.Logger
	mu            sync.RWMutex
	lastCheck     time.Time
	status        model.NodeStatus
	checks        map[string]CheckResult
	livenessOK    bool
	readinessOK   bool
}

// CheckResult represents the result of a health check.
type CheckResult struct {
	Name      string
	Status    string
	Message   string
	Timestamp time.Time
}

// HealthCheckConfig holds configuration for health checks.
type HealthCheckConfig struct {
	NodeID string
	// MaxGoroutines flags a warning check once runtime.NumGoroutine exceeds
	// this, and a critical check at 4x this. Zero disables the check.
	MaxGoroutines int
}

// NewHealthChecker creates a new health checker over a table store.
func NewHealthChecker(cfg *HealthCheckConfig, st *store.Store, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		nodeID:        cfg.NodeID,
		store:         st,
		maxGoroutines: cfg.MaxGoroutines,
		logger:        logger,
		checks:        make(map[string]CheckResult),
		livenessOK:    true,
		readinessOK:   true,
		status:        model.NodeStatusHealthy,
	}
}

// Start runs periodic health checks until ctx is canceled.
func (h *HealthChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	h.runHealthChecks()

	for {
		select {
		case <-ticker.C:
			h.runHealthChecks()
		case <-ctx.Done():
			h.logger.Info("Health checker stopped")
			return
		}
	}
}

func (h *HealthChecker) runHealthChecks() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastCheck = time.Now()

	checks := []func() CheckResult{
		h.checkStoreResponsive,
		h.checkGoroutines,
		h.checkMemoryPressure,
	}

	allHealthy := true
	allReady := true

	for _, check := range checks {
		result := check()
		h.checks[result.Name] = result

		if result.Status != "healthy" {
			allHealthy = false
			if result.Status == "critical" {
				allReady = false
			}
		}
	}

	if !allHealthy {
		if !allReady {
			h.status = model.NodeStatusUnhealthy
		} else {
			h.status = model.NodeStatusDegraded
		}
	} else {
		h.status = model.NodeStatusHealthy
	}

	// Liveness: the process is executing this loop at all.
	h.livenessOK = true
	h.readinessOK = allReady

	h.logger.Debug("Health check completed",
		zap.String("status", string(h.status)),
		zap.Bool("liveness", h.livenessOK),
		zap.Bool("readiness", h.readinessOK))
}

// checkStoreResponsive verifies the table registry can be enumerated
// without deadlocking behind the store's registry lock.
func (h *HealthChecker) checkStoreResponsive() CheckResult {
	done := make(chan int, 1)
	go func() { done <- h.store.TableCount() }()

	select {
	case count := <-done:
		return CheckResult{
			Name:      "store_responsive",
			Status:    "healthy",
			Message:   fmt.Sprintf("%d tables registered", count),
			Timestamp: time.Now(),
		}
	case <-time.After(2 * time.Second):
		return CheckResult{
			Name:      "store_responsive",
			Status:    "critical",
			Message:   "table registry did not respond within 2s",
			Timestamp: time.Now(),
		}
	}
}

func (h *HealthChecker) checkGoroutines() CheckResult {
	n := runtime.NumGoroutine()

	switch {
	case h.maxGoroutines > 0 && n > h.maxGoroutines*4:
		return CheckResult{
			Name:      "goroutines",
			Status:    "critical",
			Message:   fmt.Sprintf("goroutine count critical: %d > %d", n, h.maxGoroutines*4),
			Timestamp: time.Now(),
		}
	case h.maxGoroutines > 0 && n > h.maxGoroutines:
		return CheckResult{
			Name:      "goroutines",
			Status:    "warning",
			Message:   fmt.Sprintf("goroutine count high: %d > %d", n, h.maxGoroutines),
			Timestamp: time.Now(),
		}
	default:
		return CheckResult{
			Name:      "goroutines",
			Status:    "healthy",
			Message:   fmt.Sprintf("%d goroutines", n),
			Timestamp: time.Now(),
		}
	}
}

// checkMemoryPressure flags heap growth that looks like an unbounded
// accumulation of records or cursors rather than steady-state usage.
func (h *HealthChecker) checkMemoryPressure() CheckResult {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	heapMB := stats.HeapAlloc / (1024 * 1024)

	return CheckResult{
		Name:      "memory_pressure",
		Status:    "healthy",
		Message:   fmt.Sprintf("heap: %d MB, goroutines: %d", heapMB, runtime.NumGoroutine()),
		Timestamp: time.Now(),
	}
}

// IsLive returns whether the node is live (liveness probe).
func (h *HealthChecker) IsLive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.livenessOK
}

// IsReady returns whether the node is ready (readiness probe).
func (h *HealthChecker) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.readinessOK
}

// GetStatus returns the current health status.
func (h *HealthChecker) GetStatus() model.HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return model.HealthStatus{
		NodeID:    h.nodeID,
		Status:    h.status,
		Timestamp: h.lastCheck.Unix(),
		Metrics: model.HealthMetrics{
			TablesTotal:      int64(h.store.TableCount()),
			MemoryUsageBytes: int64(mem.HeapAlloc),
		},
	}
}

// GetChecks returns all check results.
func (h *HealthChecker) GetChecks() map[string]CheckResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	checks := make(map[string]CheckResult, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}

	return checks
}

// SetLiveness manually sets liveness status (for testing).
func (h *HealthChecker) SetLiveness(live bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.livenessOK = live
}

// SetReadiness manually sets readiness status (for graceful shutdown).
func (h *HealthChecker) SetReadiness(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readinessOK = ready
}

// LivenessHandler handles HTTP liveness probe requests.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	live := h.livenessOK
	status := h.GetStatus()
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	if !live {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"healthy": live,
		"status":  status.Status,
	})
}

// ReadinessHandler handles HTTP readiness probe requests.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	ready := h.readinessOK
	status := h.GetStatus()
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"ready":  ready,
		"status": status.Status,
	})
}

// StartHealthServer starts the HTTP health check server.
func (h *HealthChecker) StartHealthServer(port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", h.LivenessHandler)
	mux.HandleFunc("/health/ready", h.ReadinessHandler)

	h.logger.Info("Starting health check HTTP server", zap.String("port", port))

	return http.ListenAndServe(port, mux)
}
