package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"vahan/internal/logger"

	"github.com/gofiber/fiber/v2"
)

// Check verifies one dependency of the gateway.
type Check func(ctx context.Context) error

// HealthHandler handles health check requests
type HealthHandler struct {
	log       *logger.Logger
	checks    map[string]Check
	startTime time.Time
	isReady   atomic.Bool
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{
		log:       logger.New("HealthCheck"),
		checks:    checks,
		startTime: time.Now(),
	}
}

// SetReady marks the application as ready to receive traffic
func (h *HealthHandler) SetReady() {
	h.isReady.Store(true)
	h.log.LogInfof("Application marked as ready for traffic after %v", time.Since(h.startTime))
}

// ComponentStatus holds the status of a dependent component
type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OverallHealth represents the overall health status including components
type OverallHealth struct {
	OverallStatus string                     `json:"overall_status"`
	Timestamp     string                     `json:"timestamp"`
	Ready         bool                       `json:"ready"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]ComponentStatus `json:"components"`
}

// HandleHealth responds with the gateway's health, including every check.
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(c.Context(), 8*time.Second)
	defer cancel()

	statuses := make(map[string]ComponentStatus, len(h.checks))
	var wg sync.WaitGroup
	var mu sync.Mutex
	allOk := true

	for name, check := range h.checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			status := ComponentStatus{Status: "ok"}
			if err := check(ctx); err != nil {
				status = ComponentStatus{Status: "error", Error: err.Error()}
				h.log.LogErrorf("Health check failed for %s: %v", name, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if status.Status != "ok" {
				allOk = false
			}
			statuses[name] = status
		}(name, check)
	}
	wg.Wait()

	ready := h.isReady.Load()
	response := OverallHealth{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Ready:         ready,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Components:    statuses,
	}

	switch {
	case allOk && ready:
		response.OverallStatus = "ok"
		h.log.LogDebugf("Health check completed successfully in %v", time.Since(startTime))
		return c.Status(http.StatusOK).JSON(response)
	case !ready:
		response.OverallStatus = "starting"
		return c.Status(http.StatusServiceUnavailable).JSON(response)
	default:
		response.OverallStatus = "error"
		h.log.LogWarnf("Health check failed after %v. Statuses: %+v", time.Since(startTime), statuses)
		return c.Status(http.StatusServiceUnavailable).JSON(response)
	}
}

// ExecutableCheck reports whether the lookup executable can be resolved.
func ExecutableCheck(path string) Check {
	return func(context.Context) error {
		if _, err := exec.LookPath(path); err != nil {
			return fmt.Errorf("lookup executable: %w", err)
		}
		return nil
	}
}

// TempDirCheck reports whether browser profile directories can be created.
func TempDirCheck(parent string) Check {
	return func(context.Context) error {
		dir, err := os.MkdirTemp(parent, "vh_health_")
		if err != nil {
			return fmt.Errorf("temp dir: %w", err)
		}
		return os.RemoveAll(dir)
	}
}
