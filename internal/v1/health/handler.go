package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ovidtrivia/quizroom/internal/v1/bus"
	"github.com/ovidtrivia/quizroom/internal/v1/logging"
	"go.uber.org/zap"
)

// QuestionProviderChecker reports whether the question-generation upstream is reachable.
// Implementations should be cheap and bounded by ctx; a nil checker is treated as
// "no upstream configured" and is always healthy (the fallback question bank still works).
type QuestionProviderChecker interface {
	Check(ctx context.Context) string
}

// Handler manages health check endpoints.
type Handler struct {
	redisService     *bus.Service
	stateDir         string
	questionProvider QuestionProviderChecker
}

// NewHandler creates a new health check handler.
func NewHandler(redisService *bus.Service, stateDir string, questionProvider QuestionProviderChecker) *Handler {
	return &Handler{
		redisService:     redisService,
		stateDir:         stateDir,
		questionProvider: questionProvider,
	}
}

// LivenessResponse represents the liveness probe response.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint.
// GET /healthz/live
// Returns 200 if the process is alive (no dependency checks).
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint.
// GET /healthz/ready
// Returns 200 only if all critical dependencies are healthy, 503 otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	redisStatus := h.checkRedis(ctx)
	checks["redis"] = redisStatus
	if redisStatus != "healthy" {
		allHealthy = false
	}

	stateStatus := h.checkStateDir()
	checks["state_dir"] = stateStatus
	if stateStatus != "healthy" {
		allHealthy = false
	}

	if h.questionProvider != nil {
		qStatus := h.questionProvider.Check(ctx)
		checks["question_provider"] = qStatus
		// A degraded question provider does not fail readiness: the engine falls
		// back to the static reserve bank (C7), so the room engine itself stays up.
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

// checkRedis verifies Redis connectivity using the PING command.
func (h *Handler) checkRedis(ctx context.Context) string {
	// If Redis is not enabled (single-instance mode), consider it healthy.
	if h.redisService == nil {
		return "healthy"
	}

	if err := h.redisService.Ping(ctx); err != nil {
		logging.Error(ctx, "redis health check failed", zap.Error(err))
		return "unhealthy"
	}

	return "healthy"
}

// checkStateDir verifies the persistence directory is writable.
func (h *Handler) checkStateDir() string {
	if h.stateDir == "" {
		return "healthy"
	}
	probe := filepath.Join(h.stateDir, ".health-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return "unhealthy"
	}
	_ = os.Remove(probe)
	return "healthy"
}

// HealthCheckResponse is a generic health check response for backward compatibility.
type HealthCheckResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for better formatting.
func (r ReadinessResponse) MarshalJSON() ([]byte, error) {
	type Alias ReadinessResponse
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(&r),
	})
}
