package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ciaranglansford/civic-quant/pkg/metrics"
	"github.com/ciaranglansford/civic-quant/pkg/pipelineerrors"
)

// handleAdminPhase2 handles POST /admin/process/phase2-extractions. The
// caller must present the configured admin token via x-admin-token;
// lock_busy aborts cleanly with an empty summary rather than an error,
// matching phase2.RunOnce's contract.
func (s *Server) handleAdminPhase2(c *gin.Context) {
	token := c.GetHeader("x-admin-token")
	if s.adminToken == "" || token != s.adminToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid admin token"})
		return
	}

	timer := metrics.NewTimer()
	summary, err := s.phase2.RunOnce(c.Request.Context())
	timer.ObserveDuration(metrics.Phase2RunDuration)
	if err != nil {
		if pipelineerrors.Is(err, pipelineerrors.KindLockBusy) {
			metrics.Phase2RunsTotal.WithLabelValues("lock_busy").Inc()
			c.JSON(http.StatusOK, gin.H{
				"processing_run_id": "",
				"selected":          0,
				"processed":         0,
				"completed":         0,
				"failed":            0,
				"skipped":           0,
			})
			return
		}
		metrics.Phase2RunsTotal.WithLabelValues("error").Inc()
		slog.Error("phase2 admin run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "phase2 run failed"})
		return
	}

	metrics.Phase2RunsTotal.WithLabelValues("ok").Inc()
	metrics.Phase2MessagesProcessed.WithLabelValues("completed").Add(float64(summary.Completed))
	metrics.Phase2MessagesProcessed.WithLabelValues("failed").Add(float64(summary.Failed))
	metrics.Phase2MessagesProcessed.WithLabelValues("skipped").Add(float64(summary.Skipped))
	metrics.Phase2SelectedBatchSize.Observe(float64(summary.Selected))
	c.JSON(http.StatusOK, summary)
}
