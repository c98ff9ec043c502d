package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ciaranglansford/civic-quant/pkg/metrics"
	"github.com/ciaranglansford/civic-quant/pkg/pipelineerrors"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// ingestRequest mirrors schema.IngestPayload's wire shape.
type ingestRequest struct {
	SourceChannelID   string    `json:"source_channel_id" binding:"required"`
	SourceChannelName string    `json:"source_channel_name"`
	UpstreamMessageID string    `json:"upstream_message_id" binding:"required"`
	MessageTimeUTC    time.Time `json:"message_time_utc" binding:"required"`
	RawText           string    `json:"raw_text" binding:"required"`
	RawEntities       any       `json:"raw_entities"`
	ForwardedFrom     string    `json:"forwarded_from"`
}

// handleIngest handles POST /ingest.
func (s *Server) handleIngest(c *gin.Context) {
	timer := metrics.NewTimer()
	defer func() { timer.ObserveDuration(metrics.IngestRequestDuration) }()

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.IngestRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload := schema.IngestPayload{
		SourceChannelID:   req.SourceChannelID,
		SourceChannelName: req.SourceChannelName,
		UpstreamMessageID: req.UpstreamMessageID,
		MessageTimeUTC:    req.MessageTimeUTC,
		RawText:           req.RawText,
		RawEntities:       req.RawEntities,
		ForwardedFrom:     req.ForwardedFrom,
	}

	resp, err := s.ingest.Ingest(c.Request.Context(), payload)
	if err != nil {
		var kindErr *pipelineerrors.KindError
		if errors.As(err, &kindErr) {
			slog.Error("ingest failed", "request_id", c.GetString("request_id"), "kind", kindErr.Kind, "error", kindErr.Err)
		} else {
			slog.Error("ingest failed", "request_id", c.GetString("request_id"), "error", err)
		}
		metrics.IngestRequestsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}

	metrics.IngestRequestsTotal.WithLabelValues(resp.Status).Inc()
	c.JSON(http.StatusOK, resp)
}
