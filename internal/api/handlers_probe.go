package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/probebridge"
)

// subscribeEventsHandler handles GET /api/probe/subscribe_events: opens an
// SSE stream for the probe's owning user and blocks until the client
// disconnects.
func (s *Server) subscribeEventsHandler(c *gin.Context) {
	device := probeDeviceFromContext(c)

	sink, err := newGinSink(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	unsubscribe, err := s.bridge.Subscribe(c.Request.Context(), device.UserID, sink)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsubscribe()

	<-c.Request.Context().Done()
}

// receiveResultHandler handles POST /api/probe/receive_result.
func (s *Server) receiveResultHandler(c *gin.Context) {
	var req probebridge.ProbeResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed result payload"})
		return
	}
	device := probeDeviceFromContext(c)

	if err := s.bridge.ReceiveResult(c.Request.Context(), device, req); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// probeStatusHandler handles GET /api/probe/status.
func (s *Server) probeStatusHandler(c *gin.Context) {
	userID := userIDFromContext(c)
	ctx := c.Request.Context()

	devices, err := s.store.ListProbeDevices(ctx, userID)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	pending, err := s.store.ListPendingProbeEvents(ctx, userID)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, probeStatusResponse{Devices: devices, PendingEventsCount: len(pending)})
}

// probeDeviceFromContext reads the device probeAuth stored on the request
// context. Safe to call only after probeAuth has run.
func probeDeviceFromContext(c *gin.Context) *models.ProbeDevice {
	return c.MustGet(ctxProbeDevice).(*models.ProbeDevice)
}
