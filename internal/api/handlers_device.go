package api

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkmind-dev/linkmind/internal/probebridge"
	"github.com/linkmind-dev/linkmind/internal/store"
)

const deviceVerificationPath = "/auth/device"

// initiateDeviceAuthHandler handles POST /api/auth/device. Unauthenticated:
// any probe can start an enrollment, but only a signed-in user can later
// authorize it.
func (s *Server) initiateDeviceAuthHandler(c *gin.Context) {
	resp, err := s.bridge.InitiateDeviceAuth(c.Request.Context(), s.cfg.WebBaseURL+deviceVerificationPath)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// pollDeviceTokenHandler handles POST /api/auth/token.
func (s *Server) pollDeviceTokenHandler(c *gin.Context) {
	var req pollDeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_code is required"})
		return
	}

	result, err := s.bridge.PollDeviceToken(c.Request.Context(), req.DeviceCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"error": "invalid_device_code"})
			return
		}
		writeStoreError(c, err)
		return
	}

	switch result.Status {
	case probebridge.PollStatusOK:
		c.JSON(http.StatusOK, gin.H{"access_token": result.AccessToken, "user_id": result.UserID})
	default:
		c.JSON(http.StatusOK, gin.H{"error": result.Status})
	}
}

var deviceVerificationTemplate = template.Must(template.New("device-verify").Parse(`<!DOCTYPE html>
<html><head><title>Authorize device</title></head>
<body>
<h1>Authorize your probe</h1>
<form method="post" action="/auth/device/authorize">
<input type="hidden" name="user_code" value="{{.UserCode}}">
<p>Code: {{.UserCode}}</p>
<button type="submit">Authorize</button>
</form>
</body></html>`))

var deviceSuccessTemplate = template.Must(template.New("device-success").Parse(`<!DOCTYPE html>
<html><head><title>Device authorized</title></head>
<body><h1>Device authorized</h1><p>You can close this page and return to your probe.</p></body></html>`))

// deviceVerificationPageHandler handles GET /auth/device?code=USER_CODE.
func (s *Server) deviceVerificationPageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = deviceVerificationTemplate.Execute(c.Writer, struct{ UserCode string }{UserCode: c.Query("code")})
}

// authorizeDeviceHandler handles POST /auth/device/authorize.
func (s *Server) authorizeDeviceHandler(c *gin.Context) {
	var req authorizeDeviceRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_code is required"})
		return
	}

	userID := userIDFromContext(c)
	if err := s.bridge.AuthorizeDeviceAuthCode(c.Request.Context(), req.UserCode, userID); err != nil {
		writeStoreError(c, err)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = deviceSuccessTemplate.Execute(c.Writer, nil)
}
