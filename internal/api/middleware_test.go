package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders_SetOnEveryResponse(t *testing.T) {
	engine := gin.New()
	engine.Use(securityHeaders())
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Referrer-Policy"))
}

func TestRateLimit_AllowsBurstThenRejects(t *testing.T) {
	limiter := newPerUserLimiter()
	lim := limiter.forUser(1)

	allowed := 0
	for i := 0; i < burstSize+1; i++ {
		if lim.Allow() {
			allowed++
		}
	}

	assert.Equal(t, burstSize, allowed)
}

func TestRateLimit_TracksUsersIndependently(t *testing.T) {
	limiter := newPerUserLimiter()

	for i := 0; i < burstSize; i++ {
		limiter.forUser(1).Allow()
	}
	assert.False(t, limiter.forUser(1).Allow())
	assert.True(t, limiter.forUser(2).Allow())
}
