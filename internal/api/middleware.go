package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	ctxUserID      = "api.userID"
	ctxProbeDevice = "api.probeDevice"
)

// securityHeaders sets standard security response headers on every
// response, independent of which route handled the request.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

// requestLogger logs one structured line per request at completion.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("admission api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// sessionAuth validates the session cookie and stores the user id in the
// request context. Issuing the cookie is out of scope; this middleware
// only verifies one already set by whatever does.
func (s *Server) sessionAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(sessionCookieName)
		if err != nil || cookie == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session cookie"})
			return
		}
		userID, err := ParseSessionCookie(s.cfg.CookieSecret, cookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session cookie"})
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// probeAuth validates a probe's bearer token against registered
// ProbeDevices and touches its last-seen timestamp.
func (s *Server) probeAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		device, err := s.store.GetProbeDeviceByToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}
		if err := s.store.TouchProbeDevice(c.Request.Context(), device.ID); err != nil {
			slog.Warn("api: touching probe device last-seen failed", "device_id", device.ID, "error", err)
		}
		c.Set(ctxProbeDevice, device)
		c.Next()
	}
}

// perUserLimiter hands out a token-bucket limiter per authenticated user,
// guarding the submission/retry endpoints against a single user flooding
// the pipeline with spawn requests.
type perUserLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

func newPerUserLimiter() *perUserLimiter {
	return &perUserLimiter{limiters: make(map[int64]*rate.Limiter)}
}

// ratePerSecond and burstSize bound a user to two requests a second with
// room for a burst of ten, well above normal interactive use.
const (
	ratePerSecond = 2
	burstSize     = 10
)

func (l *perUserLimiter) forUser(userID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(ratePerSecond), burstSize)
		l.limiters[userID] = lim
	}
	return lim
}

// rateLimit enforces perUserLimiter on every session-authenticated route.
// Must run after sessionAuth.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := userIDFromContext(c)
		if !s.limiter.forUser(userID).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
