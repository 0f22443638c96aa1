package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkmind-dev/linkmind/internal/store"
)

// writeStoreError maps a Store Gateway error to the HTTP response taxonomy
// from spec.md §7: not-found becomes 404, a constraint violation becomes
// 409, everything else is an unexpected 500.
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrConstraintViolation):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	default:
		slog.Error("admission api: unexpected store error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// userIDFromContext reads the user id sessionAuth stored on the request
// context. Safe to call only after sessionAuth has run.
func userIDFromContext(c *gin.Context) int64 {
	return c.MustGet(ctxUserID).(int64)
}
