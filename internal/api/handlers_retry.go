package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/pipeline"
	"github.com/linkmind-dev/linkmind/internal/runtime"
)

const retryListLimit = 200

// retryAllHandler handles POST /api/retry: re-spawns every error-status
// link for the user as a background process-link task.
func (s *Server) retryAllHandler(c *gin.Context) {
	userID := userIDFromContext(c)
	ctx := c.Request.Context()

	errored, err := s.store.ListByStatus(ctx, userID, models.LinkStatusError, retryListLimit, 0)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	ids := make([]int64, 0, len(errored))
	for _, link := range errored {
		_, spawnErr := runtime.Spawn(ctx, s.tasks, s.queue, pipeline.KindProcessLink,
			pipeline.ProcessLinkParams{UserID: userID, URL: link.URL, LinkID: link.ID},
			pipeline.ProcessLinkRetryOptions())
		if spawnErr != nil {
			writeStoreError(c, spawnErr)
			return
		}
		ids = append(ids, link.ID)
	}

	c.JSON(http.StatusOK, retryAllResponse{Message: "retry queued", IDs: ids})
}

// retryOneHandler handles POST /api/retry/:id: re-spawns a single link.
func (s *Server) retryOneHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	userID := userIDFromContext(c)
	ctx := c.Request.Context()

	link, err := s.store.GetLink(ctx, userID, id)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	taskID, err := runtime.Spawn(ctx, s.tasks, s.queue, pipeline.KindProcessLink,
		pipeline.ProcessLinkParams{UserID: userID, URL: link.URL, LinkID: link.ID},
		pipeline.ProcessLinkRetryOptions())
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, retryOneResponse{TaskID: taskID, LinkID: id, Status: taskQueuedStatus})
}
