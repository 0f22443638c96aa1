package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/linkmind-dev/linkmind/internal/pipeline"
	"github.com/linkmind-dev/linkmind/internal/runtime"
)

const defaultListLimit = 50

// submitLinkHandler handles POST /api/links: upserts the link and spawns a
// process-link task, returning immediately without waiting for the
// pipeline to run.
func (s *Server) submitLinkHandler(c *gin.Context) {
	var req submitLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required and must be a valid URL"})
		return
	}
	userID := userIDFromContext(c)
	ctx := c.Request.Context()

	linkID, _, err := s.store.UpsertLink(ctx, userID, req.URL)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	taskID, err := runtime.Spawn(ctx, s.tasks, s.queue, pipeline.KindProcessLink,
		pipeline.ProcessLinkParams{UserID: userID, URL: req.URL, LinkID: linkID},
		pipeline.ProcessLinkRetryOptions())
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, submitLinkResponse{TaskID: taskID, URL: req.URL, Status: taskQueuedStatus})
}

// listLinksHandler handles GET /api/links?limit=N.
func (s *Server) listLinksHandler(c *gin.Context) {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	links, err := s.store.ListRecent(c.Request.Context(), userIDFromContext(c), limit, 0)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// getLinkHandler handles GET /api/links/:id.
func (s *Server) getLinkHandler(c *gin.Context) {
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
	related, err := s.store.GetRelations(ctx, id)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, linkDetailResponse{Link: link, Related: related})
}

// deleteLinkHandler handles DELETE /api/links/:id.
func (s *Server) deleteLinkHandler(c *gin.Context) {
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
	// Orchestrate the cascade ourselves, and do it before DeleteLink: once
	// the link row is gone, link_relations' ON DELETE CASCADE FK has
	// already swept every row touching it, so RemoveLinkFromRelations
	// would always see zero rows to report.
	updated, err := s.store.RemoveLinkFromRelations(ctx, id)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if err := s.store.DeleteLink(ctx, userID, id); err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, deleteLinkResponse{
		Message:             "link deleted",
		LinkID:              id,
		URL:                 link.URL,
		RelatedLinksUpdated: updated,
	})
}

// parseIDParam extracts and validates the :id path param, writing a 400
// response and returning ok=false if it isn't a positive integer.
func parseIDParam(c *gin.Context) (id int64, ok bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}
