package handler

import (
	"fmt"
	"net/http"

	"story-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ingestStory accepts a raw tabular upload for a slug and synchronizes it.
func (h *StoryHandler) ingestStory(c *gin.Context) {
	slug := c.Param("slug")

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrBadRequest, err), h.logger)
		return
	}

	log := h.logger.With(zap.String("slug", slug), zap.Bool("publish", req.Publish))
	log.Info("Ingestion requested", zap.Int("sourceBytes", len(req.Raw)))

	report, err := h.ingest.Ingest(c.Request.Context(), slug, req.Raw, req.Publish)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	log.Info("Ingestion finished",
		zap.Int("nodesWritten", report.NodesWritten),
		zap.Int("choicesWritten", report.ChoicesWritten),
		zap.Int("deletionsConfirmed", report.DeletionsConfirmed),
		zap.Bool("nuclearFallbackUsed", report.NuclearFallbackUsed),
	)
	c.JSON(http.StatusOK, report)
}

// setPublished flips a story's visibility to readers.
func (h *StoryHandler) setPublished(c *gin.Context) {
	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handleServiceError(c, fmt.Errorf("%w: invalid story ID", models.ErrBadRequest), h.logger)
		return
	}

	var req SetPublishedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrBadRequest, err), h.logger)
		return
	}

	if err := h.ingest.SetPublished(c.Request.Context(), storyID, *req.Published); err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": storyID, "published": *req.Published})
}

// getStoryGraph returns the persisted graph of a story for inspection.
func (h *StoryHandler) getStoryGraph(c *gin.Context) {
	slug := c.Param("slug")

	story, nodes, choices, err := h.ingest.GetStoryGraph(c.Request.Context(), slug)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"story":   story,
		"nodes":   nodes,
		"choices": choices,
	})
}
