package handler

import (
	"fmt"
	"net/http"

	"story-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// listStories returns all published stories.
func (h *StoryHandler) listStories(c *gin.Context) {
	stories, err := h.reader.ListStories(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	summaries := make([]StorySummary, 0, len(stories))
	for i := range stories {
		summaries = append(summaries, toStorySummary(&stories[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": summaries})
}

// startSession begins a reading session for a published story.
func (h *StoryHandler) startSession(c *gin.Context) {
	slug := c.Param("slug")

	session, node, branching, err := h.reader.StartSession(c.Request.Context(), slug)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, SessionResponse{
		Session: toSessionView(session),
		Node:    toNodeView(node, branching),
	})
}

// getSession returns the session and its current node.
func (h *StoryHandler) getSession(c *gin.Context) {
	sessionID, err := parseSessionID(c)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	session, node, branching, err := h.reader.CurrentNode(c.Request.Context(), sessionID)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		Session: toSessionView(session),
		Node:    toNodeView(node, branching),
	})
}

// applyChoice advances the session along one of the current node's choices.
func (h *StoryHandler) applyChoice(c *gin.Context) {
	sessionID, err := parseSessionID(c)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	var req ApplyChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrBadRequest, err), h.logger)
		return
	}

	session, node, branching, err := h.reader.ApplyChoice(c.Request.Context(), sessionID, *req.ChoiceIndex)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		Session: toSessionView(session),
		Node:    toNodeView(node, branching),
	})
}

// applyCheck resolves the dice check on the session's current node.
func (h *StoryHandler) applyCheck(c *gin.Context) {
	sessionID, err := parseSessionID(c)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	result, session, node, branching, err := h.reader.ApplyCheck(c.Request.Context(), sessionID)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, CheckResponse{
		Result:  *result,
		Session: toSessionView(session),
		Node:    toNodeView(node, branching),
	})
}

// endSession discards a reading session.
func (h *StoryHandler) endSession(c *gin.Context) {
	sessionID, err := parseSessionID(c)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	if err := h.reader.EndSession(c.Request.Context(), sessionID); err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseSessionID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("sessionID"))
	if err != nil {
		zap.L().Debug("Invalid session ID in path", zap.String("raw", c.Param("sessionID")))
		return uuid.Nil, fmt.Errorf("%w: invalid session ID", models.ErrBadRequest)
	}
	return id, nil
}
