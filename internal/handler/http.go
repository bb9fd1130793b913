package handler

import (
	"story-server/internal/auth"
	"story-server/internal/middleware"
	"story-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoleEditor is required for all admin endpoints.
const RoleEditor = "editor"

// StoryHandler serves both the admin (ingestion) and reader (traversal)
// surfaces of the story server.
type StoryHandler struct {
	ingest   *service.IngestService
	reader   *service.ReaderService
	verifier *auth.JWTVerifier
	logger   *zap.Logger
}

// NewStoryHandler creates the handler. The JWT secret protects the admin
// surface; reader endpoints are public.
func NewStoryHandler(ingest *service.IngestService, reader *service.ReaderService, jwtSecret string, logger *zap.Logger) *StoryHandler {
	verifier, err := auth.NewJWTVerifier(jwtSecret, logger)
	if err != nil {
		logger.Fatal("Failed to create JWT Verifier", zap.Error(err))
	}
	return &StoryHandler{
		ingest:   ingest,
		reader:   reader,
		verifier: verifier,
		logger:   logger.Named("StoryHandler"),
	}
}

// RegisterRoutes registers the HTTP API on the given engine.
func (h *StoryHandler) RegisterRoutes(r *gin.Engine) {
	adminAuth := middleware.AuthMiddleware(h.verifier.VerifyToken, h.logger, RoleEditor)

	admin := r.Group("/admin", adminAuth)
	{
		admin.POST("/stories/:slug/ingest", h.ingestStory)
		admin.GET("/stories/:slug/graph", h.getStoryGraph)
		admin.PUT("/stories/:id/published", h.setPublished)
	}

	stories := r.Group("/stories")
	{
		stories.GET("", h.listStories)
		stories.POST("/:slug/sessions", h.startSession)
	}

	sessions := r.Group("/sessions")
	{
		sessions.GET("/:sessionID", h.getSession)
		sessions.POST("/:sessionID/choice", h.applyChoice)
		sessions.POST("/:sessionID/check", h.applyCheck)
		sessions.DELETE("/:sessionID", h.endSession)
	}
}
