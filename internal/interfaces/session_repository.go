package interfaces

import (
	"context"
	"time"

	"story-server/internal/models"

	"github.com/google/uuid"
)

// SessionRepository stores reading sessions between requests. Sessions are
// short-lived and owned by a single reader, so a TTL'd key-value store is
// sufficient.
//
//go:generate mockery --name SessionRepository --output ./mocks --outpkg mocks --case=underscore
type SessionRepository interface {
	// Save persists the session, refreshing its TTL.
	Save(ctx context.Context, session *models.PlayerSession, ttl time.Duration) error

	// Get retrieves a session by ID. Returns models.ErrSessionNotFound if
	// absent or expired.
	Get(ctx context.Context, id uuid.UUID) (*models.PlayerSession, error)

	// Delete removes a session.
	Delete(ctx context.Context, id uuid.UUID) error
}
