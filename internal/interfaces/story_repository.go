package interfaces

import (
	"context"

	"story-server/internal/models"

	"github.com/google/uuid"
)

// StoryRepository defines the persistence surface for story records.
//
//go:generate mockery --name StoryRepository --output ./mocks --outpkg mocks --case=underscore
type StoryRepository interface {
	// GetBySlug retrieves a story by its slug. Returns models.ErrNotFound if absent.
	GetBySlug(ctx context.Context, querier DBTX, slug string) (*models.Story, error)

	// GetByID retrieves a story by its unique ID.
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Story, error)

	// Upsert inserts or updates a story by slug and returns its ID.
	// The caller is responsible for version bumping and publish-flag merging;
	// the repository writes exactly what it is given.
	Upsert(ctx context.Context, querier DBTX, story *models.Story) (uuid.UUID, error)

	// SetPublished flips the publish flag without touching anything else.
	SetPublished(ctx context.Context, querier DBTX, id uuid.UUID, published bool) error

	// ListPublished returns all published stories ordered by creation time, newest first.
	ListPublished(ctx context.Context, querier DBTX) ([]models.Story, error)
}
