package interfaces

import (
	"context"

	"story-server/internal/models"

	"github.com/google/uuid"
)

// StoryNodeRepository defines the persistence surface for story nodes.
// Upserts resolve conflicts on (story_id, node_key): insert-or-update, never
// insert-or-fail, so re-ingestion can overwrite nodes in place.
//
//go:generate mockery --name StoryNodeRepository --output ./mocks --outpkg mocks --case=underscore
type StoryNodeRepository interface {
	// ListByStory returns every node of a story ordered by sort_index.
	ListByStory(ctx context.Context, querier DBTX, storyID uuid.UUID) ([]models.StoryNode, error)

	// GetByKey retrieves one node. Returns models.ErrNotFound if absent.
	GetByKey(ctx context.Context, querier DBTX, storyID uuid.UUID, nodeKey string) (*models.StoryNode, error)

	// UpsertBatch writes nodes with conflict resolution on (story_id, node_key)
	// and returns how many rows were written.
	UpsertBatch(ctx context.Context, querier DBTX, nodes []models.StoryNode) (int, error)

	// DeleteByKeys removes the named nodes from a story.
	DeleteByKeys(ctx context.Context, querier DBTX, storyID uuid.UUID, nodeKeys []string) error

	// DeleteAll removes every node of a story. Last-resort recovery path.
	DeleteAll(ctx context.Context, querier DBTX, storyID uuid.UUID) error
}

// StoryChoiceRepository defines the persistence surface for choices. Choices
// carry no editor-only state worth preserving, so re-ingestion replaces the
// whole set.
//
//go:generate mockery --name StoryChoiceRepository --output ./mocks --outpkg mocks --case=underscore
type StoryChoiceRepository interface {
	// ListByStory returns every choice of a story ordered by (from_node_key, sort_index).
	ListByStory(ctx context.Context, querier DBTX, storyID uuid.UUID) ([]models.Choice, error)

	// DeleteForNodes removes all choices originating from the named nodes.
	// Must run before the nodes themselves are deleted.
	DeleteForNodes(ctx context.Context, querier DBTX, storyID uuid.UUID, fromNodeKeys []string) error

	// ReplaceAll deletes every choice of the story and inserts the given set.
	ReplaceAll(ctx context.Context, querier DBTX, storyID uuid.UUID, choices []models.Choice) (int, error)
}
