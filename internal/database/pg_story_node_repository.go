package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.StoryNodeRepository = (*pgStoryNodeRepository)(nil)

type pgStoryNodeRepository struct {
	logger *zap.Logger
}

func NewPgStoryNodeRepository(logger *zap.Logger) interfaces.StoryNodeRepository {
	return &pgStoryNodeRepository{
		logger: logger.Named("PgStoryNodeRepo"),
	}
}

const listNodesByStoryQuery = `
SELECT id, story_id, node_key, text_md, sort_index, image_url, video_url, audio_url, dice_check, created_at, updated_at
FROM story_nodes
WHERE story_id = $1
ORDER BY sort_index`

const getNodeByKeyQuery = `
SELECT id, story_id, node_key, text_md, sort_index, image_url, video_url, audio_url, dice_check, created_at, updated_at
FROM story_nodes
WHERE story_id = $1 AND node_key = $2`

const upsertNodeQuery = `
INSERT INTO story_nodes (id, story_id, node_key, text_md, sort_index, image_url, video_url, audio_url, dice_check, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (story_id, node_key) DO UPDATE SET
	text_md = EXCLUDED.text_md,
	sort_index = EXCLUDED.sort_index,
	image_url = EXCLUDED.image_url,
	video_url = EXCLUDED.video_url,
	audio_url = EXCLUDED.audio_url,
	dice_check = EXCLUDED.dice_check,
	updated_at = EXCLUDED.updated_at`

const deleteNodesByKeysQuery = `
DELETE FROM story_nodes WHERE story_id = $1 AND node_key = ANY($2)`

const deleteAllNodesQuery = `
DELETE FROM story_nodes WHERE story_id = $1`

// ListByStory returns every node of a story ordered by sort_index.
func (r *pgStoryNodeRepository) ListByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) ([]models.StoryNode, error) {
	var nodes []models.StoryNode
	err := pgxscan.Select(ctx, querier, &nodes, listNodesByStoryQuery, storyID)
	if err != nil {
		r.logger.Error("Failed to list story nodes", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list nodes for story %s: %w", storyID, err)
	}
	return nodes, nil
}

// GetByKey retrieves one node by (story_id, node_key).
func (r *pgStoryNodeRepository) GetByKey(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID, nodeKey string) (*models.StoryNode, error) {
	node := &models.StoryNode{}
	err := pgxscan.Get(ctx, querier, node, getNodeByKeyQuery, storyID, nodeKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story node not found", zap.String("storyID", storyID.String()), zap.String("nodeKey", nodeKey))
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story node", zap.String("storyID", storyID.String()), zap.String("nodeKey", nodeKey), zap.Error(err))
		return nil, fmt.Errorf("failed to get node %s: %w", nodeKey, err)
	}
	return node, nil
}

// UpsertBatch writes nodes one statement at a time, counting what landed, so
// a single bad row does not discard the rest of the batch.
func (r *pgStoryNodeRepository) UpsertBatch(ctx context.Context, querier interfaces.DBTX, nodes []models.StoryNode) (int, error) {
	written := 0
	now := time.Now()
	for i := range nodes {
		node := &nodes[i]
		if node.ID == uuid.Nil {
			node.ID = uuid.New()
		}
		if node.CreatedAt.IsZero() {
			node.CreatedAt = now
		}
		node.UpdatedAt = now

		_, err := querier.Exec(ctx, upsertNodeQuery,
			node.ID,
			node.StoryID,
			node.NodeKey,
			node.Text,
			node.SortIndex,
			node.ImageURL,
			node.VideoURL,
			node.AudioURL,
			node.DiceCheck,
			node.CreatedAt,
			node.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to upsert story node", zap.String("nodeKey", node.NodeKey), zap.Error(err))
			return written, fmt.Errorf("failed to upsert node %s: %w", node.NodeKey, err)
		}
		written++
	}
	return written, nil
}

// DeleteByKeys removes the named nodes from a story.
func (r *pgStoryNodeRepository) DeleteByKeys(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID, nodeKeys []string) error {
	if len(nodeKeys) == 0 {
		return nil
	}
	tag, err := querier.Exec(ctx, deleteNodesByKeysQuery, storyID, nodeKeys)
	if err != nil {
		r.logger.Error("Failed to delete story nodes", zap.String("storyID", storyID.String()), zap.Int("count", len(nodeKeys)), zap.Error(err))
		return fmt.Errorf("failed to delete %d nodes: %w", len(nodeKeys), err)
	}
	r.logger.Debug("Story nodes deleted", zap.String("storyID", storyID.String()), zap.Int64("deleted", tag.RowsAffected()))
	return nil
}

// DeleteAll removes every node of a story.
func (r *pgStoryNodeRepository) DeleteAll(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) error {
	tag, err := querier.Exec(ctx, deleteAllNodesQuery, storyID)
	if err != nil {
		r.logger.Error("Failed to delete all story nodes", zap.String("storyID", storyID.String()), zap.Error(err))
		return fmt.Errorf("failed to delete all nodes for story %s: %w", storyID, err)
	}
	r.logger.Warn("All story nodes deleted", zap.String("storyID", storyID.String()), zap.Int64("deleted", tag.RowsAffected()))
	return nil
}
