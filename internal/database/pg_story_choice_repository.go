package database

import (
	"context"
	"fmt"

	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.StoryChoiceRepository = (*pgStoryChoiceRepository)(nil)

type pgStoryChoiceRepository struct {
	logger *zap.Logger
}

func NewPgStoryChoiceRepository(logger *zap.Logger) interfaces.StoryChoiceRepository {
	return &pgStoryChoiceRepository{
		logger: logger.Named("PgStoryChoiceRepo"),
	}
}

const listChoicesByStoryQuery = `
SELECT id, story_id, from_node_key, label, to_node_key, match_tags, effect, sort_index
FROM story_choices
WHERE story_id = $1
ORDER BY from_node_key, sort_index`

const deleteChoicesForNodesQuery = `
DELETE FROM story_choices WHERE story_id = $1 AND from_node_key = ANY($2)`

const deleteAllChoicesQuery = `
DELETE FROM story_choices WHERE story_id = $1`

const insertChoiceQuery = `
INSERT INTO story_choices (id, story_id, from_node_key, label, to_node_key, match_tags, effect, sort_index)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// ListByStory returns every choice of a story ordered by (from_node_key, sort_index).
func (r *pgStoryChoiceRepository) ListByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) ([]models.Choice, error) {
	var choices []models.Choice
	err := pgxscan.Select(ctx, querier, &choices, listChoicesByStoryQuery, storyID)
	if err != nil {
		r.logger.Error("Failed to list story choices", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list choices for story %s: %w", storyID, err)
	}
	return choices, nil
}

// DeleteForNodes removes all choices originating from the named nodes.
func (r *pgStoryChoiceRepository) DeleteForNodes(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID, fromNodeKeys []string) error {
	if len(fromNodeKeys) == 0 {
		return nil
	}
	tag, err := querier.Exec(ctx, deleteChoicesForNodesQuery, storyID, fromNodeKeys)
	if err != nil {
		r.logger.Error("Failed to delete choices for nodes", zap.String("storyID", storyID.String()), zap.Error(err))
		return fmt.Errorf("failed to delete choices for %d nodes: %w", len(fromNodeKeys), err)
	}
	r.logger.Debug("Choices deleted for stale nodes", zap.String("storyID", storyID.String()), zap.Int64("deleted", tag.RowsAffected()))
	return nil
}

// ReplaceAll deletes every choice of the story and inserts the given set.
func (r *pgStoryChoiceRepository) ReplaceAll(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID, choices []models.Choice) (int, error) {
	if _, err := querier.Exec(ctx, deleteAllChoicesQuery, storyID); err != nil {
		r.logger.Error("Failed to clear story choices", zap.String("storyID", storyID.String()), zap.Error(err))
		return 0, fmt.Errorf("failed to clear choices for story %s: %w", storyID, err)
	}

	written := 0
	for i := range choices {
		choice := &choices[i]
		if choice.ID == uuid.Nil {
			choice.ID = uuid.New()
		}
		_, err := querier.Exec(ctx, insertChoiceQuery,
			choice.ID,
			choice.StoryID,
			choice.FromNodeKey,
			choice.Label,
			choice.ToNodeKey,
			choice.Match,
			choice.Effect,
			choice.SortIndex,
		)
		if err != nil {
			r.logger.Error("Failed to insert choice", zap.String("fromNodeKey", choice.FromNodeKey), zap.Error(err))
			return written, fmt.Errorf("failed to insert choice from %s: %w", choice.FromNodeKey, err)
		}
		written++
	}
	r.logger.Debug("Story choices replaced", zap.String("storyID", storyID.String()), zap.Int("written", written))
	return written, nil
}
