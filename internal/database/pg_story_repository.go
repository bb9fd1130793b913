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
var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	logger *zap.Logger
}

func NewPgStoryRepository(logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{
		logger: logger.Named("PgStoryRepo"),
	}
}

const getStoryBySlugQuery = `
SELECT id, slug, title, description, cover_image_url, estimated_time, age_rating, author,
       is_published, version, default_stats, created_at, updated_at
FROM stories
WHERE slug = $1`

const getStoryByIDQuery = `
SELECT id, slug, title, description, cover_image_url, estimated_time, age_rating, author,
       is_published, version, default_stats, created_at, updated_at
FROM stories
WHERE id = $1`

const upsertStoryQuery = `
INSERT INTO stories (id, slug, title, description, cover_image_url, estimated_time, age_rating, author,
                     is_published, version, default_stats, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (slug) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	cover_image_url = EXCLUDED.cover_image_url,
	estimated_time = EXCLUDED.estimated_time,
	age_rating = EXCLUDED.age_rating,
	author = EXCLUDED.author,
	is_published = EXCLUDED.is_published,
	version = EXCLUDED.version,
	default_stats = EXCLUDED.default_stats,
	updated_at = EXCLUDED.updated_at
RETURNING id`

const setStoryPublishedQuery = `
UPDATE stories SET is_published = $2, updated_at = NOW() WHERE id = $1`

const listPublishedStoriesQuery = `
SELECT id, slug, title, description, cover_image_url, estimated_time, age_rating, author,
       is_published, version, default_stats, created_at, updated_at
FROM stories
WHERE is_published = TRUE
ORDER BY created_at DESC`

// GetBySlug retrieves a story by its slug.
func (r *pgStoryRepository) GetBySlug(ctx context.Context, querier interfaces.DBTX, slug string) (*models.Story, error) {
	story := &models.Story{}
	err := pgxscan.Get(ctx, querier, story, getStoryBySlugQuery, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story not found by slug", zap.String("slug", slug))
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story by slug", zap.String("slug", slug), zap.Error(err))
		return nil, fmt.Errorf("failed to get story by slug %s: %w", slug, err)
	}
	return story, nil
}

// GetByID retrieves a story by its unique ID.
func (r *pgStoryRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Story, error) {
	story := &models.Story{}
	err := pgxscan.Get(ctx, querier, story, getStoryByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story not found by ID", zap.String("storyID", id.String()))
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story by ID", zap.String("storyID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get story by ID %s: %w", id, err)
	}
	return story, nil
}

// Upsert inserts or updates a story by slug and returns its ID.
func (r *pgStoryRepository) Upsert(ctx context.Context, querier interfaces.DBTX, story *models.Story) (uuid.UUID, error) {
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now()
	}
	story.UpdatedAt = time.Now()

	var id uuid.UUID
	err := querier.QueryRow(ctx, upsertStoryQuery,
		story.ID,
		story.Slug,
		story.Title,
		story.Description,
		story.CoverImageURL,
		story.EstimatedTime,
		story.AgeRating,
		story.Author,
		story.IsPublished,
		story.Version,
		story.DefaultStats,
		story.CreatedAt,
		story.UpdatedAt,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to upsert story", zap.String("slug", story.Slug), zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to upsert story %s: %w", story.Slug, err)
	}
	story.ID = id
	r.logger.Info("Story upserted", zap.String("slug", story.Slug), zap.String("storyID", id.String()), zap.Int("version", story.Version))
	return id, nil
}

// SetPublished flips the publish flag without touching anything else.
func (r *pgStoryRepository) SetPublished(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, published bool) error {
	tag, err := querier.Exec(ctx, setStoryPublishedQuery, id, published)
	if err != nil {
		r.logger.Error("Failed to set publish flag", zap.String("storyID", id.String()), zap.Error(err))
		return fmt.Errorf("failed to set publish flag for story %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	r.logger.Info("Story publish flag updated", zap.String("storyID", id.String()), zap.Bool("published", published))
	return nil
}

// ListPublished returns all published stories, newest first.
func (r *pgStoryRepository) ListPublished(ctx context.Context, querier interfaces.DBTX) ([]models.Story, error) {
	var stories []models.Story
	err := pgxscan.Select(ctx, querier, &stories, listPublishedStoriesQuery)
	if err != nil {
		r.logger.Error("Failed to list published stories", zap.Error(err))
		return nil, fmt.Errorf("failed to list published stories: %w", err)
	}
	return stories, nil
}
