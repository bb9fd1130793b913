package database_test

import (
	"context"
	"testing"
	"time"

	"story-server/internal/database"
	"story-server/internal/models"
	"story-server/migrations"
	"story-server/pkg/migration"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// PgRepositorySuite runs the story repositories against a real PostgreSQL in
// a container.
type PgRepositorySuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
}

func TestPgRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(PgRepositorySuite))
}

func (s *PgRepositorySuite) SetupSuite() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = pgxpool.New(ctx, connStr)
	require.NoError(s.T(), err)

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, s.pool)
	require.NoError(s.T(), migrator.Up(ctx))
}

func (s *PgRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(context.Background())
	}
}

func (s *PgRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE stories CASCADE")
	require.NoError(s.T(), err)
}

func (s *PgRepositorySuite) seedStory(ctx context.Context) *models.Story {
	repo := database.NewPgStoryRepository(zap.NewNop())
	story := &models.Story{
		ID:           uuid.New(),
		Slug:         "hulen",
		Title:        "Hulen",
		Version:      1,
		DefaultStats: map[string]int{"Evner": 10, "Udholdenhed": 18, "Held": 10},
	}
	_, err := repo.Upsert(ctx, s.pool, story)
	require.NoError(s.T(), err)
	return story
}

func (s *PgRepositorySuite) TestStoryRoundTrip() {
	ctx := context.Background()
	repo := database.NewPgStoryRepository(zap.NewNop())
	story := s.seedStory(ctx)

	loaded, err := repo.GetBySlug(ctx, s.pool, "hulen")
	s.Require().NoError(err)
	s.Equal(story.ID, loaded.ID)
	s.Equal("Hulen", loaded.Title)
	s.Equal(map[string]int{"Evner": 10, "Udholdenhed": 18, "Held": 10}, loaded.DefaultStats)
	s.False(loaded.IsPublished)

	_, err = repo.GetBySlug(ctx, s.pool, "no-such-slug")
	s.Require().ErrorIs(err, models.ErrNotFound)
}

func (s *PgRepositorySuite) TestStoryUpsertIsIdempotentOnSlug() {
	ctx := context.Background()
	repo := database.NewPgStoryRepository(zap.NewNop())
	story := s.seedStory(ctx)

	updated := *story
	updated.Title = "Hulen, revised"
	updated.Version = 2
	_, err := repo.Upsert(ctx, s.pool, &updated)
	s.Require().NoError(err)

	loaded, err := repo.GetBySlug(ctx, s.pool, "hulen")
	s.Require().NoError(err)
	s.Equal(story.ID, loaded.ID, "slug conflict must update, not duplicate")
	s.Equal("Hulen, revised", loaded.Title)
	s.Equal(2, loaded.Version)
}

func (s *PgRepositorySuite) TestSetPublishedAndList() {
	ctx := context.Background()
	repo := database.NewPgStoryRepository(zap.NewNop())
	story := s.seedStory(ctx)

	published, err := repo.ListPublished(ctx, s.pool)
	s.Require().NoError(err)
	s.Empty(published)

	s.Require().NoError(repo.SetPublished(ctx, s.pool, story.ID, true))

	published, err = repo.ListPublished(ctx, s.pool)
	s.Require().NoError(err)
	s.Require().Len(published, 1)
	s.Equal("hulen", published[0].Slug)

	s.Require().ErrorIs(repo.SetPublished(ctx, s.pool, uuid.New(), true), models.ErrNotFound)
}

func (s *PgRepositorySuite) TestNodeUpsertConflictAndDelete() {
	ctx := context.Background()
	story := s.seedStory(ctx)
	nodeRepo := database.NewPgStoryNodeRepository(zap.NewNop())

	img := "https://cdn.example/pic.png"
	nodes := []models.StoryNode{
		{StoryID: story.ID, NodeKey: "1", Text: "a", SortIndex: 0, ImageURL: &img},
		{StoryID: story.ID, NodeKey: "2", Text: "b", SortIndex: 1, DiceCheck: &models.DiceCheck{Stat: "Evner", DC: 9, Success: "3", Fail: "4"}},
	}
	written, err := nodeRepo.UpsertBatch(ctx, s.pool, nodes)
	s.Require().NoError(err)
	s.Equal(2, written)

	// Same key again: update in place, not a duplicate row.
	written, err = nodeRepo.UpsertBatch(ctx, s.pool, []models.StoryNode{
		{StoryID: story.ID, NodeKey: "1", Text: "a, revised", SortIndex: 0},
	})
	s.Require().NoError(err)
	s.Equal(1, written)

	listed, err := nodeRepo.ListByStory(ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal("a, revised", listed[0].Text)
	s.Require().NotNil(listed[1].DiceCheck)
	s.Equal(9, listed[1].DiceCheck.DC)

	s.Require().NoError(nodeRepo.DeleteByKeys(ctx, s.pool, story.ID, []string{"2"}))
	listed, err = nodeRepo.ListByStory(ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Len(listed, 1)

	s.Require().NoError(nodeRepo.DeleteAll(ctx, s.pool, story.ID))
	listed, err = nodeRepo.ListByStory(ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Empty(listed)
}

func (s *PgRepositorySuite) TestChoiceReplaceAll() {
	ctx := context.Background()
	story := s.seedStory(ctx)
	choiceRepo := database.NewPgStoryChoiceRepository(zap.NewNop())

	first := []models.Choice{
		{StoryID: story.ID, FromNodeKey: "1", Label: "Left", ToNodeKey: "2", Match: []string{"venstre", "left"}, SortIndex: 0},
		{StoryID: story.ID, FromNodeKey: "1", Label: "Right", ToNodeKey: "3", Effect: map[string]int{"Held": -1}, SortIndex: 1},
	}
	written, err := choiceRepo.ReplaceAll(ctx, s.pool, story.ID, first)
	s.Require().NoError(err)
	s.Equal(2, written)

	second := []models.Choice{
		{StoryID: story.ID, FromNodeKey: "1", Label: "Onward", ToNodeKey: "4", SortIndex: 0},
	}
	written, err = choiceRepo.ReplaceAll(ctx, s.pool, story.ID, second)
	s.Require().NoError(err)
	s.Equal(1, written)

	listed, err := choiceRepo.ListByStory(ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal("Onward", listed[0].Label)

	s.Require().NoError(choiceRepo.DeleteForNodes(ctx, s.pool, story.ID, []string{"1"}))
	listed, err = choiceRepo.ListByStory(ctx, s.pool, story.ID)
	s.Require().NoError(err)
	s.Empty(listed)
}
