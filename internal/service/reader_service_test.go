package service_test

import (
	"context"
	"testing"
	"time"

	"story-server/internal/interfaces"
	"story-server/internal/models"
	"story-server/internal/service"
	"story-server/internal/traversal"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore backs the repository interfaces for service tests.
type memStore struct {
	story    *models.Story
	nodes    []models.StoryNode
	choices  []models.Choice
	sessions map[uuid.UUID]*models.PlayerSession
}

var (
	_ interfaces.StoryRepository       = (*memStore)(nil)
	_ interfaces.StoryNodeRepository   = (*memStore)(nil)
	_ interfaces.StoryChoiceRepository = choiceView{}
	_ interfaces.SessionRepository     = (*memStore)(nil)
)

// choiceView exposes memStore as interfaces.StoryChoiceRepository; its
// ListByStory signature cannot coexist with StoryNodeRepository's on one type.
type choiceView struct{ *memStore }

func (c choiceView) ListByStory(_ context.Context, _ interfaces.DBTX, _ uuid.UUID) ([]models.Choice, error) {
	return c.choices, nil
}

func (m *memStore) GetBySlug(_ context.Context, _ interfaces.DBTX, slug string) (*models.Story, error) {
	if m.story == nil || m.story.Slug != slug {
		return nil, models.ErrNotFound
	}
	copied := *m.story
	return &copied, nil
}

func (m *memStore) GetByID(_ context.Context, _ interfaces.DBTX, id uuid.UUID) (*models.Story, error) {
	if m.story == nil || m.story.ID != id {
		return nil, models.ErrNotFound
	}
	copied := *m.story
	return &copied, nil
}

func (m *memStore) Upsert(_ context.Context, _ interfaces.DBTX, story *models.Story) (uuid.UUID, error) {
	copied := *story
	m.story = &copied
	return story.ID, nil
}

func (m *memStore) SetPublished(_ context.Context, _ interfaces.DBTX, id uuid.UUID, published bool) error {
	if m.story == nil || m.story.ID != id {
		return models.ErrNotFound
	}
	m.story.IsPublished = published
	return nil
}

func (m *memStore) ListPublished(_ context.Context, _ interfaces.DBTX) ([]models.Story, error) {
	if m.story != nil && m.story.IsPublished {
		return []models.Story{*m.story}, nil
	}
	return nil, nil
}

func (m *memStore) ListByStory(_ context.Context, _ interfaces.DBTX, _ uuid.UUID) ([]models.StoryNode, error) {
	return m.nodes, nil
}

func (m *memStore) GetByKey(_ context.Context, _ interfaces.DBTX, _ uuid.UUID, key string) (*models.StoryNode, error) {
	for i := range m.nodes {
		if m.nodes[i].NodeKey == key {
			return &m.nodes[i], nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) UpsertBatch(_ context.Context, _ interfaces.DBTX, nodes []models.StoryNode) (int, error) {
	m.nodes = append(m.nodes, nodes...)
	return len(nodes), nil
}

func (m *memStore) DeleteByKeys(_ context.Context, _ interfaces.DBTX, _ uuid.UUID, _ []string) error {
	return nil
}

func (m *memStore) DeleteAll(_ context.Context, _ interfaces.DBTX, _ uuid.UUID) error {
	m.nodes = nil
	return nil
}

func (m *memStore) DeleteForNodes(_ context.Context, _ interfaces.DBTX, _ uuid.UUID, _ []string) error {
	return nil
}

func (m *memStore) ReplaceAll(_ context.Context, _ interfaces.DBTX, _ uuid.UUID, choices []models.Choice) (int, error) {
	m.choices = choices
	return len(choices), nil
}

func (m *memStore) Save(_ context.Context, session *models.PlayerSession, _ time.Duration) error {
	if m.sessions == nil {
		m.sessions = make(map[uuid.UUID]*models.PlayerSession)
	}
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*models.PlayerSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.sessions, id)
	return nil
}

func publishedStore() *memStore {
	return &memStore{
		story: &models.Story{
			ID:          uuid.New(),
			Slug:        "hulen",
			Title:       "Hulen",
			IsPublished: true,
			Version:     1,
		},
		nodes: []models.StoryNode{
			{NodeKey: "1", Text: "Start.", SortIndex: 0},
			{NodeKey: "2", Text: "Middle.", SortIndex: 1},
			{NodeKey: "END", Text: "Done.", SortIndex: 2},
		},
		choices: []models.Choice{
			{FromNodeKey: "1", Label: "On", ToNodeKey: "2", SortIndex: 0},
			{FromNodeKey: "2", Label: "Finish", ToNodeKey: "END", SortIndex: 0},
		},
	}
}

func newReader(store *memStore, policy traversal.CheckPolicy) *service.ReaderService {
	return service.NewReaderService(store, store, choiceView{store}, store, nil, policy, zap.NewNop())
}

func TestReaderService_StartSession(t *testing.T) {
	store := publishedStore()
	svc := newReader(store, nil)
	ctx := context.Background()

	t.Run("starts at entry with default stats", func(t *testing.T) {
		session, node, branching, err := svc.StartSession(ctx, "hulen")
		require.NoError(t, err)

		assert.Equal(t, "1", session.CurrentNodeKey)
		assert.Equal(t, "1", node.NodeKey)
		assert.Equal(t, models.DefaultStartingStats(), session.Stats)
		assert.Equal(t, models.BranchChoices, branching.Kind)
		require.Contains(t, store.sessions, session.ID)
	})

	t.Run("story stat block overrides defaults", func(t *testing.T) {
		store.story.DefaultStats = map[string]int{"Mod": 5}
		defer func() { store.story.DefaultStats = nil }()

		session, _, _, err := svc.StartSession(ctx, "hulen")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"Mod": 5}, session.Stats)

		// The session must own its stat map, not alias the story's.
		session.Stats["Mod"] = 99
		assert.Equal(t, 5, store.story.DefaultStats["Mod"])
	})

	t.Run("unknown slug", func(t *testing.T) {
		_, _, _, err := svc.StartSession(ctx, "nope")
		require.ErrorIs(t, err, models.ErrStoryNotFound)
	})

	t.Run("unpublished story is invisible", func(t *testing.T) {
		store.story.IsPublished = false
		defer func() { store.story.IsPublished = true }()

		_, _, _, err := svc.StartSession(ctx, "hulen")
		require.ErrorIs(t, err, models.ErrStoryUnpublished)
	})
}

func TestReaderService_TraverseToEnd(t *testing.T) {
	store := publishedStore()
	svc := newReader(store, nil)
	ctx := context.Background()

	session, _, _, err := svc.StartSession(ctx, "hulen")
	require.NoError(t, err)

	session, node, _, err := svc.ApplyChoice(ctx, session.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "2", node.NodeKey)
	assert.False(t, session.Completed)

	session, node, branching, err := svc.ApplyChoice(ctx, session.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "END", node.NodeKey)
	assert.True(t, session.Completed)
	assert.Equal(t, models.BranchTerminal, branching.Kind)

	// A finished session accepts no further moves.
	_, _, _, err = svc.ApplyChoice(ctx, session.ID, 0)
	require.ErrorIs(t, err, models.ErrSessionTerminal)
}

func TestReaderService_ApplyCheckPersistsPenalty(t *testing.T) {
	store := publishedStore()
	store.nodes[0].DiceCheck = &models.DiceCheck{Stat: "Evner", DC: 9, Success: "2", Fail: "END"}
	store.choices = store.choices[1:] // node 1 now checks instead of choosing

	failPolicy := func(statValue, dc int) (int, bool) { return 2, false }
	svc := newReader(store, failPolicy)
	ctx := context.Background()

	session, _, _, err := svc.StartSession(ctx, "hulen")
	require.NoError(t, err)

	result, session, node, _, err := svc.ApplyCheck(ctx, session.ID)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "END", node.NodeKey)
	assert.Equal(t, 8, session.Stats["Evner"])

	// The penalty must survive a reload from the session store.
	reloaded, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, reloaded.Stats["Evner"])
	assert.True(t, reloaded.Completed)
}

func TestReaderService_SessionExpiry(t *testing.T) {
	store := publishedStore()
	svc := newReader(store, nil)

	_, _, _, err := svc.CurrentNode(context.Background(), uuid.New())
	require.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestReaderService_DanglingDestinationSurfaces(t *testing.T) {
	ctx := context.Background()

	t.Run("choice to missing node", func(t *testing.T) {
		store := publishedStore()
		store.choices = append(store.choices, models.Choice{FromNodeKey: "1", Label: "Off the map", ToNodeKey: "ghost", SortIndex: 1})
		svc := newReader(store, nil)

		session, _, _, err := svc.StartSession(ctx, "hulen")
		require.NoError(t, err)

		_, _, _, err = svc.ApplyChoice(ctx, session.ID, 1)
		require.ErrorIs(t, err, models.ErrNotFound)

		// The move itself is persisted; the session stands on the missing key.
		reloaded, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "ghost", reloaded.CurrentNodeKey)
		assert.True(t, reloaded.Completed)
	})

	t.Run("check routed to missing node", func(t *testing.T) {
		store := publishedStore()
		store.nodes[0].DiceCheck = &models.DiceCheck{Stat: "Evner", DC: 8, Success: "2", Fail: "void"}
		failPolicy := func(statValue, dc int) (int, bool) { return 2, false }
		svc := newReader(store, failPolicy)

		session, _, _, err := svc.StartSession(ctx, "hulen")
		require.NoError(t, err)

		_, _, _, _, err = svc.ApplyCheck(ctx, session.ID)
		require.ErrorIs(t, err, models.ErrNotFound)

		reloaded, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "void", reloaded.CurrentNodeKey)
	})
}
