package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"story-server/internal/interfaces"
	"story-server/internal/models"
	"story-server/internal/traversal"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionTTL is how long an idle reading session survives between
// requests before it expires from the session store.
const DefaultSessionTTL = 72 * time.Hour

// ReaderService serves the reading surface: story discovery, session
// lifecycle and traversal. Sessions are loaded from the session store on
// every call, mutated through the traversal engine and saved back.
type ReaderService struct {
	stories    interfaces.StoryRepository
	nodes      interfaces.StoryNodeRepository
	choices    interfaces.StoryChoiceRepository
	sessions   interfaces.SessionRepository
	db         interfaces.DBTX
	policy     traversal.CheckPolicy
	sessionTTL time.Duration
	logger     *zap.Logger
}

func NewReaderService(
	stories interfaces.StoryRepository,
	nodes interfaces.StoryNodeRepository,
	choices interfaces.StoryChoiceRepository,
	sessions interfaces.SessionRepository,
	db interfaces.DBTX,
	policy traversal.CheckPolicy,
	logger *zap.Logger,
) *ReaderService {
	return &ReaderService{
		stories:    stories,
		nodes:      nodes,
		choices:    choices,
		sessions:   sessions,
		db:         db,
		policy:     policy,
		sessionTTL: DefaultSessionTTL,
		logger:     logger.Named("ReaderService"),
	}
}

// ListStories returns all published stories.
func (s *ReaderService) ListStories(ctx context.Context) ([]models.Story, error) {
	return s.stories.ListPublished(ctx, s.db)
}

// StartSession begins a new reading session at the story's entry node.
// Unpublished stories are invisible to readers regardless of whether the
// caller knows the slug.
func (s *ReaderService) StartSession(ctx context.Context, slug string) (*models.PlayerSession, *models.StoryNode, models.Branching, error) {
	story, err := s.stories.GetBySlug(ctx, s.db, slug)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.Branching{}, models.ErrStoryNotFound
		}
		return nil, nil, models.Branching{}, err
	}
	if !story.IsPublished {
		return nil, nil, models.Branching{}, models.ErrStoryUnpublished
	}

	graph, err := s.loadGraph(ctx, story.ID)
	if err != nil {
		return nil, nil, models.Branching{}, err
	}
	entry := graph.Entry()
	if entry == "" {
		return nil, nil, models.Branching{}, fmt.Errorf("story %s has no nodes: %w", slug, models.ErrNotFound)
	}

	stats := story.DefaultStats
	if len(stats) == 0 {
		stats = models.DefaultStartingStats()
	} else {
		// Sessions own their stat block; never alias the story's map.
		copied := make(map[string]int, len(stats))
		for k, v := range stats {
			copied[k] = v
		}
		stats = copied
	}

	session := &models.PlayerSession{
		ID:             uuid.New(),
		StoryID:        story.ID,
		CurrentNodeKey: entry,
		Stats:          stats,
		StartedAt:      time.Now(),
	}
	if err := s.sessions.Save(ctx, session, s.sessionTTL); err != nil {
		return nil, nil, models.Branching{}, err
	}

	node, _ := graph.Node(entry)
	s.logger.Info("Reading session started",
		zap.String("sessionID", session.ID.String()),
		zap.String("slug", slug),
		zap.String("entryNode", entry),
	)
	return session, &node, graph.Branching(entry), nil
}

// CurrentNode returns the session together with the node it stands on and
// that node's branching variant.
func (s *ReaderService) CurrentNode(ctx context.Context, sessionID uuid.UUID) (*models.PlayerSession, *models.StoryNode, models.Branching, error) {
	session, graph, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, models.Branching{}, err
	}
	engine := traversal.NewEngine(graph, s.policy)
	node, err := engine.CurrentNode(session)
	if err != nil {
		return nil, nil, models.Branching{}, err
	}
	return session, &node, graph.Branching(session.CurrentNodeKey), nil
}

// ApplyChoice advances the session along the indexed choice of its current
// node and persists the result.
func (s *ReaderService) ApplyChoice(ctx context.Context, sessionID uuid.UUID, choiceIndex int) (*models.PlayerSession, *models.StoryNode, models.Branching, error) {
	session, graph, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, models.Branching{}, err
	}
	if session.Completed {
		return nil, nil, models.Branching{}, models.ErrSessionTerminal
	}

	engine := traversal.NewEngine(graph, s.policy)
	if err := engine.ApplyChoice(session, choiceIndex); err != nil {
		return nil, nil, models.Branching{}, err
	}
	if err := s.sessions.Save(ctx, session, s.sessionTTL); err != nil {
		return nil, nil, models.Branching{}, err
	}

	// Dangling destinations are legal at ingestion time but the reader has to
	// hear about hitting one; the transition itself stays persisted.
	node, ok := graph.Node(session.CurrentNodeKey)
	if !ok {
		return nil, nil, models.Branching{}, fmt.Errorf("choice led to missing node %q: %w", session.CurrentNodeKey, models.ErrNotFound)
	}
	return session, &node, graph.Branching(session.CurrentNodeKey), nil
}

// ApplyCheck resolves the dice check on the session's current node and
// persists the result.
func (s *ReaderService) ApplyCheck(ctx context.Context, sessionID uuid.UUID) (*models.CheckResult, *models.PlayerSession, *models.StoryNode, models.Branching, error) {
	session, graph, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, models.Branching{}, err
	}
	if session.Completed {
		return nil, nil, nil, models.Branching{}, models.ErrSessionTerminal
	}

	engine := traversal.NewEngine(graph, s.policy)
	result, err := engine.ApplyCheck(session)
	if err != nil {
		return nil, nil, nil, models.Branching{}, err
	}
	if err := s.sessions.Save(ctx, session, s.sessionTTL); err != nil {
		return nil, nil, nil, models.Branching{}, err
	}

	node, ok := graph.Node(session.CurrentNodeKey)
	if !ok {
		return nil, nil, nil, models.Branching{}, fmt.Errorf("check led to missing node %q: %w", session.CurrentNodeKey, models.ErrNotFound)
	}
	s.logger.Debug("Dice check resolved",
		zap.String("sessionID", session.ID.String()),
		zap.String("stat", result.Stat),
		zap.Int("roll", result.Roll),
		zap.Bool("success", result.Success),
	)
	return result, session, &node, graph.Branching(session.CurrentNodeKey), nil
}

// EndSession discards a session.
func (s *ReaderService) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessions.Delete(ctx, sessionID)
}

func (s *ReaderService) loadSession(ctx context.Context, sessionID uuid.UUID) (*models.PlayerSession, *traversal.Graph, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	graph, err := s.loadGraph(ctx, session.StoryID)
	if err != nil {
		return nil, nil, err
	}
	return session, graph, nil
}

func (s *ReaderService) loadGraph(ctx context.Context, storyID uuid.UUID) (*traversal.Graph, error) {
	nodes, err := s.nodes.ListByStory(ctx, s.db, storyID)
	if err != nil {
		return nil, err
	}
	choices, err := s.choices.ListByStory(ctx, s.db, storyID)
	if err != nil {
		return nil, err
	}
	return traversal.NewGraph(nodes, choices), nil
}
