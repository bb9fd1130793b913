package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"story-server/internal/ingest"
	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	ingestRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_ingest_runs_total",
		Help: "Ingestion runs by outcome.",
	}, []string{"status"})

	ingestNodesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_ingest_nodes_written_total",
		Help: "Nodes written across all ingestion runs.",
	})

	ingestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "story_ingest_duration_seconds",
		Help:    "Wall-clock duration of ingestion runs.",
		Buckets: prometheus.DefBuckets,
	})
)

// IngestService orchestrates one tabular upload end to end: parse, build the
// candidate graph, resolve media references, synchronize against storage.
type IngestService struct {
	builder      *ingest.Builder
	synchronizer *ingest.Synchronizer
	stories      interfaces.StoryRepository
	nodes        interfaces.StoryNodeRepository
	choices      interfaces.StoryChoiceRepository
	db           interfaces.DBTX
	resolver     interfaces.MediaResolver      // optional
	mediaTasks   interfaces.MediaTaskPublisher // optional
	logger       *zap.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

func NewIngestService(
	builder *ingest.Builder,
	synchronizer *ingest.Synchronizer,
	stories interfaces.StoryRepository,
	nodes interfaces.StoryNodeRepository,
	choices interfaces.StoryChoiceRepository,
	db interfaces.DBTX,
	resolver interfaces.MediaResolver,
	mediaTasks interfaces.MediaTaskPublisher,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		builder:      builder,
		synchronizer: synchronizer,
		stories:      stories,
		nodes:        nodes,
		choices:      choices,
		db:           db,
		resolver:     resolver,
		mediaTasks:   mediaTasks,
		logger:       logger.Named("IngestService"),
		running:      make(map[string]struct{}),
	}
}

// Ingest parses raw tabular source and synchronizes the resulting graph for
// the given slug. Only one ingestion per slug may run at a time; a concurrent
// request for the same slug fails fast with ErrIngestRunning rather than
// queueing up conflicting writes.
func (s *IngestService) Ingest(ctx context.Context, slug, raw string, publish bool) (*models.IngestReport, error) {
	if err := s.acquire(slug); err != nil {
		return nil, err
	}
	defer s.release(slug)

	start := time.Now()
	report, err := s.ingest(ctx, slug, raw, publish)
	ingestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		ingestRunsTotal.WithLabelValues("error").Inc()
		return report, err
	}
	ingestRunsTotal.WithLabelValues("ok").Inc()
	ingestNodesWritten.Add(float64(report.NodesWritten))
	return report, nil
}

func (s *IngestService) ingest(ctx context.Context, slug, raw string, publish bool) (*models.IngestReport, error) {
	rows := ingest.ParseTable(raw)
	if len(rows) < 2 {
		return nil, fmt.Errorf("source for %s has no data rows: %w", slug, models.ErrEmptySource)
	}

	candidate := s.builder.Build(slug, rows)
	if len(candidate.Nodes) == 0 {
		return nil, fmt.Errorf("source for %s produced no usable nodes: %w", slug, models.ErrEmptySource)
	}

	s.resolveMedia(ctx, candidate)

	return s.synchronizer.Sync(ctx, candidate, publish)
}

// resolveMedia tries to turn asset tags into absolute URLs via the media
// service. Unresolved tags are kept as-is and handed to the media pipeline as
// tasks; neither step may ever fail an ingestion.
func (s *IngestService) resolveMedia(ctx context.Context, candidate *models.CandidateGraph) {
	for i := range candidate.Nodes {
		node := &candidate.Nodes[i]
		if node.ImageURL == nil || !ingest.IsAssetTag(*node.ImageURL) {
			continue
		}
		tag := *node.ImageURL

		if s.resolver != nil {
			if url, err := s.resolver.Resolve(ctx, candidate.Slug, tag); err == nil {
				node.ImageURL = &url
				continue
			}
		}

		if s.mediaTasks != nil {
			err := s.mediaTasks.PublishMediaTask(ctx, interfaces.MediaTaskPayload{
				StorySlug: candidate.Slug,
				NodeKey:   node.NodeKey,
				AssetTag:  tag,
			})
			if err != nil {
				s.logger.Warn("Failed to publish media task, tag stored unresolved",
					zap.String("slug", candidate.Slug),
					zap.String("nodeKey", node.NodeKey),
					zap.String("assetTag", tag),
					zap.Error(err),
				)
			}
		}
	}
}

// SetPublished flips a story's publish flag.
func (s *IngestService) SetPublished(ctx context.Context, storyID uuid.UUID, published bool) error {
	if err := s.stories.SetPublished(ctx, s.db, storyID, published); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrStoryNotFound
		}
		return err
	}
	return nil
}

// GetStoryGraph returns the persisted story with its full node and choice
// sets, for admin inspection.
func (s *IngestService) GetStoryGraph(ctx context.Context, slug string) (*models.Story, []models.StoryNode, []models.Choice, error) {
	story, err := s.stories.GetBySlug(ctx, s.db, slug)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, nil, models.ErrStoryNotFound
		}
		return nil, nil, nil, err
	}
	nodes, err := s.nodes.ListByStory(ctx, s.db, story.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	choices, err := s.choices.ListByStory(ctx, s.db, story.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return story, nodes, choices, nil
}

func (s *IngestService) acquire(slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[slug]; busy {
		return fmt.Errorf("slug %s: %w", slug, models.ErrIngestRunning)
	}
	s.running[slug] = struct{}{}
	return nil
}

func (s *IngestService) release(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, slug)
}
