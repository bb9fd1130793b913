package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// deleteBatchSize bounds how many node keys one delete statement may carry,
// to stay under backend request-size limits.
const deleteBatchSize = 50

// Synchronizer reconciles a candidate graph against the persisted graph of
// the same story. Re-ingestion must never erase editor-only state (generated
// media) that the tabular source does not carry, so the synchronizer merges
// before it writes.
type Synchronizer struct {
	stories interfaces.StoryRepository
	nodes   interfaces.StoryNodeRepository
	choices interfaces.StoryChoiceRepository
	db      interfaces.DBTX
	logger  *zap.Logger
}

func NewSynchronizer(
	stories interfaces.StoryRepository,
	nodes interfaces.StoryNodeRepository,
	choices interfaces.StoryChoiceRepository,
	db interfaces.DBTX,
	logger *zap.Logger,
) *Synchronizer {
	return &Synchronizer{
		stories: stories,
		nodes:   nodes,
		choices: choices,
		db:      db,
		logger:  logger.Named("DiffSynchronizer"),
	}
}

// Sync applies the candidate graph to storage: story upsert, preservation
// merge, deletion of stale nodes (with escalating fallback), node upsert and
// full choice replacement. Steps are strictly sequential; the delete set is
// computed against the pre-upsert persisted state.
//
// A story upsert failure aborts the run. Node/choice failures after that are
// reported through the returned report rather than rolled back — the target
// backends have no cross-statement transactions at this layer.
func (s *Synchronizer) Sync(ctx context.Context, candidate *models.CandidateGraph, publish bool) (*models.IngestReport, error) {
	log := s.logger.With(zap.String("slug", candidate.Slug))
	report := &models.IngestReport{
		Slug:         candidate.Slug,
		RowsSkipped:  candidate.Skipped,
		NodesTotal:   len(candidate.Nodes),
		ChoicesTotal: len(candidate.Choices),
	}

	// Story record first: nodes must never be attached to a story that does
	// not exist or failed to write.
	story, err := s.upsertStory(ctx, candidate, publish)
	if err != nil {
		return report, fmt.Errorf("%w: %v", models.ErrStoryUpsert, err)
	}
	report.StoryID = story.ID
	report.Version = story.Version
	report.Published = story.IsPublished

	existing, err := s.nodes.ListByStory(ctx, s.db, story.ID)
	if err != nil {
		return report, fmt.Errorf("failed to read persisted nodes: %w", err)
	}
	existingByKey := make(map[string]models.StoryNode, len(existing))
	for _, n := range existing {
		existingByKey[n.NodeKey] = n
	}

	nodes, dropped := dedupeKeepLast(candidate.Nodes)
	report.DuplicatesDropped = dropped
	if dropped > 0 {
		log.Warn("Candidate set contained duplicate node keys, kept last occurrences", zap.Int("dropped", dropped))
	}

	for i := range nodes {
		nodes[i].StoryID = story.ID
		mergePreserved(&nodes[i], existingByKey)
	}

	deleteSet := computeDeleteSet(existing, nodes)
	report.DeletionsAttempted = len(deleteSet)
	if len(deleteSet) > 0 {
		confirmed, nuclear := s.deleteStale(ctx, story.ID, deleteSet, log)
		report.DeletionsConfirmed = confirmed
		report.NuclearFallbackUsed = nuclear
	}

	written, err := s.upsertNodes(ctx, nodes)
	report.NodesWritten = written
	if err != nil {
		// Partial success: report what landed, keep going where safe.
		log.Error("Node upsert incomplete", zap.Int("written", written), zap.Int("total", len(nodes)), zap.Error(err))
		return report, nil
	}

	choices := candidate.Choices
	for i := range choices {
		choices[i].StoryID = story.ID
	}
	choicesWritten, err := s.choices.ReplaceAll(ctx, s.db, story.ID, choices)
	report.ChoicesWritten = choicesWritten
	if err != nil {
		log.Error("Choice replacement incomplete", zap.Int("written", choicesWritten), zap.Int("total", len(choices)), zap.Error(err))
		return report, nil
	}

	log.Info("Story synchronized",
		zap.String("storyID", story.ID.String()),
		zap.Int("version", story.Version),
		zap.Int("nodes", report.NodesWritten),
		zap.Int("choices", report.ChoicesWritten),
		zap.Int("deleted", report.DeletionsConfirmed),
	)
	return report, nil
}

// upsertStory creates the story on first ingestion and bumps the version on
// every later one. The publish flag only ever moves towards published unless
// the caller explicitly requests publication: an ingestion that does not ask
// to publish must never silently unpublish a live story.
func (s *Synchronizer) upsertStory(ctx context.Context, candidate *models.CandidateGraph, publish bool) (*models.Story, error) {
	story := candidate.Story
	story.Slug = candidate.Slug

	prev, err := s.stories.GetBySlug(ctx, s.db, candidate.Slug)
	switch {
	case err == nil:
		story.ID = prev.ID
		story.Version = prev.Version + 1
		story.IsPublished = prev.IsPublished || publish
		if story.DefaultStats == nil {
			story.DefaultStats = prev.DefaultStats
		}
	case errors.Is(err, models.ErrNotFound):
		story.ID = uuid.New()
		story.Version = 1
		story.IsPublished = publish
		story.CreatedAt = time.Now()
	default:
		return nil, err
	}

	if _, err := s.stories.Upsert(ctx, s.db, &story); err != nil {
		return nil, err
	}
	return &story, nil
}

// mergePreserved copies forward persisted media values for fields the
// candidate leaves unset (nil, not empty string). A candidate that does carry
// a value always wins: explicit intent from the source overrides prior state.
func mergePreserved(node *models.StoryNode, existingByKey map[string]models.StoryNode) {
	prev, ok := existingByKey[node.NodeKey]
	if !ok {
		return
	}
	node.ID = prev.ID
	if node.ImageURL == nil {
		node.ImageURL = prev.ImageURL
	}
	// The tabular source never carries these; they only exist as editor state.
	if node.VideoURL == nil {
		node.VideoURL = prev.VideoURL
	}
	if node.AudioURL == nil {
		node.AudioURL = prev.AudioURL
	}
}

// dedupeKeepLast drops earlier occurrences of duplicated node keys. Malformed
// sources can repeat a key; the last row wins, matching source order being
// authoritative.
func dedupeKeepLast(nodes []models.StoryNode) ([]models.StoryNode, int) {
	lastIdx := make(map[string]int, len(nodes))
	for i, n := range nodes {
		lastIdx[n.NodeKey] = i
	}
	if len(lastIdx) == len(nodes) {
		return nodes, 0
	}
	out := make([]models.StoryNode, 0, len(lastIdx))
	for i, n := range nodes {
		if lastIdx[n.NodeKey] == i {
			out = append(out, n)
		}
	}
	return out, len(nodes) - len(out)
}

// computeDeleteSet returns persisted keys absent from the candidate set, plus
// any persisted key that fails the identifier heuristic — legacy rows written
// before key validation existed get cleaned up on the next ingestion.
func computeDeleteSet(existing []models.StoryNode, candidate []models.StoryNode) []string {
	keep := make(map[string]struct{}, len(candidate))
	for _, n := range candidate {
		keep[n.NodeKey] = struct{}{}
	}
	var stale []string
	for _, n := range existing {
		if _, ok := keep[n.NodeKey]; !ok {
			stale = append(stale, n.NodeKey)
			continue
		}
		if !LooksLikeNodeKey(n.NodeKey) {
			stale = append(stale, n.NodeKey)
		}
	}
	return stale
}

// deleteStale removes the delete set in bounded batches, verifies removal,
// retries leftovers individually, and as a last resort wipes the story's
// whole node set and lets the subsequent upsert repopulate it. Choices
// pointing out of doomed nodes go first to respect foreign-key ordering.
//
// Returns the number of confirmed deletions and whether the nuclear path ran.
func (s *Synchronizer) deleteStale(ctx context.Context, storyID uuid.UUID, deleteSet []string, log *zap.Logger) (int, bool) {
	if err := s.choices.DeleteForNodes(ctx, s.db, storyID, deleteSet); err != nil {
		log.Warn("Failed to delete choices for stale nodes, proceeding with node deletion", zap.Error(err))
	}

	for start := 0; start < len(deleteSet); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(deleteSet))
		if err := s.nodes.DeleteByKeys(ctx, s.db, storyID, deleteSet[start:end]); err != nil {
			log.Warn("Batched node delete failed", zap.Int("batchStart", start), zap.Error(err))
		}
	}

	residue, err := s.verifyResidue(ctx, storyID, deleteSet)
	if err != nil {
		log.Warn("Could not verify deletions", zap.Error(err))
		return 0, false
	}
	if len(residue) == 0 {
		return len(deleteSet), false
	}

	log.Warn("Stale nodes survived batched deletion, retrying individually", zap.Int("residue", len(residue)))
	for _, key := range residue {
		if err := s.nodes.DeleteByKeys(ctx, s.db, storyID, []string{key}); err != nil {
			log.Warn("Individual node delete failed", zap.String("nodeKey", key), zap.Error(err))
		}
	}

	residue, err = s.verifyResidue(ctx, storyID, deleteSet)
	if err != nil {
		log.Warn("Could not verify individual deletions", zap.Error(err))
		return 0, false
	}
	if len(residue) == 0 {
		return len(deleteSet), false
	}

	// Nuclear path: correctness over efficiency. The upsert that follows
	// rebuilds the full node set from the candidate graph.
	log.Error("Stale nodes still present after individual retries, wiping node set for rebuild",
		zap.Int("residue", len(residue)))
	if err := s.nodes.DeleteAll(ctx, s.db, storyID); err != nil {
		log.Error("Full node wipe failed", zap.Error(err))
		return len(deleteSet) - len(residue), true
	}
	return len(deleteSet), true
}

// verifyResidue returns which of the supposedly deleted keys are still stored.
func (s *Synchronizer) verifyResidue(ctx context.Context, storyID uuid.UUID, deleteSet []string) ([]string, error) {
	current, err := s.nodes.ListByStory(ctx, s.db, storyID)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(current))
	for _, n := range current {
		present[n.NodeKey] = struct{}{}
	}
	var residue []string
	for _, key := range deleteSet {
		if _, ok := present[key]; ok {
			residue = append(residue, key)
		}
	}
	return residue, nil
}

// upsertNodes writes nodes in batches, counting what actually landed.
func (s *Synchronizer) upsertNodes(ctx context.Context, nodes []models.StoryNode) (int, error) {
	written := 0
	for start := 0; start < len(nodes); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(nodes))
		n, err := s.nodes.UpsertBatch(ctx, s.db, nodes[start:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
