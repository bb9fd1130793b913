package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"story-server/internal/models"

	"go.uber.org/zap"
)

// maxNodeKeyLen bounds how long a node key may be. Real keys are short
// identifiers ("1", "END2", "cave_12"); anything longer is almost certainly
// narrative text that overflowed into the id column of a misaligned row.
const maxNodeKeyLen = 40

// assetTagPattern matches opaque asset tags like "image-3" or "video-12".
var assetTagPattern = regexp.MustCompile(`^(image|video)-\d+$`)

// Builder maps parsed rows into a candidate narrative graph.
type Builder struct {
	logger *zap.Logger
}

func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger.Named("GraphBuilder")}
}

// Build turns parsed rows (first row = header) into a candidate graph for the
// given slug. Rows that cannot become nodes are skipped with a recorded
// reason, never fatally: partial publishing beats no publishing.
func (b *Builder) Build(slug string, rows [][]string) *models.CandidateGraph {
	graph := &models.CandidateGraph{
		Slug:  slug,
		Story: models.Story{Slug: slug, Title: slug},
	}
	if len(rows) < 2 {
		return graph
	}

	cols := headerIndex(rows[0])

	for i, row := range rows[1:] {
		line := i + 2 // 1-based, counting the header row
		get := func(name string) string { return cellAt(row, cols, name) }

		id := strings.TrimSpace(get("id"))
		text := get("text")

		// First data row may carry story-level metadata alongside its node.
		if i == 0 {
			b.extractMetadata(&graph.Story, get)
		}

		if id == "" && strings.TrimSpace(text) == "" {
			graph.Skipped = append(graph.Skipped, models.SkippedRow{Line: line, Reason: models.SkipEmptyRow})
			continue
		}
		if id == "" || strings.TrimSpace(text) == "" {
			graph.Skipped = append(graph.Skipped, models.SkippedRow{Line: line, Key: id, Reason: models.SkipMissingField})
			continue
		}
		if !LooksLikeNodeKey(id) {
			b.logger.Warn("Row skipped: id column does not look like a node key",
				zap.Int("line", line), zap.String("id", truncate(id, 60)))
			graph.Skipped = append(graph.Skipped, models.SkippedRow{Line: line, Key: truncate(id, 60), Reason: models.SkipBadNodeKey})
			continue
		}

		node := models.StoryNode{
			NodeKey: id,
			Text:    text,
			// Row position in the source is authoritative for ordering, not
			// whatever number the key happens to parse as.
			SortIndex: i,
		}
		node.ImageURL = classifyMedia(get("image"))
		node.DiceCheck = buildDiceCheck(get)
		graph.Nodes = append(graph.Nodes, node)

		graph.Choices = append(graph.Choices, buildChoices(id, row, cols)...)
	}
	return graph
}

// LooksLikeNodeKey implements the identifier heuristic: a node key is short
// and never contains sentence-terminal punctuation followed by whitespace.
// Both symptoms mean narrative text leaked into the id column.
func LooksLikeNodeKey(key string) bool {
	if key == "" || len(key) > maxNodeKeyLen {
		return false
	}
	for i := 0; i+1 < len(key); i++ {
		switch key[i] {
		case '.', '!', '?':
			if key[i+1] == ' ' || key[i+1] == '\t' || key[i+1] == '\n' {
				return false
			}
		}
	}
	return true
}

// classifyMedia interprets the image column. Empty or unrecognized values map
// to nil ("do not touch whatever is stored"), scheme-prefixed values are used
// directly, and short asset tags are stored opaquely for external resolution.
func classifyMedia(value string) *string {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		return nil
	case strings.HasPrefix(v, "http"):
		return &v
	case assetTagPattern.MatchString(v):
		return &v
	default:
		return nil
	}
}

// IsAssetTag reports whether a media reference is an opaque asset tag rather
// than an absolute URL.
func IsAssetTag(value string) bool {
	return assetTagPattern.MatchString(strings.TrimSpace(value))
}

// buildDiceCheck assembles a dice check if both stat and DC are present.
// Success/fail destinations default to empty strings; the traversal layer is
// responsible for treating those as unusable.
func buildDiceCheck(get func(string) string) *models.DiceCheck {
	stat := strings.TrimSpace(get("check_stat"))
	dcRaw := strings.TrimSpace(get("check_dc"))
	if stat == "" || dcRaw == "" {
		return nil
	}
	dc, err := strconv.Atoi(dcRaw)
	if err != nil {
		dc = 10
	}
	return &models.DiceCheck{
		Stat:    stat,
		DC:      dc,
		Success: strings.TrimSpace(get("check_success")),
		Fail:    strings.TrimSpace(get("check_fail")),
	}
}

// buildChoices reads valg{N}_label/valg{N}_goto column groups in order for as
// long as the header defines them. A group missing either half is skipped.
func buildChoices(fromKey string, row []string, cols map[string]int) []models.Choice {
	var choices []models.Choice
	for n := 1; ; n++ {
		labelCol, okL := cols[fmt.Sprintf("valg%d_label", n)]
		gotoCol, okG := cols[fmt.Sprintf("valg%d_goto", n)]
		if !okL || !okG {
			break
		}
		label := strings.TrimSpace(at(row, labelCol))
		dest := strings.TrimSpace(at(row, gotoCol))
		if label == "" || dest == "" {
			continue
		}
		c := models.Choice{
			FromNodeKey: fromKey,
			Label:       label,
			ToNodeKey:   dest,
			SortIndex:   n - 1,
		}
		if matchCol, ok := cols[fmt.Sprintf("valg%d_match", n)]; ok {
			c.Match = splitMatchTags(at(row, matchCol))
		}
		choices = append(choices, c)
	}
	return choices
}

// extractMetadata attaches story-level metadata carried on the first data row.
func (b *Builder) extractMetadata(story *models.Story, get func(string) string) {
	if title := strings.TrimSpace(get("story_title")); title != "" {
		story.Title = title
	}
	story.Description = optional(get("story_description"))
	story.CoverImageURL = optional(get("front_screen_image"))
	story.EstimatedTime = optional(get("length"))
	story.AgeRating = optional(get("age"))
	story.Author = optional(get("author"))
}

// splitMatchTags splits voice-input match variants on '|' or ','.
func splitMatchTags(raw string) []string {
	var tags []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' }) {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func cellAt(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok {
		return ""
	}
	return at(row, idx)
}

func at(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
