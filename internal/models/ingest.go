package models

import "github.com/google/uuid"

// SkipReason classifies why a source row was not materialized as a node.
type SkipReason string

const (
	SkipEmptyRow     SkipReason = "empty_row"
	SkipMissingField SkipReason = "missing_required_field"
	SkipBadNodeKey   SkipReason = "bad_node_key"
)

// SkippedRow records one row the graph builder refused, with its position in
// the source (1-based, counting the header row).
type SkippedRow struct {
	Line   int        `json:"line"`
	Key    string     `json:"key,omitempty"`
	Reason SkipReason `json:"reason"`
}

// CandidateGraph is the output of the graph builder: a partially filled story
// plus the node and choice sets built from one tabular source, before any
// reconciliation with persisted state.
type CandidateGraph struct {
	Slug    string
	Story   Story
	Nodes   []StoryNode
	Choices []Choice
	Skipped []SkippedRow
}

// IngestReport is the user-visible summary of one ingestion pass. Ingestion
// reports partial success rather than an all-or-nothing boolean so an editor
// can see exactly what landed.
type IngestReport struct {
	StoryID             uuid.UUID    `json:"story_id"`
	Slug                string       `json:"slug"`
	Version             int          `json:"version"`
	Published           bool         `json:"published"`
	NodesWritten        int          `json:"nodes_written"`
	NodesTotal          int          `json:"nodes_total"`
	ChoicesWritten      int          `json:"choices_written"`
	ChoicesTotal        int          `json:"choices_total"`
	DuplicatesDropped   int          `json:"duplicates_dropped"`
	DeletionsAttempted  int          `json:"deletions_attempted"`
	DeletionsConfirmed  int          `json:"deletions_confirmed"`
	NuclearFallbackUsed bool         `json:"nuclear_fallback_used,omitempty"`
	RowsSkipped         []SkippedRow `json:"rows_skipped,omitempty"`
}
