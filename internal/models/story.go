package models

import (
	"time"

	"github.com/google/uuid"
)

// Story is a published branching narrative, identified by its slug.
// Version increments on every successful re-ingestion of the same slug.
type Story struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	Slug          string         `json:"slug" db:"slug"`
	Title         string         `json:"title" db:"title"`
	Description   *string        `json:"description,omitempty" db:"description"`
	CoverImageURL *string        `json:"cover_image_url,omitempty" db:"cover_image_url"`
	EstimatedTime *string        `json:"estimated_time,omitempty" db:"estimated_time"`
	AgeRating     *string        `json:"age_rating,omitempty" db:"age_rating"`
	Author        *string        `json:"author,omitempty" db:"author"`
	IsPublished   bool           `json:"is_published" db:"is_published"`
	Version       int            `json:"version" db:"version"`
	DefaultStats  map[string]int `json:"default_stats,omitempty" db:"default_stats"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// DefaultStartingStats are used when a story does not define its own stat block.
// Values match the stat sheet the original books shipped with.
func DefaultStartingStats() map[string]int {
	return map[string]int{
		"Evner":       10,
		"Udholdenhed": 18,
		"Held":        10,
	}
}

// StoryNode is one narrative beat, addressed by (story_id, node_key).
// Media fields are pointers: nil means "unset" and is distinct from an empty
// string, which matters for the preservation merge during re-ingestion.
type StoryNode struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	StoryID   uuid.UUID  `json:"story_id" db:"story_id"`
	NodeKey   string     `json:"node_key" db:"node_key"`
	Text      string     `json:"text" db:"text_md"`
	SortIndex int        `json:"sort_index" db:"sort_index"`
	ImageURL  *string    `json:"image_url,omitempty" db:"image_url"`
	VideoURL  *string    `json:"video_url,omitempty" db:"video_url"`
	AudioURL  *string    `json:"audio_url,omitempty" db:"audio_url"`
	DiceCheck *DiceCheck `json:"dice_check,omitempty" db:"dice_check"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Choice is a labeled, player-selectable edge from one node to another.
// ToNodeKey may reference a node that does not exist yet; forward references
// are a normal authoring workflow and are never rejected at ingestion time.
type Choice struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	StoryID     uuid.UUID      `json:"story_id" db:"story_id"`
	FromNodeKey string         `json:"from_node_key" db:"from_node_key"`
	Label       string         `json:"label" db:"label"`
	ToNodeKey   string         `json:"to_node_key" db:"to_node_key"`
	Match       []string       `json:"match,omitempty" db:"match_tags"`
	Effect      map[string]int `json:"effect,omitempty" db:"effect"`
	SortIndex   int            `json:"sort_index" db:"sort_index"`
}

// DiceCheck gates branching on a stat value compared against a difficulty class.
type DiceCheck struct {
	Stat    string `json:"stat"`
	DC      int    `json:"dc"`
	Success string `json:"success"`
	Fail    string `json:"fail"`
}

// BranchKind discriminates the branching mechanism of a node.
type BranchKind uint8

const (
	BranchTerminal BranchKind = iota
	BranchChoices
	BranchCheck
)

// Branching is the tagged branching variant of a node. A node either offers
// choices, runs a dice check, or is terminal; the constructor resolves the
// (malformed) case where source data populated both.
type Branching struct {
	Kind    BranchKind
	Choices []Choice
	Check   *DiceCheck
}

// NewBranching builds the branching variant for a node. When a node carries
// both a dice check and choices the check wins, matching how the reader
// client treats such nodes.
func NewBranching(choices []Choice, check *DiceCheck) Branching {
	if check != nil {
		return Branching{Kind: BranchCheck, Check: check}
	}
	if len(choices) > 0 {
		return Branching{Kind: BranchChoices, Choices: choices}
	}
	return Branching{Kind: BranchTerminal}
}
