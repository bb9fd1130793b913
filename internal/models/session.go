package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerSession is the mutable record of one reading session. It is owned by
// exactly one reader and mutated only by the traversal engine; sessions never
// share state with each other.
type PlayerSession struct {
	ID             uuid.UUID      `json:"id"`
	StoryID        uuid.UUID      `json:"story_id"`
	CurrentNodeKey string         `json:"current_node_key"`
	Stats          map[string]int `json:"stats"`
	Completed      bool           `json:"completed"`
	StartedAt      time.Time      `json:"started_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CheckResult describes the outcome of one dice check transition.
type CheckResult struct {
	Stat      string `json:"stat"`
	StatValue int    `json:"stat_value"`
	DC        int    `json:"dc"`
	Roll      int    `json:"roll,omitempty"`
	Success   bool   `json:"success"`
	NextNode  string `json:"next_node"`
}
