package handler

import (
	"time"

	"story-server/internal/models"
)

// IngestRequest is the body of the admin upload endpoint. Raw carries the
// tabular source verbatim, quotes and newlines included.
type IngestRequest struct {
	Raw     string `json:"raw" binding:"required"`
	Publish bool   `json:"publish"`
}

// SetPublishedRequest toggles a story's visibility to readers.
type SetPublishedRequest struct {
	Published *bool `json:"published" binding:"required"`
}

// ApplyChoiceRequest selects one of the current node's choices by index.
type ApplyChoiceRequest struct {
	ChoiceIndex *int `json:"choice_index" binding:"required"`
}

// StorySummary is the list-view projection of a story.
type StorySummary struct {
	ID            string  `json:"id"`
	Slug          string  `json:"slug"`
	Title         string  `json:"title"`
	Description   *string `json:"description,omitempty"`
	CoverImageURL *string `json:"cover_image_url,omitempty"`
	EstimatedTime *string `json:"estimated_time,omitempty"`
	AgeRating     *string `json:"age_rating,omitempty"`
	Author        *string `json:"author,omitempty"`
}

// ChoiceView is the reader-facing projection of a choice. Destination keys
// stay server-side; readers pick by index.
type ChoiceView struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// DiceCheckView describes a pending check without revealing its destinations.
type DiceCheckView struct {
	Stat string `json:"stat"`
	DC   int    `json:"dc"`
}

// NodeView is the reader-facing projection of the current node.
type NodeView struct {
	NodeKey   string         `json:"node_key"`
	Text      string         `json:"text"`
	ImageURL  *string        `json:"image_url,omitempty"`
	VideoURL  *string        `json:"video_url,omitempty"`
	AudioURL  *string        `json:"audio_url,omitempty"`
	Choices   []ChoiceView   `json:"choices,omitempty"`
	DiceCheck *DiceCheckView `json:"dice_check,omitempty"`
	Terminal  bool           `json:"terminal"`
}

// SessionView is the reader-facing projection of a session.
type SessionView struct {
	ID        string         `json:"id"`
	StoryID   string         `json:"story_id"`
	Stats     map[string]int `json:"stats"`
	Completed bool           `json:"completed"`
	StartedAt time.Time      `json:"started_at"`
}

// SessionResponse bundles the session with its current node.
type SessionResponse struct {
	Session SessionView `json:"session"`
	Node    NodeView    `json:"node"`
}

// CheckResponse bundles a resolved dice check with the updated state.
type CheckResponse struct {
	Result  models.CheckResult `json:"result"`
	Session SessionView        `json:"session"`
	Node    NodeView           `json:"node"`
}

func toStorySummary(s *models.Story) StorySummary {
	return StorySummary{
		ID:            s.ID.String(),
		Slug:          s.Slug,
		Title:         s.Title,
		Description:   s.Description,
		CoverImageURL: s.CoverImageURL,
		EstimatedTime: s.EstimatedTime,
		AgeRating:     s.AgeRating,
		Author:        s.Author,
	}
}

func toSessionView(s *models.PlayerSession) SessionView {
	return SessionView{
		ID:        s.ID.String(),
		StoryID:   s.StoryID.String(),
		Stats:     s.Stats,
		Completed: s.Completed,
		StartedAt: s.StartedAt,
	}
}

func toNodeView(node *models.StoryNode, branching models.Branching) NodeView {
	view := NodeView{
		NodeKey:  node.NodeKey,
		Text:     node.Text,
		ImageURL: node.ImageURL,
		VideoURL: node.VideoURL,
		AudioURL: node.AudioURL,
		Terminal: branching.Kind == models.BranchTerminal,
	}
	switch branching.Kind {
	case models.BranchChoices:
		view.Choices = make([]ChoiceView, 0, len(branching.Choices))
		for i, c := range branching.Choices {
			view.Choices = append(view.Choices, ChoiceView{Index: i, Label: c.Label})
		}
	case models.BranchCheck:
		view.DiceCheck = &DiceCheckView{Stat: branching.Check.Stat, DC: branching.Check.DC}
	}
	return view
}
