package interfaces

import "context"

// MediaResolver resolves an opaque asset tag (e.g. "image-3") for a story
// into an absolute reference. Resolution is an external concern; failures are
// non-fatal to ingestion and unresolved tags are stored as-is.
//
//go:generate mockery --name MediaResolver --output ./mocks --outpkg mocks --case=underscore
type MediaResolver interface {
	Resolve(ctx context.Context, storySlug, assetTag string) (string, error)
}

// MediaTaskPayload describes one asset tag the external media pipeline should
// materialize for a node.
type MediaTaskPayload struct {
	StorySlug string `json:"story_slug"`
	NodeKey   string `json:"node_key"`
	AssetTag  string `json:"asset_tag"`
}

// MediaTaskPublisher hands unresolved asset tags to the media pipeline.
//
//go:generate mockery --name MediaTaskPublisher --output ./mocks --outpkg mocks --case=underscore
type MediaTaskPublisher interface {
	PublishMediaTask(ctx context.Context, payload MediaTaskPayload) error
}
