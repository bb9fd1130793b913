package ingest_test

import (
	"strings"
	"testing"

	"story-server/internal/ingest"
	"story-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func buildGraph(t *testing.T, raw string) *models.CandidateGraph {
	t.Helper()
	rows := ingest.ParseTable(raw)
	return ingest.NewBuilder(zap.NewNop()).Build("test-story", rows)
}

func TestBuild_NodesAndOrdering(t *testing.T) {
	graph := buildGraph(t, strings.Join([]string{
		"id,text",
		"start,You wake up.",
		"2,You walk on.",
		"END,The end.",
	}, "\n"))

	require.Len(t, graph.Nodes, 3)
	assert.Equal(t, "start", graph.Nodes[0].NodeKey)
	assert.Equal(t, 0, graph.Nodes[0].SortIndex)
	assert.Equal(t, "END", graph.Nodes[2].NodeKey)
	assert.Equal(t, 2, graph.Nodes[2].SortIndex)
	assert.Empty(t, graph.Skipped)
}

func TestBuild_MetadataFromFirstDataRow(t *testing.T) {
	graph := buildGraph(t, strings.Join([]string{
		"id,text,story_title,story_description,front_screen_image,length,age,author",
		"1,First node.,Hulen,A cave adventure,https://cdn.example/cover.jpg,2 timer,12+,H. Forfatter",
		"2,Second node.,,,,,,",
	}, "\n"))

	assert.Equal(t, "Hulen", graph.Story.Title)
	require.NotNil(t, graph.Story.Description)
	assert.Equal(t, "A cave adventure", *graph.Story.Description)
	require.NotNil(t, graph.Story.CoverImageURL)
	assert.Equal(t, "https://cdn.example/cover.jpg", *graph.Story.CoverImageURL)
	require.NotNil(t, graph.Story.EstimatedTime)
	assert.Equal(t, "2 timer", *graph.Story.EstimatedTime)
	require.NotNil(t, graph.Story.AgeRating)
	assert.Equal(t, "12+", *graph.Story.AgeRating)
	require.NotNil(t, graph.Story.Author)
	assert.Equal(t, "H. Forfatter", *graph.Story.Author)
}

func TestBuild_SkipsRows(t *testing.T) {
	narrative := "This is clearly narrative text. It even has sentences. And it overflowed into the id column of this row"

	graph := buildGraph(t, strings.Join([]string{
		"id,text,image",
		"1,Fine.",
		",missing id",
		"orphan-key,",
		",,image-9",
		narrative + ",some text",
	}, "\n"))

	require.Len(t, graph.Nodes, 1)
	require.Len(t, graph.Skipped, 4)
	assert.Equal(t, models.SkipMissingField, graph.Skipped[0].Reason)
	assert.Equal(t, models.SkipMissingField, graph.Skipped[1].Reason)
	assert.Equal(t, models.SkipEmptyRow, graph.Skipped[2].Reason)
	assert.Equal(t, models.SkipBadNodeKey, graph.Skipped[3].Reason)
}

func TestLooksLikeNodeKey(t *testing.T) {
	assert.True(t, ingest.LooksLikeNodeKey("1"))
	assert.True(t, ingest.LooksLikeNodeKey("END2"))
	assert.True(t, ingest.LooksLikeNodeKey("cave_12"))
	assert.True(t, ingest.LooksLikeNodeKey("v1.2")) // dot not followed by whitespace

	assert.False(t, ingest.LooksLikeNodeKey(""))
	assert.False(t, ingest.LooksLikeNodeKey(strings.Repeat("x", 41)))
	assert.False(t, ingest.LooksLikeNodeKey("He ran. Then he stopped"))
	assert.False(t, ingest.LooksLikeNodeKey("Stop! And listen"))
}

func TestBuild_MediaClassification(t *testing.T) {
	graph := buildGraph(t, strings.Join([]string{
		"id,text,image",
		"1,a,https://cdn.example/pic.png",
		"2,b,image-3",
		"3,c,",
		"4,d,some random note",
	}, "\n"))

	require.Len(t, graph.Nodes, 4)
	require.NotNil(t, graph.Nodes[0].ImageURL)
	assert.Equal(t, "https://cdn.example/pic.png", *graph.Nodes[0].ImageURL)
	require.NotNil(t, graph.Nodes[1].ImageURL)
	assert.Equal(t, "image-3", *graph.Nodes[1].ImageURL)
	assert.Nil(t, graph.Nodes[2].ImageURL)
	assert.Nil(t, graph.Nodes[3].ImageURL)
}

func TestIsAssetTag(t *testing.T) {
	assert.True(t, ingest.IsAssetTag("image-3"))
	assert.True(t, ingest.IsAssetTag("video-12"))
	assert.False(t, ingest.IsAssetTag("https://cdn.example/image-3"))
	assert.False(t, ingest.IsAssetTag("image-"))
	assert.False(t, ingest.IsAssetTag("audio-1"))
}

func TestBuild_Choices(t *testing.T) {
	graph := buildGraph(t, strings.Join([]string{
		"id,text,valg1_label,valg1_goto,valg1_match,valg2_label,valg2_goto",
		"1,Pick a path.,Go left,2,venstre|left,Go right,3",
		"2,Left path.,,,,,",
		"3,Right path.,Back,1,\"tilbage, back\",,",
	}, "\n"))

	require.Len(t, graph.Choices, 3)

	left := graph.Choices[0]
	assert.Equal(t, "1", left.FromNodeKey)
	assert.Equal(t, "Go left", left.Label)
	assert.Equal(t, "2", left.ToNodeKey)
	assert.Equal(t, []string{"venstre", "left"}, left.Match)
	assert.Equal(t, 0, left.SortIndex)

	right := graph.Choices[1]
	assert.Equal(t, "Go right", right.Label)
	assert.Equal(t, "3", right.ToNodeKey)
	assert.Equal(t, 1, right.SortIndex)

	back := graph.Choices[2]
	assert.Equal(t, "3", back.FromNodeKey)
	assert.Equal(t, []string{"tilbage", "back"}, back.Match)
}

func TestBuild_DiceCheck(t *testing.T) {
	graph := buildGraph(t, strings.Join([]string{
		"id,text,check_stat,check_dc,check_success,check_fail",
		"1,Jump the gap.,Evner,9,2,3",
		"2,Made it.,,,,",
		"3,Fell.,Held,not-a-number,4,5",
		"4,No check here.,Evner,,,",
	}, "\n"))

	require.Len(t, graph.Nodes, 4)

	check := graph.Nodes[0].DiceCheck
	require.NotNil(t, check)
	assert.Equal(t, "Evner", check.Stat)
	assert.Equal(t, 9, check.DC)
	assert.Equal(t, "2", check.Success)
	assert.Equal(t, "3", check.Fail)

	assert.Nil(t, graph.Nodes[1].DiceCheck)

	// Unparseable DC falls back to the default difficulty.
	require.NotNil(t, graph.Nodes[2].DiceCheck)
	assert.Equal(t, 10, graph.Nodes[2].DiceCheck.DC)

	// Missing DC means no check at all.
	assert.Nil(t, graph.Nodes[3].DiceCheck)
}
