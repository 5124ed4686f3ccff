package search_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/noospace/noospace/pkg/models"
	"github.com/noospace/noospace/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, title, text string) models.Node {
	n := models.Node{ID: id, SpaceID: "spc_1", Title: title}
	if text != "" {
		n.Blocks = []models.Block{models.NewMarkdownBlock(text)}
	}
	return n
}

func TestQuery_TitleMatch(t *testing.T) {
	nodes := []models.Node{
		node("nod_1", "Reading List", ""),
		node("nod_2", "Ideas", ""),
	}

	results := search.Query("reading", nodes)
	require.Len(t, results, 1)
	assert.Equal(t, "nod_1", results[0].NodeID)
	// Title-only hit: the snippet falls back to the title
	assert.Equal(t, "Reading List", results[0].Snippet)
}

func TestQuery_BodyMatch(t *testing.T) {
	nodes := []models.Node{
		node("nod_1", "Resources", "Durable resources: tools, datasets, reference material."),
	}

	results := search.Query("datasets", nodes)
	require.Len(t, results, 1)
	assert.Equal(t, "Resources", results[0].Title)
	assert.Contains(t, results[0].Snippet, "datasets")
}

func TestQuery_CaseInsensitive(t *testing.T) {
	nodes := []models.Node{node("nod_1", "Runway", "Months left at current burn.")}

	assert.Len(t, search.Query("RUNWAY", nodes), 1)
	assert.Len(t, search.Query("BURN", nodes), 1)
}

func TestQuery_EmptyQuery(t *testing.T) {
	nodes := []models.Node{node("nod_1", "Anything", "")}

	assert.Nil(t, search.Query("", nodes))
	assert.Nil(t, search.Query("   ", nodes))
}

func TestQuery_NoMatch(t *testing.T) {
	nodes := []models.Node{node("nod_1", "Health", "Sleep, training, checkups.")}
	assert.Empty(t, search.Query("finance", nodes))
}

func TestQuery_MaxResults(t *testing.T) {
	var nodes []models.Node
	for i := 0; i < 20; i++ {
		nodes = append(nodes, node(fmt.Sprintf("nod_%d", i), fmt.Sprintf("Topic %d", i), ""))
	}

	results := search.Query("topic", nodes)
	assert.Len(t, results, search.MaxResults)
	// First matches in table order win
	assert.Equal(t, "nod_0", results[0].NodeID)
}

func TestQuery_SnippetTruncated(t *testing.T) {
	long := strings.Repeat("x", 80) + " needle " + strings.Repeat("y", 200)
	nodes := []models.Node{node("nod_1", "Long", long)}

	results := search.Query("needle", nodes)
	require.Len(t, results, 1)
	assert.Equal(t, search.SnippetLength, len([]rune(results[0].Snippet)))
}

func TestQuery_SnippetTruncationIsRuneSafe(t *testing.T) {
	long := strings.Repeat("ü", 200)
	nodes := []models.Node{node("nod_1", "Unicode", long)}

	results := search.Query("ü", nodes)
	require.Len(t, results, 1)
	assert.Equal(t, strings.Repeat("ü", search.SnippetLength), results[0].Snippet)
}

func TestQuery_IgnoresNonMarkdownBlocks(t *testing.T) {
	n := models.Node{
		ID:      "nod_1",
		SpaceID: "spc_1",
		Title:   "Mixed",
		Blocks: []models.Block{
			models.NewLinkBlock("https://example.com/needle", "needle link"),
			models.NewMarkdownBlock("nothing to see"),
		},
	}

	// The link URL and label are not searched
	assert.Empty(t, search.Query("needle", []models.Node{n}))
}

func TestQuery_FirstMatchingBlockWins(t *testing.T) {
	n := models.Node{
		ID:      "nod_1",
		SpaceID: "spc_1",
		Title:   "Multi",
		Blocks: []models.Block{
			models.NewMarkdownBlock("first mention of topic"),
			models.NewMarkdownBlock("second mention of topic"),
		},
	}

	results := search.Query("topic", []models.Node{n})
	require.Len(t, results, 1)
	assert.Equal(t, "first mention of topic", results[0].Snippet)
}
