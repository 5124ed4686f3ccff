package models_test

import (
	"encoding/json"
	"testing"

	"github.com/noospace/noospace/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Block Serialization Tests
// =============================================================================

func TestBlock_MarshalMarkdown(t *testing.T) {
	b := models.NewMarkdownBlock("hello **world**")

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "markdown", raw["kind"])
	assert.Equal(t, "hello **world**", raw["text"])

	// Fields of other kinds must not leak into the payload
	_, hasURL := raw["url"]
	assert.False(t, hasURL)
	_, hasProvider := raw["provider"]
	assert.False(t, hasProvider)
}

func TestBlock_MarshalEmbed(t *testing.T) {
	b := models.NewEmbedBlock("https://www.youtube.com/watch?v=abc")

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "embed", raw["kind"])
	assert.Equal(t, "youtube", raw["provider"])
	_, hasText := raw["text"]
	assert.False(t, hasText)
}

func TestBlock_UnmarshalLink(t *testing.T) {
	var b models.Block
	err := json.Unmarshal([]byte(`{"kind":"link","url":"https://example.com","label":"Example"}`), &b)
	require.NoError(t, err)

	assert.Equal(t, models.BlockLink, b.Kind)
	assert.Equal(t, "https://example.com", b.URL)
	assert.Equal(t, "Example", b.Label)
}

func TestBlock_UnmarshalEmbedDerivesProvider(t *testing.T) {
	// No provider field in the payload: derived from the URL
	var b models.Block
	err := json.Unmarshal([]byte(`{"kind":"embed","url":"https://vimeo.com/12345"}`), &b)
	require.NoError(t, err)

	assert.Equal(t, models.BlockEmbed, b.Kind)
	assert.Equal(t, models.ProviderVimeo, b.Provider)
}

func TestBlock_UnmarshalUnknownKind(t *testing.T) {
	var b models.Block
	err := json.Unmarshal([]byte(`{"kind":"video","url":"https://example.com"}`), &b)
	assert.Error(t, err)
}

func TestBlock_MarshalUnknownKind(t *testing.T) {
	b := models.Block{Kind: "gif"}
	_, err := json.Marshal(b)
	assert.Error(t, err)
}

func TestBlock_Roundtrip(t *testing.T) {
	blocks := []models.Block{
		models.NewMarkdownBlock("some notes"),
		models.NewImageBlock("https://example.com/a.png", "a diagram"),
		models.NewLinkBlock("https://example.com", "Example"),
		models.NewEmbedBlock("https://youtu.be/xyz"),
	}

	data, err := json.Marshal(blocks)
	require.NoError(t, err)

	var decoded []models.Block
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, blocks, decoded)
}

// =============================================================================
// Embed Provider Tests
// =============================================================================

func TestProviderForURL(t *testing.T) {
	tests := []struct {
		url  string
		want models.EmbedProvider
	}{
		{"https://www.youtube.com/watch?v=abc", models.ProviderYouTube},
		{"https://youtu.be/abc", models.ProviderYouTube},
		{"https://m.youtube.com/watch?v=abc", models.ProviderYouTube},
		{"https://vimeo.com/12345", models.ProviderVimeo},
		{"https://www.figma.com/file/xyz", models.ProviderFigma},
		{"https://example.com/video", models.ProviderUnknown},
		{"not a url", models.ProviderUnknown},
		{"", models.ProviderUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, models.ProviderForURL(tt.url), "url: %s", tt.url)
	}
}

// =============================================================================
// View State Tests
// =============================================================================

func TestDefaultViewState(t *testing.T) {
	view := models.DefaultViewState("spc_1")

	assert.Equal(t, "spc_1", view.SpaceID)
	assert.Equal(t, models.Vec3{X: 0, Y: 6, Z: 18}, view.Camera.Position)
	assert.Equal(t, models.Vec3{}, view.Camera.Target)
	assert.Equal(t, models.EnvDome, view.Environment)
	assert.Equal(t, models.VisibilityAll, view.EdgeVisibility)
	assert.Equal(t, models.ModeObserve, view.Mode)
}

func TestNode_HasTag(t *testing.T) {
	node := models.Node{Tags: []string{"hub", "capture"}}

	assert.True(t, node.HasTag("hub"))
	assert.True(t, node.HasTag("capture"))
	assert.False(t, node.HasTag("missing"))

	empty := models.Node{}
	assert.False(t, empty.HasTag("hub"))
}

func TestVec3_Add(t *testing.T) {
	sum := models.Vec3{X: 1, Y: 2, Z: 3}.Add(models.Vec3{X: -1, Y: 0.5, Z: 3})
	assert.Equal(t, models.Vec3{X: 0, Y: 2.5, Z: 6}, sum)
}
