package validation_test

import (
	"testing"

	"github.com/noospace/noospace/pkg/models"
	"github.com/noospace/noospace/pkg/validation"
	"github.com/stretchr/testify/assert"
)

func validNode() models.Node {
	return models.Node{
		ID:         "nod_1",
		SpaceID:    "spc_1",
		Title:      "Some thought",
		Importance: 3,
		Blocks:     []models.Block{models.NewMarkdownBlock("text")},
	}
}

func TestNode_Valid(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Node(validNode()))
}

func TestNode_ImportanceOutOfRange(t *testing.T) {
	v := validation.New()

	n := validNode()
	n.Importance = 0
	assert.Error(t, v.Node(n))

	n.Importance = 6
	assert.Error(t, v.Node(n))
}

func TestNode_MissingSpaceID(t *testing.T) {
	v := validation.New()

	n := validNode()
	n.SpaceID = ""
	assert.Error(t, v.Node(n))
}

func TestNode_BlockRules(t *testing.T) {
	v := validation.New()

	// Image without a URL
	n := validNode()
	n.Blocks = []models.Block{{Kind: models.BlockImage}}
	assert.Error(t, v.Node(n))

	// Link without a URL
	n.Blocks = []models.Block{{Kind: models.BlockLink, Label: "broken"}}
	assert.Error(t, v.Node(n))

	// Embed without a URL
	n.Blocks = []models.Block{{Kind: models.BlockEmbed, Provider: models.ProviderYouTube}}
	assert.Error(t, v.Node(n))

	// Embed with a made-up provider
	n.Blocks = []models.Block{{Kind: models.BlockEmbed, URL: "https://example.com", Provider: "dailymotion"}}
	assert.Error(t, v.Node(n))

	// Unknown kind
	n.Blocks = []models.Block{{Kind: "gif"}}
	assert.Error(t, v.Node(n))

	// Empty markdown is allowed
	n.Blocks = []models.Block{models.NewMarkdownBlock("")}
	assert.NoError(t, v.Node(n))
}

func TestNodeUpdate_Partial(t *testing.T) {
	v := validation.New()

	title := "New title"
	assert.NoError(t, v.NodeUpdate(models.NodeUpdate{Title: &title}))

	bad := 9
	assert.Error(t, v.NodeUpdate(models.NodeUpdate{Importance: &bad}))

	blocks := []models.Block{{Kind: models.BlockImage}}
	assert.Error(t, v.NodeUpdate(models.NodeUpdate{Blocks: &blocks}))
}

func TestStruct_ViewUpdate(t *testing.T) {
	v := validation.New()

	env := models.EnvWhiteRoom
	assert.NoError(t, v.Struct(models.ViewUpdate{Environment: &env}))

	bogus := models.Environment("void")
	assert.Error(t, v.Struct(models.ViewUpdate{Environment: &bogus}))

	mode := models.ModeEdit
	vis := models.VisibilityTwoHop
	assert.NoError(t, v.Struct(models.ViewUpdate{Mode: &mode, EdgeVisibility: &vis}))
}

func TestStruct_Space(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Struct(models.Space{ID: "spc_1", Name: "My Space"}))
	assert.Error(t, v.Struct(models.Space{ID: "spc_1", Name: ""}))
}
