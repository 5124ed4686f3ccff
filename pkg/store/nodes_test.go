package store_test

import (
	"context"
	"testing"

	"github.com/noospace/noospace/pkg/models"
	"github.com/noospace/noospace/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Node Creation Tests
// =============================================================================

func TestCreateNode(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()

	node, err := st.CreateNode(ctx, active, "", "Fresh idea")
	require.NoError(t, err)

	assert.Equal(t, active, node.SpaceID)
	assert.Equal(t, "Fresh idea", node.Title)
	assert.Equal(t, 3, node.Importance)
	require.Len(t, node.Blocks, 1)
	assert.Equal(t, models.BlockMarkdown, node.Blocks[0].Kind)
	assert.Equal(t, store.PlaceholderText, node.Blocks[0].Text)

	// The new node is selected
	assert.Equal(t, node.ID, st.SelectedNodeID())

	stored, err := db.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, node, stored)
}

func TestCreateNode_WithParent(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()

	parent, err := st.CreateNode(ctx, active, "", "Parent")
	require.NoError(t, err)
	edgesBefore, err := db.ListEdges(ctx, active)
	require.NoError(t, err)

	child, err := st.CreateNode(ctx, active, parent.ID, "Child")
	require.NoError(t, err)

	// Exactly one new edge: parent -> child, relation "child"
	edges, err := db.ListEdges(ctx, active)
	require.NoError(t, err)
	require.Len(t, edges, len(edgesBefore)+1)

	last := edges[len(edges)-1]
	assert.Equal(t, parent.ID, last.From)
	assert.Equal(t, child.ID, last.To)
	assert.Equal(t, "child", last.Relation)

	// The child lands near the parent, not at the origin
	dx := child.Position.X - parent.Position.X
	dy := child.Position.Y - parent.Position.Y
	dz := child.Position.Z - parent.Position.Z
	assert.LessOrEqual(t, dx*dx+dy*dy+dz*dz, 3*1.5*1.5+0.001)
}

func TestCreateNode_UnknownParentIgnored(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()
	edgesBefore, err := db.ListEdges(ctx, active)
	require.NoError(t, err)

	node, err := st.CreateNode(ctx, active, "nod_missing", "Orphan parent ref")
	require.NoError(t, err)
	assert.NotEmpty(t, node.ID)

	// No edge appeared
	edges, err := db.ListEdges(ctx, active)
	require.NoError(t, err)
	assert.Len(t, edges, len(edgesBefore))
}

func TestCreateNode_EmptySpace(t *testing.T) {
	st, _, cleanup := setupInitialized(t)
	defer cleanup()

	_, err := st.CreateNode(context.Background(), "", "", "Nowhere")
	assert.ErrorIs(t, err, store.ErrNoActiveSpace)
}

// =============================================================================
// Node Mutation Tests
// =============================================================================

func TestUpdateNode(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	node, err := st.CreateNode(ctx, st.ActiveSpaceID(), "", "Before")
	require.NoError(t, err)

	title := "After"
	importance := 5
	tags := []string{"pinned"}
	require.NoError(t, st.UpdateNode(ctx, node.ID, models.NodeUpdate{
		Title:      &title,
		Importance: &importance,
		Tags:       &tags,
	}))

	got, err := db.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
	assert.Equal(t, 5, got.Importance)
	assert.Equal(t, []string{"pinned"}, got.Tags)
	// Untouched fields survive
	assert.Equal(t, node.Blocks, got.Blocks)
	assert.Equal(t, node.Position, got.Position)
}

func TestUpdateNode_UnknownIDSilent(t *testing.T) {
	st, _, cleanup := setupInitialized(t)
	defer cleanup()

	title := "Ghost"
	err := st.UpdateNode(context.Background(), "nod_missing", models.NodeUpdate{Title: &title})
	assert.NoError(t, err)
}

func TestUpdateNode_InvalidImportance(t *testing.T) {
	st, _, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	node, err := st.CreateNode(ctx, st.ActiveSpaceID(), "", "Node")
	require.NoError(t, err)

	bad := 7
	assert.Error(t, st.UpdateNode(ctx, node.ID, models.NodeUpdate{Importance: &bad}))
}

func TestDeleteNode_RemovesTouchingEdges(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()

	a, err := st.CreateNode(ctx, active, "", "A")
	require.NoError(t, err)
	b, err := st.CreateNode(ctx, active, a.ID, "B")
	require.NoError(t, err)
	c, err := st.CreateNode(ctx, active, b.ID, "C")
	require.NoError(t, err)

	require.NoError(t, st.DeleteNode(ctx, b.ID))

	edges, err := db.ListEdges(ctx, active)
	require.NoError(t, err)
	for _, e := range edges {
		assert.NotEqual(t, b.ID, e.From)
		assert.NotEqual(t, b.ID, e.To)
	}

	// The other nodes are untouched
	_, err = db.GetNode(ctx, a.ID)
	assert.NoError(t, err)
	_, err = db.GetNode(ctx, c.ID)
	assert.NoError(t, err)
}

func TestDeleteNode_SelectionFallsBack(t *testing.T) {
	st, _, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()

	node, err := st.CreateNode(ctx, active, "", "Selected")
	require.NoError(t, err)
	require.Equal(t, node.ID, st.SelectedNodeID())

	require.NoError(t, st.DeleteNode(ctx, node.ID))

	// Selection moved to the first remaining node of the space
	assert.NotEqual(t, node.ID, st.SelectedNodeID())
	assert.NotEmpty(t, st.SelectedNodeID())
}

func TestDeleteNode_UnknownIDSilent(t *testing.T) {
	st, _, cleanup := setupInitialized(t)
	defer cleanup()

	assert.NoError(t, st.DeleteNode(context.Background(), "nod_missing"))
}

// =============================================================================
// Link Tests
// =============================================================================

func TestLinkNodes(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()

	a, err := st.CreateNode(ctx, active, "", "A")
	require.NoError(t, err)
	b, err := st.CreateNode(ctx, active, "", "B")
	require.NoError(t, err)

	edgesBefore, err := db.ListEdges(ctx, active)
	require.NoError(t, err)

	require.NoError(t, st.LinkNodes(ctx, a.ID, b.ID, "related"))

	edges, err := db.ListEdges(ctx, active)
	require.NoError(t, err)
	require.Len(t, edges, len(edgesBefore)+1)
}

func TestLinkNodes_SelfLoopIgnored(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()

	a, err := st.CreateNode(ctx, active, "", "A")
	require.NoError(t, err)

	edgesBefore, err := db.ListEdges(ctx, active)
	require.NoError(t, err)

	require.NoError(t, st.LinkNodes(ctx, a.ID, a.ID, "related"))

	edges, err := db.ListEdges(ctx, active)
	require.NoError(t, err)
	assert.Len(t, edges, len(edgesBefore))
}

func TestLinkNodes_DuplicateIgnored(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()

	a, err := st.CreateNode(ctx, active, "", "A")
	require.NoError(t, err)
	b, err := st.CreateNode(ctx, active, "", "B")
	require.NoError(t, err)

	require.NoError(t, st.LinkNodes(ctx, a.ID, b.ID, "related"))
	edgesBefore, err := db.ListEdges(ctx, active)
	require.NoError(t, err)

	// Same triple again: silent no-op
	require.NoError(t, st.LinkNodes(ctx, a.ID, b.ID, "related"))
	edges, err := db.ListEdges(ctx, active)
	require.NoError(t, err)
	assert.Len(t, edges, len(edgesBefore))

	// A different relation between the same pair is a new edge
	require.NoError(t, st.LinkNodes(ctx, a.ID, b.ID, "blocks"))
	edges, err = db.ListEdges(ctx, active)
	require.NoError(t, err)
	assert.Len(t, edges, len(edgesBefore)+1)
}

func TestLinkNodes_CrossSpaceIgnored(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()

	rm, err := st.ReadModel(ctx)
	require.NoError(t, err)
	spaceA := rm.Spaces[0].ID
	spaceB := rm.Spaces[1].ID

	nodesA, err := db.ListNodes(ctx, spaceA)
	require.NoError(t, err)
	nodesB, err := db.ListNodes(ctx, spaceB)
	require.NoError(t, err)
	require.NotEmpty(t, nodesA)
	require.NotEmpty(t, nodesB)

	edgesBefore, err := db.ListEdges(ctx, spaceA)
	require.NoError(t, err)

	require.NoError(t, st.LinkNodes(ctx, nodesA[0].ID, nodesB[0].ID, "related"))

	edges, err := db.ListEdges(ctx, spaceA)
	require.NoError(t, err)
	assert.Len(t, edges, len(edgesBefore))
}

func TestLinkNodes_UnknownEndpointIgnored(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()

	a, err := st.CreateNode(ctx, active, "", "A")
	require.NoError(t, err)

	edgesBefore, err := db.ListEdges(ctx, active)
	require.NoError(t, err)

	require.NoError(t, st.LinkNodes(ctx, a.ID, "nod_missing", "related"))
	require.NoError(t, st.LinkNodes(ctx, "nod_missing", a.ID, "related"))

	edges, err := db.ListEdges(ctx, active)
	require.NoError(t, err)
	assert.Len(t, edges, len(edgesBefore))
}

// =============================================================================
// Search Tests
// =============================================================================

func TestUnlinkNodes(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()

	a, err := st.CreateNode(ctx, active, "", "A")
	require.NoError(t, err)
	b, err := st.CreateNode(ctx, active, "", "B")
	require.NoError(t, err)
	require.NoError(t, st.LinkNodes(ctx, a.ID, b.ID, "related"))

	edges, err := db.ListEdges(ctx, active)
	require.NoError(t, err)

	var linked string
	for _, e := range edges {
		if e.From == a.ID && e.To == b.ID {
			linked = e.ID
		}
	}
	require.NotEmpty(t, linked)

	require.NoError(t, st.UnlinkNodes(ctx, linked))

	after, err := db.ListEdges(ctx, active)
	require.NoError(t, err)
	require.Len(t, after, len(edges)-1)
	for _, e := range after {
		assert.NotEqual(t, linked, e.ID)
	}

	// Both endpoints survive the unlink
	_, err = db.GetNode(ctx, a.ID)
	require.NoError(t, err)
	_, err = db.GetNode(ctx, b.ID)
	require.NoError(t, err)
}

func TestUnlinkNodes_UnknownIDSilent(t *testing.T) {
	st, _, cleanup := setupInitialized(t)
	defer cleanup()

	require.NoError(t, st.UnlinkNodes(context.Background(), "edg_missing"))
}

func TestSearch(t *testing.T) {
	st, _, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()

	rm, err := st.ReadModel(ctx)
	require.NoError(t, err)

	// Switch to Research Brain, which seeds the Resources node
	require.NoError(t, st.SetActiveSpace(ctx, rm.Spaces[1].ID))

	results, err := st.Search(ctx, "resources")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Resources", results[0].Title)
	assert.Contains(t, results[0].Snippet, "Durable resources")
}

func TestSearch_EmptyQuery(t *testing.T) {
	st, _, cleanup := setupInitialized(t)
	defer cleanup()

	results, err := st.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestSearch_CachedResultsInvalidatedByMutation(t *testing.T) {
	st, _, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()

	results, err := st.Search(ctx, "zebra fountain")
	require.NoError(t, err)
	require.Empty(t, results)

	// A new matching node must show up despite the cached miss
	_, err = st.CreateNode(ctx, st.ActiveSpaceID(), "", "Zebra Fountain")
	require.NoError(t, err)

	results, err = st.Search(ctx, "zebra fountain")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Zebra Fountain", results[0].Title)
}

// =============================================================================
// Visible Edge Tests
// =============================================================================

func TestVisibleEdges_DefaultShowsAll(t *testing.T) {
	st, db, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()

	all, err := db.ListEdges(ctx, st.ActiveSpaceID())
	require.NoError(t, err)

	visible, err := st.VisibleEdges(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, visible)
}

func TestVisibleEdges_NeighborhoodMode(t *testing.T) {
	st, _, cleanup := setupInitialized(t)
	defer cleanup()

	ctx := context.Background()
	active := st.ActiveSpaceID()

	// An isolated pair, away from the seeded hub
	a, err := st.CreateNode(ctx, active, "", "Island A")
	require.NoError(t, err)
	b, err := st.CreateNode(ctx, active, "", "Island B")
	require.NoError(t, err)
	require.NoError(t, st.LinkNodes(ctx, a.ID, b.ID, "related"))

	vis := models.VisibilityNeighborhood
	require.NoError(t, st.UpdateView(ctx, models.ViewUpdate{EdgeVisibility: &vis}))
	st.SelectNode(a.ID)

	visible, err := st.VisibleEdges(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, a.ID, visible[0].From)
	assert.Equal(t, b.ID, visible[0].To)
}
