package codec_test

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/noospace/noospace/pkg/codec"
	"github.com/noospace/noospace/pkg/ident"
	"github.com/noospace/noospace/pkg/models"
	"github.com/noospace/noospace/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCodecTest(t *testing.T) (*storage.SQLiteStore, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "noospace-codec-*.db")
	require.NoError(t, err)
	tmpFile.Close()
	dbPath := tmpFile.Name()

	store, err := storage.NewSQLiteStore(dbPath, storage.DefaultSQLiteConfig(dbPath))
	require.NoError(t, err)

	return store, func() {
		store.Close()
		os.Remove(dbPath)
	}
}

// seedSpace writes one space with two linked nodes and a view state.
// Seed ids live outside the sequential generator's namespace so an
// import into the same store can never collide with a fixture.
func seedSpace(t *testing.T, st storage.Store, spaceID string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.PutSpace(ctx, models.Space{ID: spaceID, Name: "Seeded", CreatedAt: 1, UpdatedAt: 1}))
	require.NoError(t, st.PutNode(ctx, models.Node{
		ID: spaceID + "-n1", SpaceID: spaceID, Title: "One", Importance: 3,
		Blocks: []models.Block{models.NewMarkdownBlock("first")},
	}))
	require.NoError(t, st.PutNode(ctx, models.Node{
		ID: spaceID + "-n2", SpaceID: spaceID, Title: "Two", Importance: 3,
		Blocks: []models.Block{models.NewMarkdownBlock("second")},
	}))
	require.NoError(t, st.PutEdge(ctx, models.Edge{
		ID: spaceID + "-e1", SpaceID: spaceID, From: spaceID + "-n1", To: spaceID + "-n2", Relation: "child",
	}))
	require.NoError(t, st.PutViewState(ctx, models.DefaultViewState(spaceID)))
}

// =============================================================================
// Export Tests
// =============================================================================

func TestExportAll(t *testing.T) {
	store, cleanup := setupCodecTest(t)
	defer cleanup()

	seedSpace(t, store, "spc_seed_a")
	seedSpace(t, store, "spc_seed_b")

	env, err := codec.ExportAll(context.Background(), store, 1700000000000)
	require.NoError(t, err)

	assert.Equal(t, storage.SchemaVersion, env.SchemaVersion)
	assert.Equal(t, int64(1700000000000), env.ExportedAt)
	assert.Len(t, env.Spaces, 2)
	assert.Len(t, env.Nodes, 4)
	assert.Len(t, env.Edges, 2)
	assert.Len(t, env.ViewStates, 2)
	require.NotNil(t, env.AppSettings)
	assert.Equal(t, storage.SchemaVersion, env.AppSettings.SchemaVersion)
}

func TestExportSpace(t *testing.T) {
	store, cleanup := setupCodecTest(t)
	defer cleanup()

	seedSpace(t, store, "spc_seed_a")
	seedSpace(t, store, "spc_seed_b")

	env, err := codec.ExportSpace(context.Background(), store, "spc_seed_a", 1)
	require.NoError(t, err)

	require.Len(t, env.Spaces, 1)
	assert.Equal(t, "spc_seed_a", env.Spaces[0].ID)
	assert.Len(t, env.Nodes, 2)
	assert.Len(t, env.Edges, 1)
	assert.Len(t, env.ViewStates, 1)
	assert.Nil(t, env.AppSettings)
}

func TestExportSpace_Unknown(t *testing.T) {
	store, cleanup := setupCodecTest(t)
	defer cleanup()

	_, err := codec.ExportSpace(context.Background(), store, "spc_missing", 1)
	assert.Error(t, err)
}

// =============================================================================
// Import Tests
// =============================================================================

func TestImport_Roundtrip(t *testing.T) {
	store, cleanup := setupCodecTest(t)
	defer cleanup()

	ctx := context.Background()
	seedSpace(t, store, "spc_seed_a")

	env, err := codec.ExportAll(ctx, store, 1)
	require.NoError(t, err)

	gen := ident.NewSequentialGenerator()
	result, err := codec.Import(ctx, store, gen, env, 1700000000000)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SpacesAdded)
	assert.Equal(t, 2, result.NodesAdded)
	assert.Equal(t, 1, result.EdgesAdded)

	spaces, err := store.ListSpaces(ctx)
	require.NoError(t, err)
	require.Len(t, spaces, 2)

	imported := spaces[1]
	assert.NotEqual(t, "spc_seed_a", imported.ID)
	assert.Equal(t, "Seeded (imported)", imported.Name)
	assert.Equal(t, int64(1700000000000), imported.CreatedAt)

	// The imported graph is isomorphic: two nodes, one edge between them
	nodes, err := store.ListNodes(ctx, imported.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	edges, err := store.ListEdges(ctx, imported.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, nodes[0].ID, edges[0].From)
	assert.Equal(t, nodes[1].ID, edges[0].To)
	assert.Equal(t, "child", edges[0].Relation)

	// View state came along, rekeyed to the new space
	view, err := store.GetViewState(ctx, imported.ID)
	require.NoError(t, err)
	assert.Equal(t, imported.ID, view.SpaceID)
}

func TestImport_Twice(t *testing.T) {
	store, cleanup := setupCodecTest(t)
	defer cleanup()

	ctx := context.Background()
	seedSpace(t, store, "spc_seed_a")

	env, err := codec.ExportAll(ctx, store, 1)
	require.NoError(t, err)

	gen := ident.NewSequentialGenerator()
	_, err = codec.Import(ctx, store, gen, env, 1)
	require.NoError(t, err)
	_, err = codec.Import(ctx, store, gen, env, 1)
	require.NoError(t, err)

	// Three spaces, all ids distinct
	spaces, err := store.ListSpaces(ctx)
	require.NoError(t, err)
	require.Len(t, spaces, 3)

	seen := make(map[string]bool)
	for _, sp := range spaces {
		assert.False(t, seen[sp.ID])
		seen[sp.ID] = true
	}
}

func TestImport_DanglingEdgesDropped(t *testing.T) {
	store, cleanup := setupCodecTest(t)
	defer cleanup()

	ctx := context.Background()

	env := codec.Envelope{
		SchemaVersion: storage.SchemaVersion,
		Spaces:        []models.Space{{ID: "spc_x", Name: "Partial"}},
		Nodes: []models.Node{
			{ID: "n1", SpaceID: "spc_x", Title: "Only node", Importance: 3},
		},
		Edges: []models.Edge{
			{ID: "e1", SpaceID: "spc_x", From: "n1", To: "n_missing"},
			{ID: "e2", SpaceID: "spc_x", From: "n_missing", To: "n1"},
		},
	}

	result, err := codec.Import(ctx, store, ident.NewSequentialGenerator(), env, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SpacesAdded)
	assert.Equal(t, 1, result.NodesAdded)
	assert.Equal(t, 0, result.EdgesAdded)
}

func TestImport_SynthesizesDefaultView(t *testing.T) {
	store, cleanup := setupCodecTest(t)
	defer cleanup()

	ctx := context.Background()

	env := codec.Envelope{
		Spaces: []models.Space{{ID: "spc_x", Name: "No view"}},
	}

	_, err := codec.Import(ctx, store, ident.NewSequentialGenerator(), env, 1)
	require.NoError(t, err)

	spaces, err := store.ListSpaces(ctx)
	require.NoError(t, err)
	require.Len(t, spaces, 1)

	view, err := store.GetViewState(ctx, spaces[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultViewState(spaces[0].ID), view)
}

func TestImport_EmptyEnvelope(t *testing.T) {
	store, cleanup := setupCodecTest(t)
	defer cleanup()

	ctx := context.Background()

	result, err := codec.Import(ctx, store, ident.NewSequentialGenerator(), codec.Envelope{}, 1)
	require.NoError(t, err)
	assert.Zero(t, result.SpacesAdded)

	spaces, err := store.ListSpaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, spaces)
}

// =============================================================================
// Envelope Decoding Tests
// =============================================================================

func TestDecode_LegacyViewsField(t *testing.T) {
	payload := `{
		"schemaVersion": 1,
		"spaces": [{"id": "spc_seed_a", "name": "Old export"}],
		"views": [{"spaceId": "spc_seed_a", "environment": "white-room", "edgeVisibility": "all", "mode": "observe"}]
	}`

	env, err := codec.Decode([]byte(payload))
	require.NoError(t, err)

	require.Len(t, env.ViewStates, 1)
	assert.Equal(t, "spc_seed_a", env.ViewStates[0].SpaceID)
	assert.Equal(t, models.EnvWhiteRoom, env.ViewStates[0].Environment)
}

func TestDecode_CurrentFieldWinsOverLegacy(t *testing.T) {
	payload := `{
		"spaceViewState": [{"spaceId": "spc_new"}],
		"views": [{"spaceId": "spc_old"}]
	}`

	env, err := codec.Decode([]byte(payload))
	require.NoError(t, err)

	require.Len(t, env.ViewStates, 1)
	assert.Equal(t, "spc_new", env.ViewStates[0].SpaceID)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := codec.Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestDecode_UnrelatedJSON(t *testing.T) {
	// Valid JSON that is no envelope decodes to an empty envelope
	env, err := codec.Decode([]byte(`{"something": "else"}`))
	require.NoError(t, err)
	assert.Empty(t, env.Spaces)
}

func TestEnvelope_MarshalUsesCurrentFieldName(t *testing.T) {
	env := codec.Envelope{
		ViewStates: []models.ViewState{models.DefaultViewState("spc_seed_a")},
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(data), `"spaceViewState"`))
	assert.False(t, strings.Contains(string(data), `"views"`))
}
