package store

import (
	"context"
	"fmt"
	"time"

	"github.com/noospace/noospace/pkg/graph"
	"github.com/noospace/noospace/pkg/ident"
	"github.com/noospace/noospace/pkg/models"
	"github.com/noospace/noospace/pkg/search"
	"github.com/noospace/noospace/pkg/storage"
)

// PlaceholderText seeds the single markdown block every new node starts
// with.
const PlaceholderText = "A new thought. Start typing."

// CreateNode adds a node to the space, positioned near its parent (plus
// jitter per axis, so children cluster without colliding) or at the
// origin when parentless. The node always starts with one markdown block.
// When a parent is given, a "child" edge from parent to the new node is
// created as a second step; the node insert commits first, so a failed
// insert never leaves an orphan edge.
func (s *Store) CreateNode(ctx context.Context, spaceID, parentID, title string) (models.Node, error) {
	if spaceID == "" {
		return models.Node{}, ErrNoActiveSpace
	}

	base := models.Vec3{}
	var parent models.Node
	hasParent := false
	if parentID != "" {
		p, err := s.storage.GetNode(ctx, parentID)
		if err == nil && p.SpaceID == spaceID {
			parent = p
			hasParent = true
			base = p.Position
		} else if err != nil && err != storage.ErrNotFound {
			return models.Node{}, fmt.Errorf("failed to load parent: %w", err)
		}
	}

	now := time.Now().UnixMilli()
	node := models.Node{
		ID:         s.ident.NewID(ident.KindNode),
		SpaceID:    spaceID,
		Title:      title,
		Importance: 3,
		Position:   base.Add(s.jitterVec()),
		Blocks:     []models.Block{models.NewMarkdownBlock(PlaceholderText)},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.validator.Node(node); err != nil {
		return models.Node{}, err
	}
	if err := s.storage.PutNode(ctx, node); err != nil {
		return models.Node{}, fmt.Errorf("failed to create node: %w", err)
	}

	if hasParent {
		if err := s.LinkNodes(ctx, parent.ID, node.ID, "child"); err != nil {
			return models.Node{}, err
		}
	}

	s.mu.Lock()
	if s.activeSpaceID == spaceID {
		s.selectedNodeID = node.ID
	}
	s.mu.Unlock()

	s.invalidateSpace(ctx, spaceID)
	s.logger.Debug().Str("node", node.ID).Str("space", spaceID).Msg("Created node")
	return node, nil
}

// jitterVec returns a small pseudorandom offset per axis.
func (s *Store) jitterVec() models.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := func() float64 { return (s.rng.Float64()*2 - 1) * s.jitter }
	return models.Vec3{X: j(), Y: j(), Z: j()}
}

// UpdateNode merges the partial update onto the stored node and bumps
// updatedAt. An unknown id is silently ignored: callers are expected to
// hold a fresh copy, so a racing delete is harmless.
func (s *Store) UpdateNode(ctx context.Context, id string, update models.NodeUpdate) error {
	if err := s.validator.NodeUpdate(update); err != nil {
		return err
	}

	node, err := s.storage.GetNode(ctx, id)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load node: %w", err)
	}

	if update.Title != nil {
		node.Title = *update.Title
	}
	if update.Tags != nil {
		node.Tags = *update.Tags
	}
	if update.Importance != nil {
		node.Importance = *update.Importance
	}
	if update.Position != nil {
		node.Position = *update.Position
	}
	if update.Blocks != nil {
		node.Blocks = *update.Blocks
	}
	node.UpdatedAt = time.Now().UnixMilli()

	if err := s.storage.PutNode(ctx, node); err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}

	s.invalidateSpace(ctx, node.SpaceID)
	return nil
}

// DeleteNode removes the node and, in the same transaction, every edge in
// its space that points at it from either end. A deleted selection falls
// back to the first remaining node in the space.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	node, err := s.storage.GetNode(ctx, id)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load node: %w", err)
	}

	tx, err := s.storage.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.DeleteNode(ctx, id); err != nil && err != storage.ErrNotFound {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	if err := tx.DeleteEdgesTouching(ctx, node.SpaceID, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	s.mu.Lock()
	selectionLost := s.selectedNodeID == id
	if selectionLost {
		s.selectedNodeID = ""
	}
	s.mu.Unlock()

	if selectionLost {
		remaining, err := s.storage.ListNodes(ctx, node.SpaceID)
		if err == nil && len(remaining) > 0 {
			s.SelectNode(remaining[0].ID)
		}
	}

	s.invalidateSpace(ctx, node.SpaceID)
	s.logger.Debug().Str("node", id).Msg("Deleted node")
	return nil
}

// LinkNodes creates a directed edge from one node to another. Self-loops
// and duplicate (from, to, relation) triples are silently ignored, as are
// endpoints that do not resolve to two nodes of the same space.
func (s *Store) LinkNodes(ctx context.Context, fromID, toID, relation string) error {
	if fromID == toID {
		return nil
	}

	from, err := s.storage.GetNode(ctx, fromID)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load node: %w", err)
	}
	to, err := s.storage.GetNode(ctx, toID)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load node: %w", err)
	}
	if from.SpaceID != to.SpaceID {
		return nil
	}

	exists, err := s.storage.EdgeExists(ctx, from.SpaceID, fromID, toID, relation)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	edge := models.Edge{
		ID:        s.ident.NewID(ident.KindEdge),
		SpaceID:   from.SpaceID,
		From:      fromID,
		To:        toID,
		Relation:  relation,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.storage.PutEdge(ctx, edge); err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}

	s.invalidateSpace(ctx, from.SpaceID)
	s.logger.Debug().Str("from", fromID).Str("to", toID).Str("relation", relation).Msg("Linked nodes")
	return nil
}

// UnlinkNodes removes a single edge by id, the inverse of LinkNodes.
// Unknown ids are a silent no-op like the other unlink-adjacent paths.
func (s *Store) UnlinkNodes(ctx context.Context, edgeID string) error {
	edge, err := s.storage.GetEdge(ctx, edgeID)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load edge: %w", err)
	}

	if err := s.storage.DeleteEdge(ctx, edgeID); err != nil && err != storage.ErrNotFound {
		return fmt.Errorf("failed to delete edge: %w", err)
	}

	s.invalidateSpace(ctx, edge.SpaceID)
	s.logger.Debug().Str("edge", edgeID).Msg("Unlinked nodes")
	return nil
}

// Search runs a substring query over the active space's nodes. An empty
// query or missing active space yields an empty result, not an error.
// Results are cached until the space is next mutated.
func (s *Store) Search(ctx context.Context, query string) ([]search.Result, error) {
	active := s.ActiveSpaceID()
	if active == "" || query == "" {
		return nil, nil
	}

	cacheKey := "space:" + active + ":search:" + query
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			if results, ok := cached.([]search.Result); ok {
				return results, nil
			}
		}
	}

	nodes, err := s.storage.ListNodes(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	results := search.Query(query, nodes)

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, results, 0)
	}
	return results, nil
}

// VisibleEdges returns the active space's edges filtered by the current
// view's edge-visibility mode relative to the selection.
func (s *Store) VisibleEdges(ctx context.Context) ([]models.Edge, error) {
	s.mu.Lock()
	active, selected := s.activeSpaceID, s.selectedNodeID
	mode := s.view.EdgeVisibility
	hasView := s.hasView
	s.mu.Unlock()

	if active == "" {
		return nil, nil
	}
	edges, err := s.storage.ListEdges(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	if !hasView {
		return edges, nil
	}
	return graph.Visible(edges, selected, mode), nil
}
