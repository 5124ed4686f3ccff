// Package codec serialises the store to a versioned JSON envelope and
// merges envelopes back in, remapping identifiers so an import never
// collides with existing data.
package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/noospace/noospace/pkg/ident"
	"github.com/noospace/noospace/pkg/models"
	"github.com/noospace/noospace/pkg/storage"
)

// Envelope is the export/import wire format. Older exports used "views"
// for the view-state array; UnmarshalJSON accepts both names.
type Envelope struct {
	SchemaVersion int                 `json:"schemaVersion"`
	ExportedAt    int64               `json:"exportedAt"`
	Spaces        []models.Space      `json:"spaces"`
	Nodes         []models.Node       `json:"nodes"`
	Edges         []models.Edge       `json:"edges"`
	ViewStates    []models.ViewState  `json:"spaceViewState"`
	AppSettings   *models.AppSettings `json:"appSettings,omitempty"`
}

// UnmarshalJSON decodes an envelope, reading the view-state array from
// either the current "spaceViewState" field or the legacy "views" field.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		SchemaVersion int                 `json:"schemaVersion"`
		ExportedAt    int64               `json:"exportedAt"`
		Spaces        []models.Space      `json:"spaces"`
		Nodes         []models.Node       `json:"nodes"`
		Edges         []models.Edge       `json:"edges"`
		ViewStates    []models.ViewState  `json:"spaceViewState"`
		LegacyViews   []models.ViewState  `json:"views"`
		AppSettings   *models.AppSettings `json:"appSettings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	views := raw.ViewStates
	if views == nil {
		views = raw.LegacyViews
	}
	*e = Envelope{
		SchemaVersion: raw.SchemaVersion,
		ExportedAt:    raw.ExportedAt,
		Spaces:        raw.Spaces,
		Nodes:         raw.Nodes,
		Edges:         raw.Edges,
		ViewStates:    views,
		AppSettings:   raw.AppSettings,
	}
	return nil
}

// ExportAll serialises the whole store, settings included.
func ExportAll(ctx context.Context, st storage.Store, now int64) (Envelope, error) {
	spaces, err := st.ListSpaces(ctx)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to export spaces: %w", err)
	}

	env := Envelope{
		SchemaVersion: storage.SchemaVersion,
		ExportedAt:    now,
		Spaces:        spaces,
	}

	for _, space := range spaces {
		if err := appendSpaceData(ctx, st, space.ID, &env); err != nil {
			return Envelope{}, err
		}
	}

	settings, err := st.GetSettings(ctx)
	if err == nil {
		env.AppSettings = &settings
	} else if err != storage.ErrNotFound {
		return Envelope{}, fmt.Errorf("failed to export settings: %w", err)
	}

	return env, nil
}

// ExportSpace serialises a single space with its nodes, edges and view
// state. Settings are an export-all concern and are left out.
func ExportSpace(ctx context.Context, st storage.Store, spaceID string, now int64) (Envelope, error) {
	space, err := st.GetSpace(ctx, spaceID)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to export space: %w", err)
	}

	env := Envelope{
		SchemaVersion: storage.SchemaVersion,
		ExportedAt:    now,
		Spaces:        []models.Space{space},
	}
	if err := appendSpaceData(ctx, st, spaceID, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func appendSpaceData(ctx context.Context, st storage.Store, spaceID string, env *Envelope) error {
	nodes, err := st.ListNodes(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("failed to export nodes: %w", err)
	}
	env.Nodes = append(env.Nodes, nodes...)

	edges, err := st.ListEdges(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("failed to export edges: %w", err)
	}
	env.Edges = append(env.Edges, edges...)

	view, err := st.GetViewState(ctx, spaceID)
	if err == nil {
		env.ViewStates = append(env.ViewStates, view)
	} else if err != storage.ErrNotFound {
		return fmt.Errorf("failed to export view state: %w", err)
	}
	return nil
}

// ImportResult reports aggregate counts; dropped dangling edges are not
// itemised.
type ImportResult struct {
	SpacesAdded int `json:"spacesAdded"`
	NodesAdded  int `json:"nodesAdded"`
	EdgesAdded  int `json:"edgesAdded"`
}

// Import merges an envelope into the store. Every imported space gets a
// fresh id, an " (imported)" name suffix and timestamps rewritten to now;
// nodes and edges are remapped onto fresh ids, and edges whose endpoints
// are not in the remap table are silently dropped. A payload without a
// non-empty spaces array imports nothing and is not an error. The caller
// supplies st as an open transaction when atomicity is required.
func Import(ctx context.Context, st storage.Store, gen ident.Generator, env Envelope, now int64) (ImportResult, error) {
	var result ImportResult
	if len(env.Spaces) == 0 {
		return result, nil
	}

	for _, incoming := range env.Spaces {
		oldSpaceID := incoming.ID

		space := incoming
		space.ID = gen.NewID(ident.KindSpace)
		space.Name = incoming.Name + " (imported)"
		space.CreatedAt = now
		space.UpdatedAt = now
		if err := st.PutSpace(ctx, space); err != nil {
			return ImportResult{}, err
		}
		result.SpacesAdded++

		// Remap table: old node id -> new node id, scoped to this space.
		remap := make(map[string]string)
		for _, incomingNode := range env.Nodes {
			if incomingNode.SpaceID != oldSpaceID {
				continue
			}
			node := incomingNode
			node.ID = gen.NewID(ident.KindNode)
			node.SpaceID = space.ID
			remap[incomingNode.ID] = node.ID
			if err := st.PutNode(ctx, node); err != nil {
				return ImportResult{}, err
			}
			result.NodesAdded++
		}

		for _, incomingEdge := range env.Edges {
			if incomingEdge.SpaceID != oldSpaceID {
				continue
			}
			from, okFrom := remap[incomingEdge.From]
			to, okTo := remap[incomingEdge.To]
			if !okFrom || !okTo {
				// Dangling endpoint: drop rather than import a broken edge.
				continue
			}
			edge := incomingEdge
			edge.ID = gen.NewID(ident.KindEdge)
			edge.SpaceID = space.ID
			edge.From = from
			edge.To = to
			if err := st.PutEdge(ctx, edge); err != nil {
				return ImportResult{}, err
			}
			result.EdgesAdded++
		}

		view := models.DefaultViewState(space.ID)
		for _, incomingView := range env.ViewStates {
			if incomingView.SpaceID == oldSpaceID {
				view = incomingView
				view.SpaceID = space.ID
				break
			}
		}
		if err := st.PutViewState(ctx, view); err != nil {
			return ImportResult{}, err
		}
	}

	return result, nil
}

// Decode parses raw bytes into an envelope. A payload that is valid JSON
// but not an envelope decodes to an empty envelope, which Import treats
// as "no data".
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, nil
}
