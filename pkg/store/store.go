// Package store is the transactional facade over the persistent tables.
// All graph mutations go through it; direct table access would bypass the
// cascade-delete and dedup invariants it enforces. The facade also owns
// the session state: the active space, the selected node and the live
// view state.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noospace/noospace/pkg/cache"
	"github.com/noospace/noospace/pkg/ident"
	"github.com/noospace/noospace/pkg/models"
	"github.com/noospace/noospace/pkg/storage"
	"github.com/noospace/noospace/pkg/template"
	"github.com/noospace/noospace/pkg/validation"
)

var (
	// ErrNoActiveSpace is returned by operations that need an active space
	// when none is set (or the given space id is empty).
	ErrNoActiveSpace = errors.New("no active space")
	// ErrSpaceNotFound is returned when a space id resolves to nothing.
	ErrSpaceNotFound = errors.New("space not found")
	// ErrTemplateNotFound is returned by interactive space creation for an
	// unknown template key. Internal call sites fall back to the blank
	// template instead.
	ErrTemplateNotFound = template.ErrNotFound
)

// Options tune facade behaviour.
type Options struct {
	// FlushInterval coalesces view-state writes: continuous camera input
	// persists at most once per interval. Zero means the default 400ms.
	FlushInterval time.Duration
	// PlacementJitter is the per-axis amplitude used when positioning a
	// node near its parent. Zero means the default 1.5.
	PlacementJitter float64
}

// Store is the graph store facade.
type Store struct {
	storage   storage.Transactional
	ident     ident.Generator
	validator *validation.Validator
	cache     cache.Cache
	logger    zerolog.Logger

	flushInterval time.Duration
	jitter        float64
	rng           *rand.Rand

	mu             sync.Mutex
	activeSpaceID  string
	selectedNodeID string
	view           models.ViewState
	hasView        bool
	viewDirty      bool
	flushTimer     *time.Timer
	closed         bool
}

// ReadModel is the snapshot a caller renders from: all spaces, plus the
// active space's nodes, edges and view state.
type ReadModel struct {
	Spaces         []models.Space    `json:"spaces"`
	ActiveSpaceID  string            `json:"activeSpaceId,omitempty"`
	SelectedNodeID string            `json:"selectedNodeId,omitempty"`
	Nodes          []models.Node     `json:"nodes"`
	Edges          []models.Edge     `json:"edges"`
	View           *models.ViewState `json:"view,omitempty"`
}

// New builds a facade over the given storage. Call Initialize before
// serving requests.
func New(st storage.Transactional, gen ident.Generator, val *validation.Validator, c cache.Cache, logger zerolog.Logger, opts Options) *Store {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 400 * time.Millisecond
	}
	if opts.PlacementJitter <= 0 {
		opts.PlacementJitter = 1.5
	}
	return &Store{
		storage:       st,
		ident:         gen,
		validator:     val,
		cache:         c,
		logger:        logger,
		flushInterval: opts.FlushInterval,
		jitter:        opts.PlacementJitter,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Close flushes any pending view write and stops the facade.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	view, dirty := s.view, s.viewDirty
	s.viewDirty = false
	s.mu.Unlock()

	if dirty {
		if err := s.storage.PutViewState(context.Background(), view); err != nil {
			return fmt.Errorf("failed to flush view state: %w", err)
		}
	}
	return nil
}

// Initialize prepares the store for use. On an empty store it seeds every
// built-in template in one all-or-nothing transaction, then restores the
// remembered active space (falling back to the first space when the
// remembered one is gone or unset).
func (s *Store) Initialize(ctx context.Context) (ReadModel, error) {
	spaces, err := s.storage.ListSpaces(ctx)
	if err != nil {
		return ReadModel{}, fmt.Errorf("failed to list spaces: %w", err)
	}

	if len(spaces) == 0 {
		if err := s.seedBuiltins(ctx); err != nil {
			return ReadModel{}, err
		}
		spaces, err = s.storage.ListSpaces(ctx)
		if err != nil {
			return ReadModel{}, fmt.Errorf("failed to list spaces: %w", err)
		}
	}

	settings, err := s.storage.GetSettings(ctx)
	if err != nil && err != storage.ErrNotFound {
		return ReadModel{}, fmt.Errorf("failed to load settings: %w", err)
	}

	active := ""
	if len(spaces) > 0 {
		active = spaces[0].ID
		for _, sp := range spaces {
			if sp.ID == settings.LastOpenedSpaceID {
				active = sp.ID
				break
			}
		}
	}

	if active != "" {
		if err := s.SetActiveSpace(ctx, active); err != nil {
			return ReadModel{}, err
		}
	}

	s.logger.Info().Int("spaces", len(spaces)).Str("active", active).Msg("Store initialized")
	return s.ReadModel(ctx)
}

// seedBuiltins instantiates every built-in template inside one
// transaction: either all templates are present afterwards or none are.
func (s *Store) seedBuiltins(ctx context.Context) error {
	tx, err := s.storage.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, key := range template.Keys() {
		tpl, err := template.Lookup(key)
		if err != nil {
			return err
		}
		bundle := template.Instantiate(tpl, s.ident, now)
		if err := persistBundle(ctx, tx, bundle); err != nil {
			return fmt.Errorf("failed to seed template %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	s.logger.Info().Int("templates", len(template.Keys())).Msg("Seeded built-in spaces")
	return nil
}

func persistBundle(ctx context.Context, st storage.Store, bundle template.Bundle) error {
	if err := st.PutSpace(ctx, bundle.Space); err != nil {
		return err
	}
	for _, node := range bundle.Nodes {
		if err := st.PutNode(ctx, node); err != nil {
			return err
		}
	}
	for _, edge := range bundle.Edges {
		if err := st.PutEdge(ctx, edge); err != nil {
			return err
		}
	}
	return st.PutViewState(ctx, bundle.View)
}

// ReadModel assembles the current snapshot.
func (s *Store) ReadModel(ctx context.Context) (ReadModel, error) {
	spaces, err := s.storage.ListSpaces(ctx)
	if err != nil {
		return ReadModel{}, fmt.Errorf("failed to list spaces: %w", err)
	}

	s.mu.Lock()
	active, selected := s.activeSpaceID, s.selectedNodeID
	view, hasView := s.view, s.hasView
	s.mu.Unlock()

	rm := ReadModel{
		Spaces:         spaces,
		ActiveSpaceID:  active,
		SelectedNodeID: selected,
	}
	if active == "" {
		return rm, nil
	}

	rm.Nodes, err = s.storage.ListNodes(ctx, active)
	if err != nil {
		return ReadModel{}, fmt.Errorf("failed to list nodes: %w", err)
	}
	rm.Edges, err = s.storage.ListEdges(ctx, active)
	if err != nil {
		return ReadModel{}, fmt.Errorf("failed to list edges: %w", err)
	}
	if hasView {
		v := view
		rm.View = &v
	}
	return rm, nil
}

// ActiveSpaceID returns the current active space, or "".
func (s *Store) ActiveSpaceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSpaceID
}

// SelectedNodeID returns the current selection, or "".
func (s *Store) SelectedNodeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedNodeID
}

// SelectNode updates the selection. An empty id clears it.
func (s *Store) SelectNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedNodeID = id
}

// SetActiveSpace switches the session to the given space, persisting the
// choice so the next start restores it. The outgoing space's pending view
// write is flushed first.
func (s *Store) SetActiveSpace(ctx context.Context, id string) error {
	space, err := s.storage.GetSpace(ctx, id)
	if err == storage.ErrNotFound {
		return ErrSpaceNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load space: %w", err)
	}

	if err := s.flushPendingView(ctx); err != nil {
		return err
	}

	view, err := s.storage.GetViewState(ctx, space.ID)
	if err == storage.ErrNotFound {
		view = models.DefaultViewState(space.ID)
		if err := s.storage.PutViewState(ctx, view); err != nil {
			return fmt.Errorf("failed to create view state: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to load view state: %w", err)
	}

	s.mu.Lock()
	s.activeSpaceID = space.ID
	s.selectedNodeID = ""
	s.view = view
	s.hasView = true
	s.viewDirty = false
	s.mu.Unlock()

	settings, err := s.storage.GetSettings(ctx)
	if err != nil && err != storage.ErrNotFound {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	settings.SchemaVersion = storage.SchemaVersion
	settings.LastOpenedSpaceID = space.ID
	if err := s.storage.PutSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}

	s.logger.Debug().Str("space", space.ID).Msg("Switched active space")
	return nil
}

// CreateSpaceOverrides are applied on top of the instantiated template.
type CreateSpaceOverrides struct {
	Name string
	Icon string
}

// CreateSpace instantiates a template into a new space, persists the
// bundle transactionally and switches to it. An unknown key is an error
// here; internal call sites that must not fail use the blank fallback.
func (s *Store) CreateSpace(ctx context.Context, templateKey string, overrides CreateSpaceOverrides) (models.Space, error) {
	var tpl template.Template
	var err error
	if templateKey == "" {
		tpl = template.Fallback()
	} else if tpl, err = template.Lookup(templateKey); err != nil {
		return models.Space{}, err
	}

	now := time.Now().UnixMilli()
	bundle := template.Instantiate(tpl, s.ident, now)
	if overrides.Name != "" {
		bundle.Space.Name = overrides.Name
	}
	if overrides.Icon != "" {
		bundle.Space.Icon = overrides.Icon
	}
	if err := s.validator.Struct(bundle.Space); err != nil {
		return models.Space{}, err
	}

	tx, err := s.storage.Begin(ctx)
	if err != nil {
		return models.Space{}, err
	}
	defer tx.Rollback()

	if err := persistBundle(ctx, tx, bundle); err != nil {
		return models.Space{}, fmt.Errorf("failed to persist space: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Space{}, fmt.Errorf("failed to commit space: %w", err)
	}

	s.invalidateSpace(ctx, bundle.Space.ID)
	if err := s.SetActiveSpace(ctx, bundle.Space.ID); err != nil {
		return models.Space{}, err
	}

	s.logger.Info().Str("space", bundle.Space.ID).Str("template", tpl.Key).Msg("Created space")
	return bundle.Space, nil
}

// RenameSpace updates the space name and bumps updatedAt.
func (s *Store) RenameSpace(ctx context.Context, id, name string) error {
	space, err := s.storage.GetSpace(ctx, id)
	if err == storage.ErrNotFound {
		return ErrSpaceNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load space: %w", err)
	}

	space.Name = name
	space.UpdatedAt = time.Now().UnixMilli()
	if err := s.validator.Struct(space); err != nil {
		return err
	}
	if err := s.storage.PutSpace(ctx, space); err != nil {
		return fmt.Errorf("failed to rename space: %w", err)
	}

	s.invalidateSpace(ctx, id)
	s.logger.Info().Str("space", id).Msg("Renamed space")
	return nil
}

// DeleteSpace removes the space and everything it owns in one
// transaction: its nodes, its edges and its view state. When the deleted
// space was active, the first remaining space (by table order) becomes
// active, or the session empties out.
func (s *Store) DeleteSpace(ctx context.Context, id string) error {
	tx, err := s.storage.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.DeleteSpace(ctx, id); err != nil {
		if err == storage.ErrNotFound {
			return ErrSpaceNotFound
		}
		return fmt.Errorf("failed to delete space: %w", err)
	}
	if err := tx.DeleteNodesBySpace(ctx, id); err != nil {
		return err
	}
	if err := tx.DeleteEdgesBySpace(ctx, id); err != nil {
		return err
	}
	if err := tx.DeleteViewState(ctx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	s.invalidateSpace(ctx, id)

	s.mu.Lock()
	wasActive := s.activeSpaceID == id
	if wasActive {
		// Discard the dead space's session state, including any pending
		// view write.
		s.activeSpaceID = ""
		s.selectedNodeID = ""
		s.hasView = false
		s.viewDirty = false
		if s.flushTimer != nil {
			s.flushTimer.Stop()
			s.flushTimer = nil
		}
	}
	s.mu.Unlock()

	if wasActive {
		remaining, err := s.storage.ListSpaces(ctx)
		if err != nil {
			return fmt.Errorf("failed to list spaces: %w", err)
		}
		if len(remaining) > 0 {
			if err := s.SetActiveSpace(ctx, remaining[0].ID); err != nil {
				return err
			}
		} else {
			settings, err := s.storage.GetSettings(ctx)
			if err != nil && err != storage.ErrNotFound {
				return err
			}
			settings.LastOpenedSpaceID = ""
			if err := s.storage.PutSettings(ctx, settings); err != nil {
				return fmt.Errorf("failed to persist settings: %w", err)
			}
		}
	}

	s.logger.Info().Str("space", id).Msg("Deleted space")
	return nil
}

// invalidateSpace drops cached derived data for one space plus the
// space list.
func (s *Store) invalidateSpace(ctx context.Context, spaceID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, "spaces")
	_ = s.cache.DeletePattern(ctx, "space:"+spaceID+":*")
}
