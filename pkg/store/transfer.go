package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noospace/noospace/pkg/codec"
	"github.com/noospace/noospace/pkg/storage"
)

// ExportAll serialises the whole store, settings included.
func (s *Store) ExportAll(ctx context.Context) (codec.Envelope, error) {
	return codec.ExportAll(ctx, s.storage, time.Now().UnixMilli())
}

// ExportSpace serialises one space.
func (s *Store) ExportSpace(ctx context.Context, spaceID string) (codec.Envelope, error) {
	env, err := codec.ExportSpace(ctx, s.storage, spaceID, time.Now().UnixMilli())
	if errors.Is(err, storage.ErrNotFound) {
		return codec.Envelope{}, ErrSpaceNotFound
	}
	if err != nil {
		return codec.Envelope{}, err
	}
	return env, nil
}

// Import merges an envelope into the store inside one transaction: either
// every space in the payload lands or none do. A payload without spaces
// imports nothing and reports zero counts. When the session had no active
// space, the first imported space becomes active.
func (s *Store) Import(ctx context.Context, env codec.Envelope) (codec.ImportResult, error) {
	if len(env.Spaces) == 0 {
		return codec.ImportResult{}, nil
	}

	tx, err := s.storage.Begin(ctx)
	if err != nil {
		return codec.ImportResult{}, err
	}
	defer tx.Rollback()

	result, err := codec.Import(ctx, tx, s.ident, env, time.Now().UnixMilli())
	if err != nil {
		return codec.ImportResult{}, fmt.Errorf("import failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return codec.ImportResult{}, fmt.Errorf("failed to commit import: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, "spaces")
	}

	if s.ActiveSpaceID() == "" && result.SpacesAdded > 0 {
		spaces, err := s.storage.ListSpaces(ctx)
		if err == nil && len(spaces) > 0 {
			if err := s.SetActiveSpace(ctx, spaces[0].ID); err != nil {
				return result, err
			}
		}
	}

	s.logger.Info().
		Int("spaces", result.SpacesAdded).
		Int("nodes", result.NodesAdded).
		Int("edges", result.EdgesAdded).
		Msg("Imported envelope")
	return result, nil
}
